package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create stores digest not token", func(mt *mtest.T) {
		repo := NewMongoRepository(database.Resolved(mt.DB))
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		now := time.Now().UTC()
		err := repo.Create(context.Background(), &models.Session{
			Token:      "raw-token",
			TokenHash:  "digest",
			IdentityID: "id-1",
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Hour),
		})
		require.NoError(mt, err)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		require.Equal(mt, "insert", started.CommandName)
		docs, err := started.Command.LookupErr("documents")
		require.NoError(mt, err)
		vals, err := docs.Array().Values()
		require.NoError(mt, err)
		require.Len(mt, vals, 1)
		doc := vals[0].Document()
		require.Equal(mt, "digest", doc.Lookup("_id").StringValue())
		require.Equal(mt, "id-1", doc.Lookup("identityId").StringValue())
		_, err = doc.LookupErr("token")
		require.Error(mt, err)
	})

	mt.Run("get by token hash not found", func(mt *mtest.T) {
		repo := NewMongoRepository(database.Resolved(mt.DB))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "auth.sessions", mtest.FirstBatch))

		got, err := repo.GetByTokenHash(context.Background(), "missing")
		require.NoError(mt, err)
		require.Nil(mt, got)
	})

	mt.Run("get by token hash decodes record", func(mt *mtest.T) {
		repo := NewMongoRepository(database.Resolved(mt.DB))
		expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "auth.sessions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "digest"},
			{Key: "identityId", Value: "id-1"},
			{Key: "expiresAt", Value: expires},
		}))

		got, err := repo.GetByTokenHash(context.Background(), "digest")
		require.NoError(mt, err)
		require.Equal(mt, "id-1", got.IdentityID)
		require.Empty(mt, got.Token)
		require.True(mt, expires.Equal(got.ExpiresAt))
	})

	mt.Run("delete reports whether a record was removed", func(mt *mtest.T) {
		repo := NewMongoRepository(database.Resolved(mt.DB))
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
		)

		removed, err := repo.DeleteByTokenHash(context.Background(), "digest")
		require.NoError(mt, err)
		require.True(mt, removed)

		removed, err = repo.DeleteByTokenHash(context.Background(), "digest")
		require.NoError(mt, err)
		require.False(mt, removed)
	})
}
