package identities

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines persistence operations for identities
type Repository interface {
	// Upsert matches on (Provider, Subject): it inserts when absent and
	// refreshes the profile fields when present. The stored record is returned.
	Upsert(ctx context.Context, id *models.Identity) (*models.Identity, error)
	// GetByID returns (nil, nil) when no identity has that id.
	GetByID(ctx context.Context, id string) (*models.Identity, error)
}

// MongoRepository implements Repository using the "identities" collection
type MongoRepository struct {
	db *database.Lazy[*mongo.Database]
}

// NewMongoRepository creates a repository over a lazily connected database
func NewMongoRepository(db *database.Lazy[*mongo.Database]) *MongoRepository {
	return &MongoRepository{db: db}
}

func (r *MongoRepository) col(ctx context.Context) (*mongo.Collection, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection("identities"), nil
}

func (r *MongoRepository) Upsert(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	filter := bson.M{"provider": id.Provider, "subject": id.Subject}
	update := bson.M{
		"$set": profileSet(id, now),
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.Identity
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// profileSet refreshes only the profile fields the provider sent, so a
// sparse claim set does not erase what an earlier sign-in stored.
func profileSet(id *models.Identity, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if id.Email != "" {
		set["email"] = id.Email
	}
	if id.Name != "" {
		set["name"] = id.Name
	}
	if id.AvatarURL != "" {
		set["avatarUrl"] = id.AvatarURL
	}
	return set
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}
	var out models.Identity
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
