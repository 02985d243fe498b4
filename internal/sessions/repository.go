package sessions

import (
	"context"
	"errors"

	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repository provides session persistence keyed by token digest.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// GetByTokenHash returns (nil, nil) when no record exists.
	GetByTokenHash(ctx context.Context, hash string) (*models.Session, error)
	// DeleteByTokenHash reports whether a record was removed.
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
}

// MongoRepository implements Repository using the "sessions" collection.
// The collection carries a TTL index on expiresAt, see database.OpenMongo.
type MongoRepository struct {
	db *database.Lazy[*mongo.Database]
}

func NewMongoRepository(db *database.Lazy[*mongo.Database]) *MongoRepository {
	return &MongoRepository{db: db}
}

func (r *MongoRepository) col(ctx context.Context) (*mongo.Collection, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection("sessions"), nil
}

func (r *MongoRepository) Create(ctx context.Context, s *models.Session) error {
	col, err := r.col(ctx)
	if err != nil {
		return err
	}
	_, err = col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := col.FindOne(ctx, bson.M{"_id": hash}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	col, err := r.col(ctx)
	if err != nil {
		return false, err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": hash})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
