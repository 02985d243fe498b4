package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quickauth/auth-service/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under key "session:<digest>" with TTL = expiresAt - now.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(hash string) string {
	return r.prefix + hash
}

func (r *RedisRepository) Create(ctx context.Context, s *models.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	exp := time.Until(s.ExpiresAt)
	if exp <= 0 {
		// Redis rejects non-positive TTLs
		exp = time.Second
	}
	return r.client.Set(ctx, r.key(s.TokenHash), b, exp).Err()
}

func (r *RedisRepository) GetByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	b, err := r.client.Get(ctx, r.key(hash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
