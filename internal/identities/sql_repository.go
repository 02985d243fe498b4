package identities

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/models"
)

const upsertIdentitySQL = `
INSERT INTO identities (id, provider, subject, email, name, avatar_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (provider, subject) DO UPDATE SET
    email = COALESCE(NULLIF(excluded.email, ''), identities.email),
    name = COALESCE(NULLIF(excluded.name, ''), identities.name),
    avatar_url = COALESCE(NULLIF(excluded.avatar_url, ''), identities.avatar_url),
    updated_at = excluded.updated_at
RETURNING id, provider, subject, email, name, avatar_url, created_at, updated_at`

const getIdentitySQL = `
SELECT id, provider, subject, email, name, avatar_url, created_at, updated_at
FROM identities
WHERE id = ?`

// SQLRepository implements Repository on Postgres or SQLite.
type SQLRepository struct {
	db *database.Lazy[*database.SQL]
}

func NewSQLRepository(db *database.Lazy[*database.SQL]) *SQLRepository {
	return &SQLRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		out                  models.Identity
		createdAt, updatedAt int64
	)
	if err := row.Scan(&out.ID, &out.Provider, &out.Subject, &out.Email, &out.Name, &out.AvatarURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	out.CreatedAt = database.FromMillis(createdAt)
	out.UpdatedAt = database.FromMillis(updatedAt)
	return &out, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := database.ToMillis(time.Now())
	row := db.DB.QueryRowContext(ctx, db.Rebind(upsertIdentitySQL),
		uuid.NewString(), id.Provider, id.Subject, id.Email, id.Name, id.AvatarURL, now, now)
	return scanIdentity(row)
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	out, err := scanIdentity(db.DB.QueryRowContext(ctx, db.Rebind(getIdentitySQL), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return out, err
}
