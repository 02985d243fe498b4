package sessions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/quickauth/auth-service/internal/database"
	"github.com/quickauth/auth-service/internal/models"
)

// SQLRepository implements Repository on Postgres or SQLite.
type SQLRepository struct {
	db *database.Lazy[*database.SQL]
}

func NewSQLRepository(db *database.Lazy[*database.SQL]) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	db, err := r.db.Get(ctx)
	if err != nil {
		return err
	}
	_, err = db.DB.ExecContext(ctx,
		db.Rebind(`INSERT INTO sessions (token_hash, identity_id, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		s.TokenHash, s.IdentityID, database.ToMillis(s.CreatedAt), database.ToMillis(s.ExpiresAt),
	)
	return err
}

func (r *SQLRepository) GetByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	var (
		s                    models.Session
		createdAt, expiresAt int64
	)
	err = db.DB.QueryRowContext(ctx,
		db.Rebind(`SELECT token_hash, identity_id, created_at, expires_at FROM sessions WHERE token_hash = ?`),
		hash,
	).Scan(&s.TokenHash, &s.IdentityID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = database.FromMillis(createdAt)
	s.ExpiresAt = database.FromMillis(expiresAt)
	return &s, nil
}

func (r *SQLRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	db, err := r.db.Get(ctx)
	if err != nil {
		return false, err
	}
	res, err := db.DB.ExecContext(ctx, db.Rebind(`DELETE FROM sessions WHERE token_hash = ?`), hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
