package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax for the relational store.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// SQL is the pooled relational credential store.
type SQL struct {
	DB      *sql.DB
	Dialect Dialect
}

const schema = `
CREATE TABLE IF NOT EXISTS identities (
    id TEXT PRIMARY KEY,
    provider TEXT NOT NULL,
    subject TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    CONSTRAINT identities_provider_subject_unique UNIQUE (provider, subject)
);

CREATE TABLE IF NOT EXISTS sessions (
    token_hash TEXT PRIMARY KEY,
    identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_identity_id_idx ON sessions (identity_id);

CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);
`

// OpenSQL opens the store named by a postgres://, postgresql://, sqlite:// or
// file: URL, pings it and applies the schema.
func OpenSQL(ctx context.Context, rawURL string) (*SQL, error) {
	var (
		driver  string
		dsn     string
		dialect Dialect
	)
	switch {
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		driver, dsn, dialect = "pgx", rawURL, Postgres
	case strings.HasPrefix(rawURL, "sqlite://"):
		driver, dsn, dialect = "sqlite", strings.TrimPrefix(rawURL, "sqlite://"), SQLite
	case strings.HasPrefix(rawURL, "file:"):
		driver, dsn, dialect = "sqlite", rawURL, SQLite
	default:
		return nil, fmt.Errorf("sql open: unsupported database url")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps in-memory databases shared and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql ping: %w", err)
	}

	s := &SQL{DB: db, Dialect: dialect}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the identity and session schema. It is idempotent.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sql migrate: %w", err)
		}
	}
	return nil
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (s *SQL) Rebind(query string) string {
	if s.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close releases the pool.
func (s *SQL) Close() error {
	return s.DB.Close()
}

// ToMillis normalizes timestamps into millisecond precision for storage.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis restores a stored millisecond timestamp in UTC.
func FromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
