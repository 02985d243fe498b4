package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/models"
)

// IdentityLookup loads the owner of a session.
type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (*models.Identity, error)
}

// Options tunes session lifetimes and store deadlines.
type Options struct {
	TTL          time.Duration
	StoreTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service wraps repository operations with the session lifecycle rules.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	repo       Repository
	identities IdentityLookup
	ttl        time.Duration
	timeout    time.Duration
	now        func() time.Time
}

func NewService(r Repository, identities IdentityLookup, opts Options) *Service {
	s := &Service{
		repo:       r,
		identities: identities,
		ttl:        opts.TTL,
		timeout:    opts.StoreTimeout,
		now:        opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 7 * 24 * time.Hour
	}
	if s.timeout <= 0 {
		s.timeout = 3 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// TTL returns the lifetime given to new sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

// CreateSession issues a session for identity. The returned record is the
// only place the raw token appears.
func (s *Service) CreateSession(ctx context.Context, identity *models.Identity) (*models.Session, error) {
	const op = "sessions.create"
	if identity == nil || identity.ID == "" {
		return nil, autherr.Errorf(autherr.KindUnknown, op, "session requires a stored identity")
	}
	token, err := NewToken()
	if err != nil {
		return nil, autherr.E(autherr.KindUnknown, op, err)
	}
	now := s.now().UTC()
	sess := &models.Session{
		Token:      token,
		TokenHash:  HashToken(token),
		IdentityID: identity.ID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, storeError(op, err)
	}
	return sess, nil
}

// ValidateSession resolves token to its identity. An unknown, expired or
// orphaned token yields (nil, nil); errors mean the store could not answer.
func (s *Service) ValidateSession(ctx context.Context, token string) (*models.Identity, *models.Session, error) {
	const op = "sessions.validate"
	if token == "" {
		return nil, nil, nil
	}
	hash := HashToken(token)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.repo.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, nil, storeError(op, err)
	}
	if sess == nil {
		return nil, nil, nil
	}
	if sess.Expired(s.now()) {
		_, _ = s.repo.DeleteByTokenHash(ctx, hash)
		return nil, nil, nil
	}

	identity, err := s.identities.GetByID(ctx, sess.IdentityID)
	if err != nil {
		return nil, nil, storeError(op, err)
	}
	if identity == nil {
		return nil, nil, nil
	}
	return identity, sess, nil
}

// RevokeSession deletes the session for token. It returns a NotFound error
// when there was nothing to delete.
func (s *Service) RevokeSession(ctx context.Context, token string) error {
	const op = "sessions.revoke"
	if token == "" {
		return autherr.E(autherr.NotFound, op)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.repo.DeleteByTokenHash(ctx, HashToken(token))
	if err != nil {
		return storeError(op, err)
	}
	if !removed {
		return autherr.E(autherr.NotFound, op)
	}
	return nil
}

func storeError(op string, err error) error {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return err
	}
	return autherr.E(autherr.StoreUnavailable, op, err)
}
