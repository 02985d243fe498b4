package identities

import (
	"context"
	"errors"
	"time"

	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/models"
	"github.com/quickauth/auth-service/internal/providers"
)

const defaultStoreTimeout = 3 * time.Second

// Service encapsulates identity-related business logic
type Service struct {
	repo         Repository
	storeTimeout time.Duration
}

func NewService(r Repository, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Service{repo: r, storeTimeout: storeTimeout}
}

// UpsertFromClaims creates or refreshes the identity for provider + claims.Subject.
func (s *Service) UpsertFromClaims(ctx context.Context, provider string, claims *providers.Claims) (*models.Identity, error) {
	const op = "identities.upsert"
	if claims == nil || claims.Subject == "" {
		return nil, autherr.Errorf(autherr.ProviderError, op, "claims carry no subject")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	id, err := s.repo.Upsert(ctx, &models.Identity{
		Provider:  provider,
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return id, nil
}

// GetByID returns (nil, nil) when the identity does not exist.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	out, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("identities.get", err)
	}
	return out, nil
}

func storeError(op string, err error) error {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return err
	}
	return autherr.E(autherr.StoreUnavailable, op, err)
}
