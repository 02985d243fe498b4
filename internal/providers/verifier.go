package providers

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IDToken is a minimal interface for token payloads that allows extracting claims.
// It is satisfied by *oidc.IDToken and by the insecure token below.
type IDToken interface {
	Claims(v interface{}) error
}

// TokenVerifier checks a raw ID token and returns its payload.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (IDToken, error)
}

// OIDCVerifier verifies ID tokens against the issuer's signing keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier wraps a go-oidc verifier.
func NewOIDCVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (IDToken, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
