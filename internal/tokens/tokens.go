package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/oauthflow"
)

const stateAudience = "oauth-state"

type stateClaims struct {
	Provider string `json:"prv"`
	State    string `json:"st"`
	Verifier string `json:"cv"`
	Redirect string `json:"ru,omitempty"`
	jwt.RegisteredClaims
}

// SignAttempt encodes a pending sign-in as a signed JWT for the state cookie.
func SignAttempt(secret string, a *oauthflow.Attempt) (string, error) {
	if secret == "" {
		return "", errors.New("tokens: empty signing secret")
	}
	claims := stateClaims{
		Provider: a.Provider,
		State:    a.State,
		Verifier: a.Verifier,
		Redirect: a.RedirectURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(a.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(a.ExpiresAt),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}

// ParseAttempt verifies a state cookie value. Any failure, including a bad
// signature or an expired attempt, is a StateMismatch.
func ParseAttempt(secret, raw string, now time.Time) (*oauthflow.Attempt, error) {
	const op = "tokens.parse_state"
	var claims stateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, autherr.E(autherr.StateMismatch, op, err)
	}
	if claims.State == "" || claims.Provider == "" {
		return nil, autherr.Errorf(autherr.StateMismatch, op, "state cookie incomplete")
	}
	a := &oauthflow.Attempt{
		Provider:    claims.Provider,
		State:       claims.State,
		Verifier:    claims.Verifier,
		RedirectURL: claims.Redirect,
		Status:      oauthflow.Redirected,
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		a.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return a, nil
}
