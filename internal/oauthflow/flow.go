package oauthflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/models"
	"github.com/quickauth/auth-service/internal/providers"
	"golang.org/x/oauth2"
)

// ProviderLookup resolves a provider by name.
type ProviderLookup interface {
	Get(name string) (providers.Provider, error)
}

// IdentityUpserter turns verified claims into a stored identity.
type IdentityUpserter interface {
	UpsertFromClaims(ctx context.Context, provider string, claims *providers.Claims) (*models.Identity, error)
}

// SessionCreator issues sessions for stored identities.
type SessionCreator interface {
	CreateSession(ctx context.Context, identity *models.Identity) (*models.Session, error)
}

// Config wires a Flow.
type Config struct {
	Providers       ProviderLookup
	Identities      IdentityUpserter
	Sessions        SessionCreator
	Ledger          Ledger
	StateTTL        time.Duration
	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
	Now             func() time.Time
}

// Flow runs the redirect, callback and code exchange sequence.
type Flow struct {
	cfg Config
}

func New(cfg Config) *Flow {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Flow{cfg: cfg}
}

// Start begins a sign-in with provider and returns the attempt to hand to
// the browser. The attempt's RedirectURL carries the state value.
func (f *Flow) Start(ctx context.Context, provider string) (*Attempt, error) {
	const op = "oauthflow.start"
	p, err := f.cfg.Providers.Get(provider)
	if err != nil {
		return nil, err
	}

	state, err := randomString(32)
	if err != nil {
		return nil, autherr.E(autherr.KindUnknown, op, err)
	}
	now := f.cfg.Now().UTC()
	a := &Attempt{
		Provider:  p.Name(),
		State:     state,
		Verifier:  oauth2.GenerateVerifier(),
		IssuedAt:  now,
		ExpiresAt: now.Add(f.cfg.StateTTL),
		Status:    Started,
	}

	lctx, cancel := context.WithTimeout(ctx, f.cfg.StoreTimeout)
	defer cancel()
	if err := f.cfg.Ledger.Put(lctx, a.State, f.cfg.StateTTL); err != nil {
		return nil, autherr.E(autherr.StoreUnavailable, op, err)
	}

	a.RedirectURL = p.AuthCodeURL(a.State, oauth2.S256ChallengeFromVerifier(a.Verifier))
	a.Status = Redirected
	return a, nil
}

// Complete validates cb against the issued attempt and, when everything
// checks out, exchanges the code and creates a session. issued may be nil
// when the browser presented no valid state cookie. On failure the returned
// error carries the reason kind and issued.Status is Failed.
func (f *Flow) Complete(ctx context.Context, issued *Attempt, cb Callback) (*Outcome, error) {
	const op = "oauthflow.complete"
	fail := func(err error) (*Outcome, error) {
		if issued != nil {
			issued.Status = Failed
		}
		return nil, err
	}

	if issued == nil {
		return fail(autherr.Errorf(autherr.StateMismatch, op, "no pending sign-in"))
	}
	issued.Status = CallbackReceived
	if issued.Expired(f.cfg.Now()) {
		return fail(autherr.Errorf(autherr.StateMismatch, op, "sign-in attempt expired"))
	}
	if cb.Provider != issued.Provider {
		return fail(autherr.Errorf(autherr.StateMismatch, op, "provider mismatch"))
	}
	if cb.State == "" || subtle.ConstantTimeCompare([]byte(cb.State), []byte(issued.State)) != 1 {
		return fail(autherr.Errorf(autherr.StateMismatch, op, "state mismatch"))
	}

	lctx, cancel := context.WithTimeout(ctx, f.cfg.StoreTimeout)
	outstanding, err := f.cfg.Ledger.Consume(lctx, issued.State)
	cancel()
	if err != nil {
		return fail(autherr.E(autherr.StoreUnavailable, op, err))
	}
	if !outstanding {
		return fail(autherr.Errorf(autherr.StateMismatch, op, "state already used or unknown"))
	}

	switch {
	case cb.Error == "access_denied":
		return fail(autherr.Errorf(autherr.UserDenied, op, "consent denied"))
	case cb.Error != "":
		return fail(autherr.Errorf(autherr.ProviderError, op, "provider returned %s: %s", cb.Error, cb.ErrorDescription))
	case cb.Code == "":
		return fail(autherr.Errorf(autherr.ProviderError, op, "callback without authorization code"))
	}

	p, err := f.cfg.Providers.Get(issued.Provider)
	if err != nil {
		return fail(err)
	}

	pctx, cancel := context.WithTimeout(ctx, f.cfg.ProviderTimeout)
	claims, err := p.Exchange(pctx, cb.Code, issued.Verifier)
	cancel()
	if err != nil {
		if !autherr.IsKind(err, autherr.ProviderError) {
			err = autherr.E(autherr.ProviderError, op, err)
		}
		return fail(err)
	}
	issued.Status = Exchanged

	identity, err := f.cfg.Identities.UpsertFromClaims(ctx, issued.Provider, claims)
	if err != nil {
		return fail(err)
	}
	sess, err := f.cfg.Sessions.CreateSession(ctx, identity)
	if err != nil {
		return fail(err)
	}

	issued.Status = Completed
	return &Outcome{Status: Completed, Identity: identity, Session: sess}, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
