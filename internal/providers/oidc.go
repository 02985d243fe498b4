package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/quickauth/auth-service/internal/autherr"
	"golang.org/x/oauth2"
)

const (
	GoogleName   = "google"
	KeycloakName = "keycloak"

	googleIssuer   = "https://accounts.google.com"
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

// OIDCProvider implements Provider with an OAuth2 authorization code flow
// (PKCE S256) and ID token verification.
type OIDCProvider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    TokenVerifier
}

// NewOIDCProvider assembles a provider from an oauth2 config and a verifier.
func NewOIDCProvider(name string, cfg *oauth2.Config, verifier TokenVerifier) *OIDCProvider {
	return &OIDCProvider{name: name, oauthConfig: cfg, verifier: verifier}
}

// Discover configures a provider through the issuer's discovery document.
func Discover(ctx context.Context, name, issuer, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, autherr.Errorf(autherr.ConfigMissing, "providers."+name, "%s oauth config missing required fields", name)
	}

	op, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, autherr.E(autherr.ProviderError, "providers."+name, fmt.Errorf("discover %s: %w", issuer, err))
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     op.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	v := NewOIDCVerifier(op.Verifier(&oidc.Config{ClientID: clientID}))
	return NewOIDCProvider(name, cfg, v), nil
}

// NewGoogle configures the Google provider from its published endpoints.
// Signing keys are fetched on first verification, so startup needs no network.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, autherr.Errorf(autherr.ConfigMissing, "providers.google", "google client id, secret and redirect url are required")
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   googleAuthURL,
			TokenURL:  googleTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{oidc.ScopeOpenID, "email", "profile"},
	}
	keys := oidc.NewRemoteKeySet(context.WithoutCancel(ctx), googleJWKSURL)
	v := NewOIDCVerifier(oidc.NewVerifier(googleIssuer, keys, &oidc.Config{ClientID: clientID}))
	return NewOIDCProvider(GoogleName, cfg, v), nil
}

// NewKeycloak configures a Keycloak realm, e.g. http://localhost:8081 + "auth".
func NewKeycloak(ctx context.Context, baseURL, realm, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	issuer := strings.TrimRight(baseURL, "/") + "/realms/" + realm
	return Discover(ctx, KeycloakName, issuer, clientID, clientSecret, redirectURL)
}

// WithVerifier swaps the ID token verifier, e.g. for InsecureVerifier.
func (p *OIDCProvider) WithVerifier(v TokenVerifier) *OIDCProvider {
	cp := *p
	cp.verifier = v
	return &cp
}

func (p *OIDCProvider) Name() string { return p.name }

func (p *OIDCProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error) {
	op := "providers." + p.name + ".exchange"

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, autherr.E(autherr.ProviderError, op, fmt.Errorf("token exchange: %w", err))
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, autherr.E(autherr.ProviderError, op, errors.New("no id_token in token response"))
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, autherr.E(autherr.ProviderError, op, fmt.Errorf("id_token verification: %w", err))
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, autherr.E(autherr.ProviderError, op, fmt.Errorf("id_token claims: %w", err))
	}
	if claims.Subject == "" {
		return nil, autherr.E(autherr.ProviderError, op, errors.New("id_token missing sub claim"))
	}
	return &claims, nil
}
