package providers

import (
	"context"
	"sort"

	"github.com/quickauth/auth-service/internal/autherr"
)

// Claims are the identity facts a provider vouches for after a successful
// code exchange. Providers never create users or sessions.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Provider is one configured external identity provider.
type Provider interface {
	// Name returns the identifier used in routes, e.g. "google".
	Name() string

	// AuthCodeURL returns the authorization URL. State and the PKCE
	// challenge are supplied by the caller.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades the authorization code for verified claims.
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers. Later entries win on name clashes.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		if p != nil {
			m[p.Name()] = p
		}
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, autherr.Errorf(autherr.NotFound, "providers.get", "unknown oauth provider: %s", name)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
