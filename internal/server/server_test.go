package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/config"
	"github.com/quickauth/auth-service/internal/providers"
	"github.com/quickauth/auth-service/internal/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "google" }

func (stubProvider) AuthCodeURL(state, challenge string) string {
	return "https://accounts.example/auth?" + url.Values{"state": {state}}.Encode()
}

func (stubProvider) Exchange(ctx context.Context, code, verifier string) (*providers.Claims, error) {
	if code != "abc" {
		return nil, autherr.Errorf(autherr.ProviderError, "stub", "invalid_grant")
	}
	return &providers.Claims{Subject: "sub-9", Email: "grace@example.com", Name: "Grace"}, nil
}

func validConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Database.URL = "sqlite://:memory:"
	cfg.Google.ClientID = "cid"
	cfg.Google.ClientSecret = "csecret"
	cfg.Auth.Secret = "server-test-secret-0123456789abcdefgh"
	cfg.Auth.BaseURL = "http://localhost:3000"
	cfg.Auth.BasePath = "/api/auth"
	cfg.Auth.HomeURL = "/"
	cfg.Auth.ErrorURL = "/"
	cfg.Auth.TrustedOrigins = []string{"https://app.example.com"}
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.StateTTL = 10 * time.Minute
	cfg.Auth.StoreTimeout = 2 * time.Second
	cfg.Auth.ProviderTimeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Providers == nil {
		opts.Providers = []providers.Provider{stubProvider{}}
	}
	s := New(context.Background(), cfg, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return got
}

// signIn drives redirect and callback and returns the session cookie.
func signIn(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	w := serve(s, httptest.NewRequest("GET", "/api/auth/sign-in/social/google", nil))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/auth/callback/google?code=abc&state="+url.QueryEscape(loc.Query().Get("state")), nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = serve(s, req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestServer_MissingDatabaseURLDegrades(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""
	s := newTestServer(t, cfg, Options{})

	require.Error(t, s.Degraded())
	assert.Equal(t, autherr.ConfigMissing, autherr.KindOf(s.Degraded()))

	for _, target := range []string{"/api/auth/get-session", "/api/auth/sign-in/social/google", "/api/me"} {
		w := serve(s, httptest.NewRequest("GET", target, nil))
		require.Equal(t, http.StatusInternalServerError, w.Code, target)
		got := body(t, w)
		assert.Equal(t, "auth_unavailable", got["error"])
		assert.Contains(t, got["details"], "DATABASE_URL is not set")
		assert.NotEmpty(t, got["requestId"])
	}

	w := serve(s, httptest.NewRequest("POST", "/api/auth/sign-out", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = serve(s, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, httptest.NewRequest("GET", "/api/test", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API route works!", body(t, w)["message"])

	w = serve(s, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body(t, w)["reason"], "DATABASE_URL")

	w = serve(s, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_DegradedHidesDetailsInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Environment = "production"
	cfg.Auth.Secret = "short"
	s := newTestServer(t, cfg, Options{})
	gin.SetMode(gin.TestMode)

	w := serve(s, httptest.NewRequest("GET", "/api/auth/get-session", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "AUTH_SECRET")

	w = serve(s, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "AUTH_SECRET")
}

func TestServer_SQLiteLifecycle(t *testing.T) {
	s := newTestServer(t, validConfig(), Options{})
	require.NoError(t, s.Degraded())

	cookie := signIn(t, s)

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(cookie)
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	user := body(t, w)["user"].(map[string]any)
	assert.Equal(t, "grace@example.com", user["email"])

	w = serve(s, httptest.NewRequest("GET", "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(s, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"store": true}, body(t, w)["deps"])

	req = httptest.NewRequest("POST", "/api/auth/sign-out", nil)
	req.AddCookie(cookie)
	w = serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body(t, w)["revoked"])

	req = httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)
}

func TestServer_RedisSessionsAndLedger(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rdb.Close()

	s := newTestServer(t, validConfig(), Options{Redis: rdb})
	cookie := signIn(t, s)

	var sessionKeys int
	for _, k := range m.Keys() {
		if len(k) > len("session:") && k[:len("session:")] == "session:" {
			sessionKeys++
		}
	}
	assert.Equal(t, 1, sessionKeys)

	req := httptest.NewRequest("GET", "/api/auth/get-session", nil)
	req.AddCookie(cookie)
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body(t, w)["session"])

	w = serve(s, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"store": true, "redis": true}, body(t, w)["deps"])

	m.Close()
	req = httptest.NewRequest("GET", "/api/auth/get-session", nil)
	req.AddCookie(cookie)
	w = serve(s, req)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "store_unavailable", body(t, w)["error"])
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, validConfig(), Options{})

	req := httptest.NewRequest("OPTIONS", "/api/auth/sign-out", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(s, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/auth/ok", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(s, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimitAppliesToAuthRoutesOnly(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 1
	s := newTestServer(t, cfg, Options{})

	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest("GET", "/api/auth/ok", nil)).Code)
	w := serve(s, httptest.NewRequest("GET", "/api/auth/ok", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body(t, w)["error"])

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest("GET", "/health", nil)).Code)
	}
}

func TestServer_RateLimitKeysMeByIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 2
	s := newTestServer(t, cfg, Options{})

	// sign-in spends both tokens of the client IP bucket
	cookie := signIn(t, s)
	require.Equal(t, http.StatusTooManyRequests, serve(s, httptest.NewRequest("GET", "/api/auth/ok", nil)).Code)

	me := func() int {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.AddCookie(cookie)
		return serve(s, req).Code
	}
	assert.Equal(t, http.StatusOK, me())
	assert.Equal(t, http.StatusOK, me())
	assert.Equal(t, http.StatusTooManyRequests, me())

	// unauthenticated requests are rejected before they reach the limiter
	assert.Equal(t, http.StatusUnauthorized, serve(s, httptest.NewRequest("GET", "/api/me", nil)).Code)
}

func TestServer_SwaggerAndMetrics(t *testing.T) {
	s := newTestServer(t, validConfig(), Options{})

	w := serve(s, httptest.NewRequest("GET", "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/auth/get-session")

	serve(s, httptest.NewRequest("GET", "/api/auth/sign-in/social/google", nil))
	w = serve(s, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quickauth_signin_started_total")
}

func TestBuildProviders_GoogleWithoutNetwork(t *testing.T) {
	cfg := validConfig()
	list, err := buildProviders(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, providers.GoogleName, list[0].Name())
}
