package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickauth/auth-service/handlers"
	"github.com/quickauth/auth-service/internal/config"
	"github.com/quickauth/auth-service/internal/oauthflow"
	"github.com/quickauth/auth-service/internal/providers"
	"github.com/quickauth/auth-service/internal/sessions"
	"github.com/quickauth/auth-service/pkg/logger"
	"github.com/quickauth/auth-service/pkg/metrics"
	"github.com/quickauth/auth-service/pkg/middleware"
	"github.com/redis/go-redis/v9"
)

// Options replaces external dependencies, mostly for tests.
type Options struct {
	// Providers, when non-nil, is used instead of building Google/Keycloak
	// from the config.
	Providers []providers.Provider
	// Redis overrides the client built from cfg.Redis.
	Redis *redis.Client
	// Registry receives the service collectors; defaults to the global one.
	Registry *prometheus.Registry
}

// Server is the assembled HTTP surface plus the resources it owns.
type Server struct {
	Engine *gin.Engine

	cfg     *config.Config
	auth    *authStack
	cause   error
	redis   *redis.Client
	started time.Time

	closeOnce sync.Once
	closers   []func() error
}

var registerDefault sync.Once

// New builds the router. It never fails: when the auth stack cannot be
// assembled the auth routes answer 500 auth_unavailable and Degraded reports
// why, while health, readiness and metrics keep serving.
func New(ctx context.Context, cfg *config.Config, opts Options) *Server {
	s := &Server{cfg: cfg, started: time.Now()}

	s.redis = opts.Redis
	if s.redis == nil && cfg.Redis.Host != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, s.redis.Close)
	}

	auth, closers, err := buildAuth(ctx, cfg, opts, s.redis)
	s.closers = append(s.closers, closers...)
	if err != nil {
		s.cause = err
		logger.Errorf("auth routes disabled: %v", err)
	} else {
		s.auth = auth
		logger.Infof("auth routes enabled: providers=%s store=%s sessions=%s", strings.Join(auth.providers, ","), auth.storeKind, auth.sessionKind)
	}

	s.Engine = s.router(opts)
	return s
}

// Degraded returns the reason the auth routes are disabled, or nil.
func (s *Server) Degraded() error { return s.cause }

// Close releases store and Redis connections.
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (s *Server) router(opts Options) *gin.Engine {
	prod := s.cfg.IsProduction()
	if prod {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID(), handlers.Recovery(prod), gin.Logger(), middleware.SecurityHeaders())

	origins := append([]string{s.cfg.Auth.BaseURL}, s.cfg.Auth.TrustedOrigins...)
	r.Use(middleware.CORS(origins))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", s.ready)
	r.GET("/api/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API route works!", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	if opts.Registry != nil {
		metrics.RegisterCollectors(opts.Registry)
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	} else {
		registerDefault.Do(func() { metrics.RegisterCollectors(prometheus.DefaultRegisterer) })
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	handlers.RegisterSwagger(r, s.cfg.Auth.BasePath)

	authGroup := r.Group("/")
	lim := s.rateLimiter()
	if lim != nil {
		authGroup.Use(lim)
	}

	if s.auth == nil {
		unavailable := handlers.Unavailable(s.cause, prod)
		authGroup.Any(strings.TrimRight(s.cfg.Auth.BasePath, "/")+"/*action", unavailable)
		r.GET("/api/me", unavailable)
		return r
	}

	s.auth.handler.Register(authGroup)
	// /api/me is limited after RequireSession so the bucket is per identity.
	me := []gin.HandlerFunc{middleware.RequireSession(s.auth.sessions, s.auth.cookies)}
	if lim != nil {
		me = append(me, lim)
	}
	r.GET("/api/me", append(me, handlers.Me)...)
	return r
}

func (s *Server) rateLimiter() gin.HandlerFunc {
	rl := s.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rl.UseRedis && s.redis != nil {
		win := time.Duration(rl.WindowSeconds) * time.Second
		return middleware.RedisRateLimitMiddleware(s.redis, rl.RPS, rl.Burst, win)
	}
	return middleware.RateLimitMiddleware(rl.RPS, rl.Burst)
}

// ready returns 200 only when the auth stack is up and its stores answer.
func (s *Server) ready(c *gin.Context) {
	uptime := time.Since(s.started).Round(time.Second).String()
	if s.auth == nil {
		reason := "auth unavailable"
		if !s.cfg.IsProduction() && s.cause != nil {
			reason = s.cause.Error()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": reason, "uptime": uptime})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Auth.StoreTimeout)
	defer cancel()

	ready := true
	deps := map[string]bool{}
	for name, check := range s.auth.checks {
		err := check(ctx)
		deps[name] = err == nil
		if err != nil {
			ready = false
			logger.Warnf("readiness: %s: %v", name, err)
		}
	}
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "dependency check failed", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}

// authStack is everything the auth routes need.
type authStack struct {
	handler     *handlers.AuthHandler
	sessions    *sessions.Service
	cookies     *sessions.Cookies
	checks      map[string]func(context.Context) error
	providers   []string
	storeKind   string
	sessionKind string
}

func buildAuth(ctx context.Context, cfg *config.Config, opts Options, rdb *redis.Client) (*authStack, []func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	st, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}
	stack := &authStack{
		checks:      map[string]func(context.Context) error{"store": st.ping},
		storeKind:   st.kind,
		sessionKind: st.kind,
	}

	sessionRepo := st.sessions
	var ledger oauthflow.Ledger = oauthflow.NewMemoryLedger()
	if rdb != nil {
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
		ledger = oauthflow.NewRedisLedger(rdb, "oauth:state:")
		stack.sessionKind = "redis"
		stack.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	list := opts.Providers
	if list == nil {
		list, err = buildProviders(ctx, cfg)
		if err != nil {
			return nil, st.closers, err
		}
	}
	registry := providers.NewRegistry(list...)
	stack.providers = registry.Names()

	idSvc := identitiesService(st, cfg)
	stack.sessions = sessions.NewService(sessionRepo, idSvc, sessions.Options{
		TTL:          cfg.Auth.SessionTTL,
		StoreTimeout: cfg.Auth.StoreTimeout,
	})
	stack.cookies = sessions.NewCookies(cfg.Auth.Secret, cfg.IsProduction())

	flow := oauthflow.New(oauthflow.Config{
		Providers:       registry,
		Identities:      idSvc,
		Sessions:        stack.sessions,
		Ledger:          ledger,
		StateTTL:        cfg.Auth.StateTTL,
		ProviderTimeout: cfg.Auth.ProviderTimeout,
		StoreTimeout:    cfg.Auth.StoreTimeout,
	})
	stack.handler = handlers.NewAuthHandler(cfg, flow, stack.sessions, stack.cookies)
	return stack, st.closers, nil
}

func buildProviders(ctx context.Context, cfg *config.Config) ([]providers.Provider, error) {
	insecure := cfg.Auth.AllowInsecureToken && !cfg.IsProduction()
	if cfg.Auth.AllowInsecureToken && cfg.IsProduction() {
		logger.Warn("ALLOW_INSECURE_TOKEN ignored in production")
	}

	google, err := providers.NewGoogle(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.RedirectURL(providers.GoogleName))
	if err != nil {
		return nil, err
	}
	if insecure {
		logger.Warn("enabling insecure ID token verification (integration mode)")
		google = google.WithVerifier(providers.NewInsecureVerifier())
	}
	list := []providers.Provider{google}

	if cfg.KeycloakEnabled() {
		kc, err := providers.NewKeycloak(ctx, cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret, cfg.RedirectURL(providers.KeycloakName))
		if err != nil {
			logger.Warnf("keycloak provider disabled: %v", err)
		} else {
			if insecure {
				kc = kc.WithVerifier(providers.NewInsecureVerifier())
			}
			list = append(list, kc)
		}
	}
	return list, nil
}
