package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Google    GoogleConfig
	Keycloak  KeycloakConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL           string
	MongoDatabase string
	Timeout       time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// AuthConfig covers the session lifecycle and the auth HTTP surface.
type AuthConfig struct {
	Secret             string
	BaseURL            string
	BasePath           string
	HomeURL            string
	ErrorURL           string
	TrustedOrigins     []string
	SessionTTL         time.Duration
	StateTTL           time.Duration
	StoreTimeout       time.Duration
	ProviderTimeout    time.Duration
	AllowInsecureToken bool
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

const minSecretLength = 32

// LoadConfig loads configuration from environment variables and .env files.
// It never exits the process; call Validate to find out whether the auth
// routes can be served.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env.local", ".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("DATABASE_TIMEOUT", "10s")
	v.SetDefault("MONGODB_DATABASE", "auth")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("AUTH_BASE_PATH", "/api/auth")
	v.SetDefault("AUTH_HOME_URL", "/")
	v.SetDefault("AUTH_ERROR_URL", "/")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("STATE_TTL", "10m")
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	baseURL := v.GetString("AUTH_BASE_URL")
	if baseURL == "" {
		baseURL = v.GetString("APP_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  strings.ToLower(v.GetString("SERVER_ENVIRONMENT")),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
			MongoDatabase: v.GetString("MONGODB_DATABASE"),
			Timeout:       v.GetDuration("DATABASE_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("KEYCLOAK_URL"),
			Realm:        v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: os.Getenv("KEYCLOAK_CLIENT_SECRET"),
		},
		Auth: AuthConfig{
			Secret:             os.Getenv("AUTH_SECRET"),
			BaseURL:            strings.TrimRight(baseURL, "/"),
			BasePath:           "/" + strings.Trim(v.GetString("AUTH_BASE_PATH"), "/"),
			HomeURL:            v.GetString("AUTH_HOME_URL"),
			ErrorURL:           v.GetString("AUTH_ERROR_URL"),
			TrustedOrigins:     splitList(v.GetString("AUTH_TRUSTED_ORIGINS")),
			SessionTTL:         v.GetDuration("SESSION_TTL"),
			StateTTL:           v.GetDuration("STATE_TTL"),
			StoreTimeout:       v.GetDuration("STORE_TIMEOUT"),
			ProviderTimeout:    v.GetDuration("PROVIDER_TIMEOUT"),
			AllowInsecureToken: strings.EqualFold(strings.TrimSpace(v.GetString("ALLOW_INSECURE_TOKEN")), "true"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in a production deployment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production" || c.Server.Environment == "prod"
}

// KeycloakEnabled reports whether the optional Keycloak provider is configured.
func (c *Config) KeycloakEnabled() bool {
	return c.Keycloak.URL != "" && c.Keycloak.Realm != "" && c.Keycloak.ClientID != ""
}

// RedirectURL returns the provider callback URL for the given provider name.
func (c *Config) RedirectURL(provider string) string {
	return c.Auth.BaseURL + c.Auth.BasePath + "/callback/" + provider
}

// Validate checks everything the auth routes need. The returned error is a
// ConfigMissing *autherr.Error naming every missing or malformed key.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is not set")
	} else if !SupportedDatabaseURL(c.Database.URL) {
		problems = append(problems, "DATABASE_URL has an unsupported scheme")
	}
	if c.Google.ClientID == "" {
		problems = append(problems, "GOOGLE_CLIENT_ID is not set")
	}
	if c.Google.ClientSecret == "" {
		problems = append(problems, "GOOGLE_CLIENT_SECRET is not set")
	}
	switch {
	case c.Auth.Secret == "":
		problems = append(problems, "AUTH_SECRET is not set")
	case len(c.Auth.Secret) < minSecretLength:
		problems = append(problems, "AUTH_SECRET must be at least 32 characters")
	}
	if u, err := url.Parse(c.Auth.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "AUTH_BASE_URL must be an absolute URL")
	}
	for _, o := range c.Auth.TrustedOrigins {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "AUTH_TRUSTED_ORIGINS contains an invalid origin: "+o)
		}
	}
	if c.Auth.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.Auth.StateTTL <= 0 {
		problems = append(problems, "STATE_TTL must be positive")
	}
	if c.Auth.StoreTimeout <= 0 {
		problems = append(problems, "STORE_TIMEOUT must be positive")
	}
	if c.Auth.ProviderTimeout <= 0 {
		problems = append(problems, "PROVIDER_TIMEOUT must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return autherr.Errorf(autherr.ConfigMissing, "config.validate", "%s", strings.Join(problems, "; "))
}

// SupportedDatabaseURL reports whether the connection string names a store
// this service can open.
func SupportedDatabaseURL(raw string) bool {
	for _, p := range []string{"postgres://", "postgresql://", "sqlite://", "file:", "mongodb://", "mongodb+srv://"} {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
