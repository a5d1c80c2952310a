// Package config handles application configuration via environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the authorization server.
type Config struct {
	// Server settings
	Host string `env:"OAUTH_HOST" env-default:"0.0.0.0"`
	Port int    `env:"OAUTH_PORT" env-default:"8080"`

	// Issuer URL reported by introspection
	IssuerURL string `env:"OAUTH_ISSUER_URL" env-default:"http://localhost:8080"`

	// Storage settings
	Store          string `env:"OAUTH_STORE" env-default:"memory"` // memory or redis
	RedisAddr      string `env:"OAUTH_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword  string `env:"OAUTH_REDIS_PASSWORD"`
	RedisDB        int    `env:"OAUTH_REDIS_DB" env-default:"0"`
	RedisKeyPrefix string `env:"OAUTH_REDIS_KEY_PREFIX" env-default:"oauth:"`

	// Grant and token settings
	CodeTTL                  time.Duration `env:"OAUTH_CODE_TTL" env-default:"10m"`
	AccessTokenTTL           time.Duration `env:"OAUTH_ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL          time.Duration `env:"OAUTH_REFRESH_TOKEN_TTL" env-default:"720h"`   // 30 days
	MaxAuthorizationLifetime time.Duration `env:"OAUTH_MAX_AUTH_LIFETIME" env-default:"2160h"`  // 90 days
	RefreshGracePeriod       time.Duration `env:"OAUTH_REFRESH_GRACE_PERIOD" env-default:"2m"`

	// StrictMode requires PKCE for public clients and rotates refresh
	// tokens on every refresh.
	StrictMode bool `env:"OAUTH_STRICT_MODE" env-default:"true"`

	// Consent settings
	ConsentTTL           time.Duration `env:"OAUTH_CONSENT_TTL" env-default:"720h"`            // 30 days
	ConsentRenewalWindow time.Duration `env:"OAUTH_CONSENT_RENEWAL_WINDOW" env-default:"168h"` // 7 days
	ConsentMaxLifetime   time.Duration `env:"OAUTH_CONSENT_MAX_LIFETIME" env-default:"2160h"`  // 90 days
	AllowScopeGrowth     bool          `env:"OAUTH_ALLOW_SCOPE_GROWTH" env-default:"false"`
	ApprovalTTL          time.Duration `env:"OAUTH_APPROVAL_TTL" env-default:"10m"`

	// Rate limiting (requests per minute per IP on /token and /authorize)
	TokenRateLimit int `env:"OAUTH_TOKEN_RATE_LIMIT" env-default:"60"`

	// Logging
	LogLevel  string `env:"OAUTH_LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"OAUTH_LOG_FORMAT" env-default:"json"` // json or text

	// Bootstrap clients (created on startup if not exists)
	// Format: "client_id|client_secret|redirect_uri" (use | as delimiter to avoid URL conflicts)
	// Multiple redirect URIs separated by space: "client_id|secret|http://uri1 http://uri2"
	// Multiple clients separated by comma: "client1|secret1|uri1,client2|secret2|uri2"
	// Empty secret for public clients: "public-app||http://localhost:3000/callback"
	BootstrapClients string `env:"OAUTH_BOOTSTRAP_CLIENTS"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Store != "memory" && cfg.Store != "redis" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	return &cfg, nil
}

// Addr returns the server address in host:port format.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BootstrapClient represents a client to be created on startup.
type BootstrapClient struct {
	ID           string
	Secret       string
	RedirectURIs []string
	Public       bool
}

// ParseBootstrapClients parses the OAUTH_BOOTSTRAP_CLIENTS environment
// variable. Format: "client_id|client_secret|redirect_uri" (uses | as
// delimiter to avoid URL conflicts); multiple redirect URIs separated by
// whitespace.
func (c *Config) ParseBootstrapClients() []BootstrapClient {
	if c.BootstrapClients == "" {
		return nil
	}

	var clients []BootstrapClient
	for _, entry := range strings.Split(c.BootstrapClients, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		if len(parts) < 3 {
			continue
		}

		secret := strings.TrimSpace(parts[1])
		client := BootstrapClient{
			ID:           strings.TrimSpace(parts[0]),
			Secret:       secret,
			RedirectURIs: strings.Fields(parts[2]),
			Public:       secret == "",
		}
		clients = append(clients, client)
	}
	return clients
}
