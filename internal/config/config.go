package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from KUBARR_* environment variables.
type Config struct {
	Port           int    `envconfig:"PORT" default:"8000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	KubeconfigPath string `envconfig:"KUBECONFIG_PATH" default:""`
	Namespace      string `envconfig:"NAMESPACE" default:"media"`
	Version        string `envconfig:"VERSION" default:"dev"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"12"`

	// BaseURL is the externally reachable dashboard URL. The OAuth2 issuer
	// is BaseURL + "/auth".
	BaseURL string `envconfig:"BASE_URL" default:"http://kubarr-dashboard:8000"`

	// LoginURL and RegisterURL are the frontend pages that render the login
	// and registration forms. The /auth/login and /auth/register routes only
	// accept the form POSTs, so both must point at the frontend.
	LoginURL    string `envconfig:"LOGIN_URL" default:"/login"`
	RegisterURL string `envconfig:"REGISTER_URL" default:"/register"`

	JWTPrivateKeyPath string `envconfig:"JWT_PRIVATE_KEY_PATH" default:""`
	JWTPublicKeyPath  string `envconfig:"JWT_PUBLIC_KEY_PATH" default:""`
	JWTKeyID          string `envconfig:"JWT_KEY_ID" default:"kubarr-key-1"`

	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	AuthCodeTTL     time.Duration `envconfig:"AUTH_CODE_TTL" default:"10m"`

	RegistrationEnabled         bool `envconfig:"REGISTRATION_ENABLED" default:"true"`
	RegistrationRequireApproval bool `envconfig:"REGISTRATION_REQUIRE_APPROVAL" default:"true"`

	// TrustedUserHeader names a header set by the authenticating reverse
	// proxy (e.g. X-Auth-Request-User). Empty disables header identity.
	TrustedUserHeader string `envconfig:"TRUSTED_USER_HEADER" default:""`

	PurgeInterval time.Duration `envconfig:"PURGE_INTERVAL" default:"10m"`

	// AuthRateLimit is the sustained per-IP request rate allowed on the
	// credential endpoints, with AuthRateBurst as the bucket size.
	AuthRateLimit float64 `envconfig:"AUTH_RATE_LIMIT" default:"5"`
	AuthRateBurst int     `envconfig:"AUTH_RATE_BURST" default:"20"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("kubarr", &cfg); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"KUBARR_ACCESS_TOKEN_TTL", c.AccessTokenTTL},
		{"KUBARR_REFRESH_TOKEN_TTL", c.RefreshTokenTTL},
		{"KUBARR_AUTH_CODE_TTL", c.AuthCodeTTL},
		{"KUBARR_PURGE_INTERVAL", c.PurgeInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

// Issuer returns the OAuth2/OIDC issuer identifier.
func (c *Config) Issuer() string {
	return c.BaseURL + "/auth"
}
