// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/and161185/secrets/internal/limiter"
)

// MemoryDatabaseURL selects the in-process account store.
const MemoryDatabaseURL = "memory://"

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Config is parsed once at startup.
type Config struct {
	Port          string `env:"PORT,notEmpty"           validate:"numeric"`
	SessionSecret string `env:"SESSION_SECRET,notEmpty" validate:"min=16"`
	DatabaseURL   string `env:"DATABASE_URL,notEmpty"`

	OAuthProvider     string   `env:"OAUTH_PROVIDER"      envDefault:"google" validate:"alphanum"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID,notEmpty"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET,notEmpty"`
	OAuthCallbackURL  string   `env:"OAUTH_CALLBACK_URL,notEmpty" validate:"url"`
	OAuthAuthURL      string   `env:"OAUTH_AUTH_URL"      validate:"omitempty,url"`
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL"     validate:"omitempty,url"`
	OAuthUserInfoURL  string   `env:"OAUTH_USERINFO_URL"  validate:"omitempty,url"`
	OAuthScopes       []string `env:"OAUTH_SCOPES"        envSeparator:"," envDefault:"openid,profile"`

	SessionStore   string        `env:"SESSION_STORE"    envDefault:"memory" validate:"oneof=memory redis"`
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h"    validate:"gt=0"`
	RedisURL       string        `env:"REDIS_URL"        validate:"required_if=SessionStore redis"`
	CookieSecure   bool          `env:"COOKIE_SECURE"    envDefault:"false"`

	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR" validate:"omitempty,hostname_port"`

	LoginWindow      time.Duration `env:"LOGIN_WINDOW"       envDefault:"15m" validate:"gt=0"`
	LoginMaxFailures int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"   validate:"min=1"`
	LoginBlockFor    time.Duration `env:"LOGIN_BLOCK_FOR"    envDefault:"15m" validate:"gt=0"`

	Dev bool `env:"DEV" envDefault:"false"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads a fixed environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field rules and combinations the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.OAuthProvider != "google" && (c.OAuthAuthURL == "" || c.OAuthTokenURL == "" || c.OAuthUserInfoURL == "") {
		return errors.New("invalid config: OAUTH_AUTH_URL, OAUTH_TOKEN_URL and OAUTH_USERINFO_URL are required for a non-google provider")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return ":" + c.Port }

// MemoryDB reports whether accounts live in process memory.
func (c *Config) MemoryDB() bool { return c.DatabaseURL == MemoryDatabaseURL }

// OAuth2 returns the client config and the userinfo endpoint. Explicit URLs
// override the google defaults.
func (c *Config) OAuth2() (*oauth2.Config, string) {
	ep := google.Endpoint
	userInfo := googleUserInfoURL
	if c.OAuthAuthURL != "" {
		ep.AuthURL = c.OAuthAuthURL
	}
	if c.OAuthTokenURL != "" {
		ep.TokenURL = c.OAuthTokenURL
	}
	if c.OAuthUserInfoURL != "" {
		userInfo = c.OAuthUserInfoURL
	}
	return &oauth2.Config{
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		RedirectURL:  c.OAuthCallbackURL,
		Scopes:       c.OAuthScopes,
		Endpoint:     ep,
	}, userInfo
}

// Limiter maps the login throttling settings.
func (c *Config) Limiter() limiter.Settings {
	return limiter.Settings{Window: c.LoginWindow, MaxFails: c.LoginMaxFailures, BlockFor: c.LoginBlockFor}
}
