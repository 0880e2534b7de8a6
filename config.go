package sessionkit

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries all engine settings. Configure it before Build; the engine
// treats it as immutable afterwards.
type Config struct {
	API     APIConfig     `envPrefix:"API_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	Refresh RefreshConfig `envPrefix:"REFRESH_"`
	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
}

// APIConfig points the engine at the remote identity API.
type APIConfig struct {
	BaseURL   string        `env:"BASE_URL"`
	Timeout   time.Duration `env:"TIMEOUT"`
	UserAgent string        `env:"USER_AGENT"`
}

// SessionConfig names the persistent-store keys. The engine is the only writer
// of these keys.
type SessionConfig struct {
	TokenKey    string `env:"TOKEN_KEY"`
	UserKey     string `env:"USER_KEY"`
	ProgressKey string `env:"PROGRESS_KEY"`
}

// RefreshConfig controls the background re-fetch of the canonical user that
// catches asynchronous server-side status changes (a verifier approving KYC).
type RefreshConfig struct {
	Enabled  bool          `env:"ENABLED"`
	Interval time.Duration `env:"INTERVAL"`
}

// OAuthConfig scopes the external-login handshake. Messages and redirect
// landings from any origin other than AllowedOrigin are discarded silently.
type OAuthConfig struct {
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
	ProviderURL   string `env:"PROVIDER_URL"`
}

const (
	defaultTokenKey    = "token"
	defaultUserKey     = "user"
	defaultProgressKey = "verificationProgress"

	defaultRefreshInterval = 45 * time.Second
	minRefreshInterval     = 5 * time.Second
	defaultAPITimeout      = 30 * time.Second
)

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:   defaultAPITimeout,
			UserAgent: "sessionkit",
		},
		Session: SessionConfig{
			TokenKey:    defaultTokenKey,
			UserKey:     defaultUserKey,
			ProgressKey: defaultProgressKey,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: defaultRefreshInterval,
		},
	}
}

// ConfigFromEnv returns the default configuration overridden by SESSIONKIT_*
// environment variables (SESSIONKIT_API_BASE_URL, SESSIONKIT_REFRESH_INTERVAL,
// and so on).
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SESSIONKIT_"}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("config: API.BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: API.BaseURL must be an absolute URL")
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = defaultAPITimeout
	}
	if c.Session.TokenKey == "" {
		c.Session.TokenKey = defaultTokenKey
	}
	if c.Session.UserKey == "" {
		c.Session.UserKey = defaultUserKey
	}
	if c.Session.ProgressKey == "" {
		c.Session.ProgressKey = defaultProgressKey
	}
	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = defaultRefreshInterval
	}
	if c.Refresh.Interval < minRefreshInterval {
		c.Refresh.Interval = minRefreshInterval
	}
	if c.OAuth.AllowedOrigin == "" {
		// Same-origin filtering defaults to the API origin.
		c.OAuth.AllowedOrigin = u.Scheme + "://" + u.Host
	}
	if o, err := url.Parse(c.OAuth.AllowedOrigin); err != nil || o.Scheme == "" || o.Host == "" {
		return errors.New("config: OAuth.AllowedOrigin must be scheme://host")
	}
	return nil
}
