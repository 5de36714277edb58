package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/tripsync/observe"
	"github.com/jonwraymond/tripsync/secret"
)

// EnvPrefix prefixes every variable.
const EnvPrefix = "TRIPSYNC_"

var (
	ErrMissingBaseURL     = errors.New("config: base url is required")
	ErrInvalidBaseURL     = errors.New("config: base url must be an absolute http(s) url")
	ErrInvalidRealtimeURL = errors.New("config: realtime url must be an absolute ws(s) url")
	ErrInvalidDuration    = errors.New("config: durations must be positive")
)

// Config is the full client configuration.
type Config struct {
	BaseURL     string `env:"BASE_URL"`
	RealtimeURL string `env:"REALTIME_URL"`
	AppKey      string `env:"APP_KEY"`
	UserAgent   string `env:"USER_AGENT" envDefault:"tripsync"`

	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	CacheGraceWindow     time.Duration `env:"CACHE_GRACE_WINDOW" envDefault:"60s"`
	MaxConcurrentFetches int64         `env:"MAX_CONCURRENT_FETCHES" envDefault:"8"`
	InvitationSettle     time.Duration `env:"INVITATION_SETTLE" envDefault:"1500ms"`

	TypingIdleWindow      time.Duration `env:"TYPING_IDLE_WINDOW" envDefault:"3s"`
	TypingMinInterval     time.Duration `env:"TYPING_MIN_INTERVAL" envDefault:"2s"`
	PingInterval          time.Duration `env:"PING_INTERVAL" envDefault:"25s"`
	ReconnectInitialDelay time.Duration `env:"RECONNECT_INITIAL_DELAY" envDefault:"500ms"`
	ReconnectMaxDelay     time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`

	Observe observe.Config `envPrefix:"OBSERVE_"`
}

// Load reads the process environment. See Parse.
func Load(ctx context.Context) (Config, error) {
	return Parse(ctx, nil)
}

// Parse reads environ (nil means the process environment), resolves
// secret references, derives RealtimeURL and validates the result.
func Parse(ctx context.Context, environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	resolver := secret.NewResolver(true)
	err := resolver.ResolveAll(ctx, map[string]*string{
		"base_url":     &cfg.BaseURL,
		"realtime_url": &cfg.RealtimeURL,
		"app_key":      &cfg.AppKey,
		"user_agent":   &cfg.UserAgent,
	})
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.RealtimeURL == "" && cfg.BaseURL != "" {
		if u, err := RealtimeURLFor(cfg.BaseURL); err == nil {
			cfg.RealtimeURL = u
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RealtimeURLFor maps an http(s) base url to the ws(s) endpoint /ws under it.
func RealtimeURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if !absolute(c.BaseURL, "http", "https") {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if !absolute(c.RealtimeURL, "ws", "wss") {
		return fmt.Errorf("%w: %q", ErrInvalidRealtimeURL, c.RealtimeURL)
	}

	durations := map[string]time.Duration{
		"request_timeout":         c.RequestTimeout,
		"typing_idle_window":      c.TypingIdleWindow,
		"typing_min_interval":     c.TypingMinInterval,
		"ping_interval":           c.PingInterval,
		"reconnect_initial_delay": c.ReconnectInitialDelay,
		"reconnect_max_delay":     c.ReconnectMaxDelay,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidDuration, name, d)
		}
	}
	if c.CacheGraceWindow < 0 || c.InvitationSettle < 0 {
		return fmt.Errorf("%w: cache grace window and invitation settle must not be negative", ErrInvalidDuration)
	}
	if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
		return fmt.Errorf("%w: reconnect_max_delay is below reconnect_initial_delay", ErrInvalidDuration)
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("config: max concurrent fetches must be positive, got %d", c.MaxConcurrentFetches)
	}
	return c.Observe.Validate()
}

func absolute(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && slices.Contains(schemes, u.Scheme)
}
