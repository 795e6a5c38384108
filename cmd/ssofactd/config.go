package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/newsfactory/ssofact/oidc"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when --config isn't set.
const DefaultConfigPath = "./ssofact.yaml"

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the daemon's configuration file.
type Config struct {
	Listen   string         `yaml:"listen"`
	LogLevel string         `yaml:"log_level"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
	Handlers HandlersConfig `yaml:"handlers"`
}

// ProviderConfig configures the ssoFACT client.
type ProviderConfig struct {
	Enabled      bool              `yaml:"enabled"`
	ServerDomain string            `yaml:"server_domain"`
	ClientID     string            `yaml:"client_id"`
	ClientSecret oidc.ClientSecret `yaml:"client_secret"`
	Scope        string            `yaml:"scope"`
	RFBEKey      string            `yaml:"rfbe_key"`
	RFBESecret   oidc.RFBESecret   `yaml:"rfbe_secret"`
	RedirectURL  string            `yaml:"redirect_url"`
	SiteURL      string            `yaml:"site_url"`
	CAFile       string            `yaml:"ca_file"`
	Timeout      time.Duration     `yaml:"timeout"`
	StateExpiry  time.Duration     `yaml:"state_expiry"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Backend        string        `yaml:"backend"`
	TTL            time.Duration `yaml:"ttl"`
	CookieName     string        `yaml:"cookie_name"`
	InsecureCookie bool          `yaml:"insecure_cookie"`
	Redis          RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when the session backend is "redis".
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// HandlersConfig tunes the http handlers.
type HandlersConfig struct {
	AuthPrefixes    []string `yaml:"auth_prefixes"`
	ConfirmationURL string   `yaml:"confirmation_url"`
	AccountURL      string   `yaml:"account_url"`
}

func defaultConfig() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Provider: ProviderConfig{
			Enabled:     true,
			StateExpiry: oidc.DefaultStateExpiry,
		},
		Session: SessionConfig{
			Backend: BackendMemory,
		},
	}
}

// LoadConfig reads the YAML file at path, unknown fields are rejected. The
// environment is applied on top of it, after loading .env if one exists. A
// missing file is only an error when required is true.
func LoadConfig(path string, required bool) (*Config, error) {
	const op = "LoadConfig"
	cfg := defaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: unable to load .env: %w", op, err)
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: unable to parse %s: %w", op, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("%s: unable to read %s: %w", op, path, err)
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"SSOFACT_LISTEN":              func(v string) { cfg.Listen = v },
		"SSOFACT_LOG_LEVEL":           func(v string) { cfg.LogLevel = v },
		"SSOFACT_ENABLED":             func(v string) { cfg.Provider.Enabled = parseBool(v, cfg.Provider.Enabled) },
		"SSOFACT_SERVER_DOMAIN":       func(v string) { cfg.Provider.ServerDomain = v },
		"SSOFACT_CLIENT_ID":           func(v string) { cfg.Provider.ClientID = v },
		"SSOFACT_CLIENT_SECRET":       func(v string) { cfg.Provider.ClientSecret = oidc.ClientSecret(v) },
		"SSOFACT_SCOPE":               func(v string) { cfg.Provider.Scope = v },
		"SSOFACT_RFBE_KEY":            func(v string) { cfg.Provider.RFBEKey = v },
		"SSOFACT_RFBE_SECRET":         func(v string) { cfg.Provider.RFBESecret = oidc.RFBESecret(v) },
		"SSOFACT_REDIRECT_URL":        func(v string) { cfg.Provider.RedirectURL = v },
		"SSOFACT_SITE_URL":            func(v string) { cfg.Provider.SiteURL = v },
		"SSOFACT_CA_FILE":             func(v string) { cfg.Provider.CAFile = v },
		"SSOFACT_TIMEOUT":             func(v string) { cfg.Provider.Timeout = parseDuration(v, cfg.Provider.Timeout) },
		"SSOFACT_STATE_EXPIRY":        func(v string) { cfg.Provider.StateExpiry = parseDuration(v, cfg.Provider.StateExpiry) },
		"SSOFACT_SESSION_BACKEND":     func(v string) { cfg.Session.Backend = v },
		"SSOFACT_SESSION_TTL":         func(v string) { cfg.Session.TTL = parseDuration(v, cfg.Session.TTL) },
		"SSOFACT_SESSION_COOKIE_NAME": func(v string) { cfg.Session.CookieName = v },
		"SSOFACT_SESSION_INSECURE":    func(v string) { cfg.Session.InsecureCookie = parseBool(v, cfg.Session.InsecureCookie) },
		"SSOFACT_REDIS_ADDRS":         func(v string) { cfg.Session.Redis.Addrs = splitAndTrim(v) },
		"SSOFACT_REDIS_PASSWORD":      func(v string) { cfg.Session.Redis.Password = v },
		"SSOFACT_REDIS_DB":            func(v string) { cfg.Session.Redis.DB = parseInt(v, cfg.Session.Redis.DB) },
		"SSOFACT_REDIS_KEY_PREFIX":    func(v string) { cfg.Session.Redis.KeyPrefix = v },
		"SSOFACT_CONFIRMATION_URL":    func(v string) { cfg.Handlers.ConfirmationURL = v },
		"SSOFACT_ACCOUNT_URL":         func(v string) { cfg.Handlers.AccountURL = v },
		"SSOFACT_AUTH_PREFIXES":       func(v string) { cfg.Handlers.AuthPrefixes = splitAndTrim(v) },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseDuration(val string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(val string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return i
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every problem of the config. The provider section is
// checked by oidc.Config.Validate.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	var result *multierror.Error
	if c.Listen == "" {
		result = multierror.Append(result, errors.New("listen is empty"))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("log_level %q is unknown", c.LogLevel))
	}
	if c.Provider.StateExpiry <= 0 {
		result = multierror.Append(result, errors.New("provider.state_expiry must be positive"))
	}
	if _, err := c.OIDCConfig(nil); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if len(c.Session.Redis.Addrs) == 0 {
			result = multierror.Append(result, errors.New("session.redis.addrs is empty"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("session.backend %q isn't one of %q or %q", c.Session.Backend, BackendMemory, BackendRedis))
	}
	if c.Session.TTL < 0 {
		result = multierror.Append(result, errors.New("session.ttl is negative"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// OIDCConfig converts the provider section into an oidc.Config.
func (c *Config) OIDCConfig(logger hclog.Logger) (*oidc.Config, error) {
	const op = "Config.OIDCConfig"
	p := c.Provider
	opts := []oidc.Option{
		oidc.WithEnabled(p.Enabled),
		oidc.WithScope(p.Scope),
		oidc.WithRegistrationCredentials(p.RFBEKey, p.RFBESecret),
		oidc.WithSiteURL(p.SiteURL),
		oidc.WithTimeout(p.Timeout),
	}
	if p.CAFile != "" {
		ca, err := os.ReadFile(p.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read provider.ca_file: %w", op, err)
		}
		opts = append(opts, oidc.WithProviderCA(string(ca)))
	}
	if logger != nil {
		opts = append(opts, oidc.WithLogger(logger))
	}
	oc, err := oidc.NewConfig(p.ServerDomain, p.ClientID, p.ClientSecret, p.RedirectURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return oc, nil
}
