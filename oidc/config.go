package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	sdkHttp "github.com/newsfactory/ssofact/sdk/http"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// RFBESecret is the secret half of the static key pair used by the ssoFACT
// registration API.
type RFBESecret string

// RedactedRFBESecret is the redacted string or json for a registration API secret
const RedactedRFBESecret = "[REDACTED: rfbe secret]"

// String will redact the secret
func (t RFBESecret) String() string {
	return RedactedRFBESecret
}

// MarshalJSON will redact the secret
func (t RFBESecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRFBESecret)
}

// Config represents the configuration of the ssoFACT client. It's loaded once
// and must not be modified while requests are handled.
type Config struct {
	// Enabled must be true for any flow to run. See IsActive().
	Enabled bool

	// ServerDomain is the bare host (optionally with a port) of the ssoFACT
	// server, for example "login.example.com". Every endpoint is derived from
	// it.
	ServerDomain string

	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Scope is sent verbatim with authorization requests. ssoFACT rejects
	// unsupported scopes, so it's usually empty.
	Scope string

	// RFBEKey and RFBESecret authenticate requests to the registration API.
	RFBEKey    string
	RFBESecret RFBESecret

	// RedirectURL is the absolute URL of the callback handler.
	RedirectURL string

	// SiteURL is the absolute URL of the site root. ssoFACT sends users back to
	// it after ending their session.
	SiteURL string

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	// Timeout bounds every outbound call. Defaults to sdkHttp.DefaultTimeout.
	Timeout time.Duration

	// Logger is an optional logger
	Logger hclog.Logger
}

// NewConfig composes a new, enabled config.
// Supported options:
//
//	WithScope
//	WithRegistrationCredentials
//	WithSiteURL
//	WithProviderCA
//	WithTimeout
//	WithEnabled
//	WithLogger
func NewConfig(serverDomain, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Enabled:      opts.withEnabled,
		ServerDomain: serverDomain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        opts.withScope,
		RFBEKey:      opts.withRFBEKey,
		RFBESecret:   opts.withRFBESecret,
		RedirectURL:  redirectURL,
		SiteURL:      opts.withSiteURL,
		ProviderCA:   opts.withProviderCA,
		Timeout:      opts.withTimeout,
		Logger:       opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. It reports every problem found, and each of them
// matches ErrInvalidConfig. It doesn't make any network requests.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if err := ValidateServerDomain(c.ServerDomain); err != nil {
		result = multierror.Append(result, err)
	}
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidConfig))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client secret is empty: %w", ErrInvalidConfig))
	}
	if err := validateAbsoluteURL("redirect URL", c.RedirectURL); err != nil {
		result = multierror.Append(result, err)
	}
	if c.SiteURL != "" {
		if err := validateAbsoluteURL("site URL", c.SiteURL); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout %s is negative: %w", c.Timeout, ErrInvalidConfig))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsActive reports whether the client is enabled and completely configured,
// including the registration API credentials. Every flow is disabled when it
// returns false.
func (c *Config) IsActive() bool {
	if c == nil || !c.Enabled {
		return false
	}
	if c.RFBEKey == "" || c.RFBESecret == "" {
		return false
	}
	return c.Validate() == nil
}

// Endpoints derives the ssoFACT endpoints from the configured server domain.
func (c *Config) Endpoints() (Endpoints, error) {
	return ResolveEndpoints(c)
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HTTPClient(opt ...sdkHttp.Option) (*http.Client, error) {
	const op = "Config.HTTPClient"
	opt = append([]sdkHttp.Option{sdkHttp.WithTimeout(c.Timeout)}, opt...)
	client, err := sdkHttp.NewClient(c.ProviderCA, opt...)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

func (c *Config) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

// ValidateServerDomain verifies d is a bare host with an optional port.
func ValidateServerDomain(d string) error {
	if d == "" {
		return fmt.Errorf("server domain is empty: %w", ErrInvalidConfig)
	}
	if strings.ContainsAny(d, " \t\r\n/\\?#@") {
		return fmt.Errorf("server domain %q must be a host without scheme or path: %w", d, ErrInvalidConfig)
	}
	u, err := url.Parse("https://" + d)
	if err != nil {
		return fmt.Errorf("server domain %q is invalid: %v: %w", d, err, ErrInvalidConfig)
	}
	if u.Host != d || u.Hostname() == "" {
		return fmt.Errorf("server domain %q is not a valid host: %w", d, ErrInvalidConfig)
	}
	return nil
}

func validateAbsoluteURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty: %w", name, ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %v: %w", name, raw, err, ErrInvalidConfig)
	}
	if !strutil.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s %q scheme is not http or https: %w", name, raw, ErrInvalidConfig)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host: %w", name, raw, ErrInvalidConfig)
	}
	return nil
}

// configOptions is the set of available options
type configOptions struct {
	withEnabled    bool
	withScope      string
	withRFBEKey    string
	withRFBESecret RFBESecret
	withSiteURL    string
	withProviderCA string
	withTimeout    time.Duration
	withLogger     hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withEnabled: true,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScope provides an optional scope for authorization requests
func WithScope(scope string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScope = scope
		}
	}
}

// WithRegistrationCredentials provides the key pair of the registration API
func WithRegistrationCredentials(key string, secret RFBESecret) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRFBEKey = key
			o.withRFBESecret = secret
		}
	}
}

// WithSiteURL provides the absolute URL of the site root
func WithSiteURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSiteURL = u
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithTimeout provides an optional timeout for outbound calls
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithEnabled overrides the default (enabled) state of a new config
func WithEnabled(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withEnabled = enabled
		}
	}
}
