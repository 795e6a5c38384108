package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	sdkHttp "github.com/newsfactory/ssofact/sdk/http"
	"golang.org/x/oauth2"
)

// AuthorizationRedirectBuilder starts an authorization code flow.
type AuthorizationRedirectBuilder interface {
	// BuildAuthorizationRedirect returns the URL to send the user to and the
	// State the caller must store in the user's session before redirecting.
	BuildAuthorizationRedirect(ctx context.Context, target string) (string, *State, error)
}

// TokenExchanger exchanges an authorization code for a Token.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, target string) (*Token, error)
}

// UserInfoFetcher fetches the canonical UserInfo of an authenticated user.
type UserInfoFetcher interface {
	UserInfo(ctx context.Context, t *Token) (*UserInfo, error)
}

// EndSessionResolver returns the URL that ends the user's ssoFACT session.
type EndSessionResolver interface {
	EndSessionURL(redirectURL string) (string, error)
}

// PasswordResetPageID is the ssoFACT page id of the password reset form.
const PasswordResetPageID = "53"

// Provider is the ssoFACT implementation of the authorization code flow. A
// Provider is bound to one Config; a changed Config requires a new Provider.
type Provider struct {
	config      *Config
	endpoints   Endpoints
	provider    *oidc.Provider
	client      *http.Client
	logger      hclog.Logger
	stateExpiry time.Duration
}

var (
	_ AuthorizationRedirectBuilder = (*Provider)(nil)
	_ TokenExchanger               = (*Provider)(nil)
	_ UserInfoFetcher              = (*Provider)(nil)
	_ EndSessionResolver           = (*Provider)(nil)
)

// NewProvider creates a Provider. It doesn't make any requests: the
// endpoints are derived from the Config instead of being discovered.
//
// Supported options: WithLogger, WithHTTPClient, WithStateExpiry
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	eps, err := ResolveEndpoints(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getClientOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		if client, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	logger := opts.withLogger
	if logger == nil {
		logger = c.logger()
	}
	pc := &oidc.ProviderConfig{
		IssuerURL:   serverURL(c.ServerDomain),
		AuthURL:     eps.Authorization,
		TokenURL:    eps.Token,
		UserInfoURL: eps.UserInfo,
	}
	return &Provider{
		config:      c,
		endpoints:   eps,
		provider:    pc.NewProvider(sdkHttp.ClientContext(context.Background(), client)),
		client:      client,
		logger:      logger.Named("ssofact"),
		stateExpiry: opts.withStateExpiry,
	}, nil
}

// Endpoints returns the provider's endpoints.
func (p *Provider) Endpoints() Endpoints { return p.endpoints }

// Config returns the provider's config.
func (p *Provider) Config() *Config { return p.config }

// RedirectURI returns the callback URL for the target. ssoFACT sends the user
// back to it with the "code" and "state" parameters appended.
func (p *Provider) RedirectURI(target string) (string, error) {
	const op = "Provider.RedirectURI"
	u, err := url.Parse(p.config.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%s: redirect URL is invalid: %v: %w", op, err, ErrInvalidConfig)
	}
	q := u.Query()
	q.Set("target", target)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AuthURL will generate a URL the caller can use to kick off an authorization
// code flow with ssoFACT for the State.
func (p *Provider) AuthURL(ctx context.Context, s *State) (string, error) {
	const op = "Provider.AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.Token == "" {
		return "", fmt.Errorf("%s: state token is empty: %w", op, ErrInvalidParameter)
	}
	redirectURI, err := p.RedirectURI(s.Target)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	oauth2Config := p.oauth2Config(redirectURI)
	// scope is always sent, empty or not
	return oauth2Config.AuthCodeURL(s.Token, oauth2.SetAuthURLParam("scope", p.config.Scope)), nil
}

// BuildAuthorizationRedirect creates a new State for target and the
// authorization URL for it. The caller must store the State in the session
// before redirecting; a stored State from an earlier attempt is superseded.
func (p *Provider) BuildAuthorizationRedirect(ctx context.Context, target string) (string, *State, error) {
	const op = "Provider.BuildAuthorizationRedirect"
	s, err := NewState(target, p.stateExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := p.AuthURL(ctx, s)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, s, nil
}

// Exchange will request a token from the token endpoint, using the
// authorizationCode and the target it received in the callback. Codes are
// single use, so a failed exchange is never retried.
func (p *Provider) Exchange(ctx context.Context, authorizationCode, target string) (*Token, error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	redirectURI, err := p.RedirectURI(target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oauth2Config := p.oauth2Config(redirectURI)
	oauth2Token, err := oauth2Config.Exchange(sdkHttp.ClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		var upstreamErr *UpstreamError
		var retrieveErr *oauth2.RetrieveError
		switch {
		case errors.As(err, &retrieveErr):
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			upstreamErr = NewUpstreamError(op, p.endpoints.Token, status, retrieveErr.Body, "token request failed", err)
		default:
			upstreamErr = NewUpstreamError(op, p.endpoints.Token, 0, nil, "unable to exchange auth code with provider", err)
		}
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	t, err := NewToken(oauth2Token)
	if err != nil {
		upstreamErr := NewUpstreamError(op, p.endpoints.Token, 0, nil, "token response is invalid", err)
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	return t, nil
}

// UserInfo gets the user's claims from the user endpoint with the Token's
// bearer access token, and remaps them onto the canonical claims.
func (p *Provider) UserInfo(ctx context.Context, t *Token) (*UserInfo, error) {
	const op = "Provider.UserInfo"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	ui, err := p.provider.UserInfo(sdkHttp.ClientContext(ctx, p.client), t.StaticTokenSource())
	if err != nil {
		upstreamErr := NewUpstreamError(op, p.endpoints.UserInfo, 0, nil, "provider UserInfo request failed", err)
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	var claims json.RawMessage
	if err := ui.Claims(&claims); err != nil {
		upstreamErr := NewUpstreamError(op, p.endpoints.UserInfo, 0, nil, "failed to decode UserInfo claims", err)
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	raw, err := DecodeClaims(claims)
	if err != nil {
		upstreamErr := NewUpstreamError(op, p.endpoints.UserInfo, 0, nil, "failed to decode UserInfo claims", err)
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	p.logger.Debug("userinfo", "userinfo", raw)
	info, err := MapUserInfo(raw)
	if err != nil {
		upstreamErr := NewUpstreamError(op, p.endpoints.UserInfo, 0, nil, "user info is incomplete", err)
		p.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	return info, nil
}

// EndSessionURL returns the ssoFACT URL which ends the user's session and then
// sends the user to redirectURL. The configured SiteURL is used when
// redirectURL is empty.
func (p *Provider) EndSessionURL(redirectURL string) (string, error) {
	const op = "Provider.EndSessionURL"
	if redirectURL == "" {
		redirectURL = p.config.SiteURL
	}
	if redirectURL == "" {
		return "", fmt.Errorf("%s: site URL is empty: %w", op, ErrInvalidConfig)
	}
	q := url.Values{"redirect_uri": {redirectURL}}
	return p.endpoints.EndSession + "/" + url.PathEscape(p.config.ClientID) + "?" + q.Encode(), nil
}

// PasswordResetURL returns the URL of the ssoFACT password reset form, which
// sends the user to next afterwards.
func (p *Provider) PasswordResetURL(next string) string {
	q := url.Values{
		"pageid": {PasswordResetPageID},
		"next":   {next},
	}
	return p.endpoints.PasswordReset + "?" + q.Encode()
}

// LoginFormAction returns the action of a login form that posts credentials
// directly to ssoFACT, which continues to authURL on success.
func (p *Provider) LoginFormAction(authURL string) string {
	return serverURL(p.config.ServerDomain) + "/?" + url.Values{"next": {authURL}}.Encode()
}

// RegisterFormAction returns the action of a registration form that posts
// directly to ssoFACT, which continues to authURL on success.
func (p *Provider) RegisterFormAction(authURL string) string {
	return serverURL(p.config.ServerDomain) + PathRegisterForm + "?" + url.Values{"next": {authURL}}.Encode()
}

func (p *Provider) oauth2Config(redirectURI string) *oauth2.Config {
	endpoint := p.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURI,
		Endpoint:     endpoint,
	}
}

func (p *Provider) logUpstream(e *UpstreamError) {
	p.logger.Error("upstream request failed", "op", e.Op, "endpoint", e.Endpoint, "status", e.StatusCode, "body", e.Body, "error", e.Wrapped)
}
