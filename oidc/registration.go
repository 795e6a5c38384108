package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

const (
	// StatusEmailNotRegistered is the vendor status returned by the email
	// check when no account uses the address.
	StatusEmailNotRegistered = 607

	// HeaderRFBEKey and HeaderRFBESecret carry the registration API
	// credentials.
	HeaderRFBEKey    = "rfbe-key"
	HeaderRFBESecret = "rfbe-secret"

	maxResponseBody = 1 << 20
)

// EmailStatus is the successful result of Registrar.IsEmailRegistered, which
// only succeeds for addresses that aren't registered yet.
type EmailStatus struct {
	StatusCode int
	Messages   []string
}

// CreatedUser is the successful result of Registrar.CreateUser.
type CreatedUser struct {
	UserID   string
	Messages []string
}

// Registrar calls the ssoFACT registration API. It's unrelated to the
// authorization code flow and authenticates with the static rfbe key pair.
// Requests are never retried, since registration isn't idempotent.
type Registrar struct {
	config    *Config
	endpoints Endpoints
	client    *http.Client
	logger    hclog.Logger
}

// NewRegistrar creates a Registrar.
//
// Supported options: WithLogger, WithHTTPClient
func NewRegistrar(c *Config, opt ...Option) (*Registrar, error) {
	const op = "NewRegistrar"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	eps, err := ResolveEndpoints(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var result *multierror.Error
	if c.RFBEKey == "" {
		result = multierror.Append(result, fmt.Errorf("rfbe key is empty: %w", ErrInvalidConfig))
	}
	if c.RFBESecret == "" {
		result = multierror.Append(result, fmt.Errorf("rfbe secret is empty: %w", ErrInvalidConfig))
	}
	if err := result.ErrorOrNil(); err != nil {
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
	return &Registrar{
		config:    c,
		endpoints: eps,
		client:    client,
		logger:    logger.Named("ssofact.registration"),
	}, nil
}

// IsEmailRegistered asks ssoFACT whether email is in use. A nil error means the
// address isn't registered yet. Any other vendor status is returned as a
// *ValidationError for the "email" field carrying the vendor's first message.
func (r *Registrar) IsEmailRegistered(ctx context.Context, email string) (*EmailStatus, error) {
	const op = "Registrar.IsEmailRegistered"
	if strings.TrimSpace(email) == "" {
		return nil, &ValidationError{Field: "email", Messages: []string{"email address is empty"}}
	}
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode request: %w", op, err)
	}
	status, resp, err := r.do(ctx, op, r.endpoints.IsEmailRegistered, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	code := resp.StatusCode
	if code == 0 {
		code = status
	}
	msgs := resp.messages()
	if code == StatusEmailNotRegistered {
		return &EmailStatus{StatusCode: code, Messages: msgs}, nil
	}
	if status >= http.StatusInternalServerError || isAuthFailure(status) {
		upstreamErr := NewUpstreamError(op, r.endpoints.IsEmailRegistered, status, resp.raw, "email check failed", nil)
		r.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	msg := fmt.Sprintf("email address can't be registered (status %d)", code)
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	r.logger.Debug("email check rejected address", "status", code)
	return nil, &ValidationError{Field: "email", Messages: []string{msg}}
}

// CreateUser creates an ssoFACT account for email. ssoFACT sends a
// confirmation mail linking to confirmationURL. When the account isn't created,
// each vendor message is returned as a distinct *ValidationError, aggregated in
// a *multierror.Error.
func (r *Registrar) CreateUser(ctx context.Context, email, confirmationURL string) (*CreatedUser, error) {
	const op = "Registrar.CreateUser"
	if strings.TrimSpace(email) == "" {
		return nil, &ValidationError{Field: "email", Messages: []string{"email address is empty"}}
	}
	if confirmationURL == "" {
		return nil, fmt.Errorf("%s: confirmation URL is empty: %w", op, ErrInvalidParameter)
	}
	form := url.Values{
		"email":           {email},
		"confirmationUrl": {confirmationURL},
	}
	status, resp, err := r.do(ctx, op, r.endpoints.UserCreate, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	msgs := resp.messages()
	if status != http.StatusOK {
		if (status >= http.StatusInternalServerError && len(msgs) == 0) || isAuthFailure(status) {
			upstreamErr := NewUpstreamError(op, r.endpoints.UserCreate, status, resp.raw, "account creation failed", nil)
			r.logUpstream(upstreamErr)
			return nil, upstreamErr
		}
		if len(msgs) == 0 {
			msgs = []string{fmt.Sprintf("account creation failed (status %d)", status)}
		}
		var result *multierror.Error
		for _, m := range msgs {
			result = multierror.Append(result, &ValidationError{Field: "email", Messages: []string{m}})
		}
		r.logger.Debug("account creation rejected", "status", status, "messages", len(msgs))
		return nil, result
	}
	userID, err := claimString(resp.UserID)
	if err != nil || userID == "" {
		upstreamErr := NewUpstreamError(op, r.endpoints.UserCreate, status, resp.raw, "account creation did not return an identifier", err)
		r.logUpstream(upstreamErr)
		return nil, upstreamErr
	}
	return &CreatedUser{UserID: userID, Messages: msgs}, nil
}

// registrationResponse is the envelope of both registration API responses.
// Field names are matched case insensitively.
type registrationResponse struct {
	StatusCode   int           `json:"statusCode"`
	UserID       interface{}   `json:"userId"`
	Message      vendorStrings `json:"message"`
	UserMessages vendorStrings `json:"userMessages"`

	raw []byte
}

func (r *registrationResponse) messages() []string {
	if len(r.UserMessages) > 0 {
		return r.UserMessages
	}
	return r.Message
}

// vendorStrings accepts a single string or a list of strings.
type vendorStrings []string

func (v *vendorStrings) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*v = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	if s != "" {
		*v = []string{s}
	}
	return nil
}

func (r *Registrar) do(ctx context.Context, op, endpoint, contentType string, body io.Reader) (int, *registrationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRFBEKey, r.config.RFBEKey)
	req.Header.Set(HeaderRFBESecret, string(r.config.RFBESecret))

	resp, err := r.client.Do(req)
	if err != nil {
		upstreamErr := NewUpstreamError(op, endpoint, 0, nil, "request failed", err)
		r.logUpstream(upstreamErr)
		return 0, nil, upstreamErr
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		upstreamErr := NewUpstreamError(op, endpoint, resp.StatusCode, nil, "unable to read response", err)
		r.logUpstream(upstreamErr)
		return 0, nil, upstreamErr
	}
	var decoded registrationResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		upstreamErr := NewUpstreamError(op, endpoint, resp.StatusCode, raw, "malformed response", err)
		r.logUpstream(upstreamErr)
		return 0, nil, upstreamErr
	}
	decoded.raw = raw
	return resp.StatusCode, &decoded, nil
}

// isAuthFailure reports whether ssoFACT rejected the rfbe credentials, which is
// a configuration problem rather than a field error.
func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func (r *Registrar) logUpstream(e *UpstreamError) {
	r.logger.Error("upstream request failed", "op", e.Op, "endpoint", e.Endpoint, "status", e.StatusCode, "body", e.Body, "error", e.Wrapped)
}
