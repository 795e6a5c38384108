package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// Token is the result of a successful code exchange. ssoFACT may also return an
// id_token; it's intentionally never decoded.
type Token struct {
	AccessToken AccessToken
	TokenType   string
	Expiry      time.Time

	underlying *oauth2.Token
}

// NewToken creates a Token from an oauth2.Token
func NewToken(t *oauth2.Token) (*Token, error) {
	const op = "NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: oauth2 token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is empty: %w", op, ErrInvalidParameter)
	}
	return &Token{
		AccessToken: AccessToken(t.AccessToken),
		TokenType:   t.Type(),
		Expiry:      t.Expiry,
		underlying:  t,
	}, nil
}

// StaticTokenSource returns a TokenSource which always returns the Token's
// access token.
func (t *Token) StaticTokenSource() oauth2.TokenSource {
	if t.underlying != nil {
		return oauth2.StaticTokenSource(t.underlying)
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.AccessToken),
		TokenType:   t.TokenType,
		Expiry:      t.Expiry,
	})
}
