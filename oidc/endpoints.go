package oidc

import "fmt"

// Fixed, versioned REST paths of an ssoFACT server.
const (
	PathAuthorize         = "/REST/oauth/authorize"
	PathToken             = "/REST/oauth/access_token"
	PathUserInfo          = "/REST/oauth/user"
	PathEndSession        = "/REST/oauth/logout"
	PathUserCreate        = "/REST/services/authenticate/user/registerUser"
	PathIsEmailRegistered = "/REST/services/authenticate/user/IsEmailRegistered"
	PathPasswordReset     = "/index.php"
	PathRegisterForm      = "/registrieren.html"
)

// Endpoints are the absolute URLs of an ssoFACT server.
type Endpoints struct {
	Authorization     string
	Token             string
	UserInfo          string
	EndSession        string
	UserCreate        string
	IsEmailRegistered string
	PasswordReset     string
}

// ResolveEndpoints derives the Endpoints from the configured server domain. It
// doesn't make any network requests and always returns the same endpoints for
// the same domain.
func ResolveEndpoints(c *Config) (Endpoints, error) {
	const op = "ResolveEndpoints"
	if c == nil {
		return Endpoints{}, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := ValidateServerDomain(c.ServerDomain); err != nil {
		return Endpoints{}, fmt.Errorf("%s: %w", op, err)
	}
	base := serverURL(c.ServerDomain)
	return Endpoints{
		Authorization:     base + PathAuthorize,
		Token:             base + PathToken,
		UserInfo:          base + PathUserInfo,
		EndSession:        base + PathEndSession,
		UserCreate:        base + PathUserCreate,
		IsEmailRegistered: base + PathIsEmailRegistered,
		PasswordReset:     base + PathPasswordReset,
	}, nil
}

func serverURL(domain string) string {
	return "https://" + domain
}
