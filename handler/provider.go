package handler

import (
	"context"
	"net/http"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/session"
)

// Provider is the part of an oidc.Provider used by the handlers.
type Provider interface {
	oidc.AuthorizationRedirectBuilder
	oidc.EndSessionResolver
	Config() *oidc.Config
	PasswordResetURL(next string) string
	LoginFormAction(authURL string) string
	RegisterFormAction(authURL string) string
}

// Registrar is the part of an oidc.Registrar used by the handlers.
type Registrar interface {
	IsEmailRegistered(ctx context.Context, email string) (*oidc.EmailStatus, error)
	CreateUser(ctx context.Context, email, confirmationURL string) (*oidc.CreatedUser, error)
}

// Sessions is the part of a session.Manager used by the handlers.
type Sessions interface {
	Load(r *http.Request) (*session.Session, error)
	SetPendingState(w http.ResponseWriter, r *http.Request, st *oidc.State) error
	Login(w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error)
	Destroy(w http.ResponseWriter, r *http.Request) error
}

var (
	_ Provider  = (*oidc.Provider)(nil)
	_ Registrar = (*oidc.Registrar)(nil)
	_ Sessions  = (*session.Manager)(nil)
)

// startAuthorization creates the authorization URL for target and stores the
// new State in the request's session.
func startAuthorization(w http.ResponseWriter, r *http.Request, p Provider, sessions Sessions, target string) (string, error) {
	authURL, st, err := p.BuildAuthorizationRedirect(r.Context(), target)
	if err != nil {
		return "", err
	}
	if err := sessions.SetPendingState(w, r, st); err != nil {
		return "", err
	}
	return authURL, nil
}
