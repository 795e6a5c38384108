package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
)

// FormKind selects the form built by BuildForm.
type FormKind string

const (
	FormLogin    FormKind = "login"
	FormRegister FormKind = "register"
)

// usernameMaxLength is the longest user name or email accepted by the forms.
const usernameMaxLength = 60

// Form describes an HTML form which posts directly to ssoFACT. ssoFACT
// continues to the authorization URL embedded in the Action once the user is
// authenticated or registered.
type Form struct {
	Kind   FormKind `json:"kind"`
	Method string   `json:"method"`
	Action string   `json:"action"`
	Fields []Field  `json:"fields"`
	Submit string   `json:"submit"`
}

// Field is an input of a Form.
type Field struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Label      string            `json:"label,omitempty"`
	Value      string            `json:"value,omitempty"`
	Required   bool              `json:"required,omitempty"`
	MaxLength  int               `json:"maxlength,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// BuildForm builds the form of kind for the authorization URL authURL. The
// register form carries article as the id of the article which led the user
// to register, if any.
func BuildForm(p Provider, kind FormKind, authURL, article string) (*Form, error) {
	const op = "handler.BuildForm"
	if authURL == "" {
		return nil, fmt.Errorf("%s: authorization URL is empty: %w", op, oidc.ErrInvalidParameter)
	}
	textAttrs := map[string]string{
		"autocorrect":    "none",
		"autocapitalize": "none",
		"spellcheck":     "false",
		"autofocus":      "autofocus",
	}
	switch kind {
	case FormLogin:
		return &Form{
			Kind:   kind,
			Method: http.MethodPost,
			Action: p.LoginFormAction(authURL),
			Fields: []Field{
				{Name: "login", Type: "text", Label: "Username", Required: true, MaxLength: usernameMaxLength, Attributes: textAttrs},
				{Name: "pass", Type: "password", Label: "Password", Required: true},
				{Name: "permanent_login", Type: "hidden", Value: "1"},
				{Name: "redirect_url", Type: "hidden"},
			},
			Submit: "Log in",
		}, nil
	case FormRegister:
		attrs := map[string]string{"placeholder": "Your email address"}
		for k, v := range textAttrs {
			attrs[k] = v
		}
		return &Form{
			Kind:   kind,
			Method: http.MethodPost,
			Action: p.RegisterFormAction(authURL),
			Fields: []Field{
				{Name: "email", Type: "email", Required: true, MaxLength: usernameMaxLength, Attributes: attrs},
				{Name: "article_test", Type: "hidden", Value: article},
				{Name: "privacy", Type: "checkbox", Label: "I accept terms and conditions", Required: true, Value: "1"},
				{Name: "_qf__registerForm", Type: "hidden", Value: "1"},
			},
			Submit: "Sign up",
		}, nil
	default:
		return nil, fmt.Errorf("%s: unknown form %q: %w", op, kind, oidc.ErrNotFound)
	}
}

// Forms serves the form named by the "kind" route parameter as JSON. Each
// request starts a new authorization for the local path in the "destination"
// query parameter, so the form's action carries a state bound to the session.
//
// Supported options: WithLogger
func Forms(p Provider, sessions Sessions, opt ...oidc.Option) http.HandlerFunc {
	logger := getOpts(opt...).withLogger.Named("forms")
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.Config().IsActive() {
			http.NotFound(w, r)
			return
		}
		kind := FormKind(chi.URLParam(r, "kind"))
		if kind != FormLogin && kind != FormRegister {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		authURL, err := startAuthorization(w, r, p, sessions, callback.ResolveTarget(q.Get("destination"), "/"))
		if err != nil {
			logger.Error("unable to start authorization", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		form, err := BuildForm(p, kind, authURL, q.Get("article"))
		if err != nil {
			logger.Error("unable to build form", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, form)
	}
}
