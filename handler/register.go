package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/internal/metrics"
	"github.com/newsfactory/ssofact/oidc"
)

// RegisterResponse is the JSON body of a successful registration.
type RegisterResponse struct {
	UserID   string   `json:"user_id"`
	Messages []string `json:"messages,omitempty"`
}

// Register handles a POST of the "email" and "privacy" form fields. The email
// address must not be registered yet, then the account is created and ssoFACT
// sends the user a confirmation mail. Field errors are answered with a 422 and
// upstream errors with a 502.
//
// Supported options: WithConfirmationURL, WithMetrics, WithLogger
func Register(p Provider, r Registrar, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "handler.Register"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrInvalidParameter)
	}
	if r == nil {
		return nil, fmt.Errorf("%s: registrar is nil: %w", op, oidc.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger.Named("register")
	return func(w http.ResponseWriter, req *http.Request) {
		if !p.Config().IsActive() {
			http.NotFound(w, req)
			return
		}
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := req.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		email := req.PostForm.Get("email")
		if req.PostForm.Get("privacy") != "1" {
			opts.withMetrics.Registration(metrics.ResultInvalid)
			writeJSON(w, http.StatusUnprocessableEntity, &ErrorResponse{
				Error:  "validation failed",
				Fields: map[string][]string{"privacy": {"You must accept the terms and conditions."}},
			})
			return
		}
		confirmationURL := opts.withConfirmationURL
		if confirmationURL == "" {
			confirmationURL = p.Config().SiteURL
		}

		if _, err := r.IsEmailRegistered(req.Context(), email); err != nil {
			respondRegistrationError(w, err, opts.withMetrics, logger)
			return
		}
		created, err := r.CreateUser(req.Context(), email, confirmationURL)
		if err != nil {
			respondRegistrationError(w, err, opts.withMetrics, logger)
			return
		}
		opts.withMetrics.Registration(metrics.ResultSuccess)
		writeJSON(w, http.StatusCreated, &RegisterResponse{UserID: created.UserID, Messages: created.Messages})
	}, nil
}

func respondRegistrationError(w http.ResponseWriter, err error, m *metrics.Metrics, logger hclog.Logger) {
	if verrs := oidc.ValidationErrors(err); len(verrs) > 0 {
		fields := map[string][]string{}
		for _, v := range verrs {
			fields[v.Field] = append(fields[v.Field], v.Messages...)
		}
		m.Registration(metrics.ResultInvalid)
		writeJSON(w, http.StatusUnprocessableEntity, &ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}
	if errors.Is(err, oidc.ErrUpstream) {
		m.Registration(metrics.ResultUpstream)
		writeError(w, http.StatusBadGateway, "registration is unavailable, please try again later")
		return
	}
	logger.Error("registration failed", "error", err)
	m.Registration(metrics.ResultError)
	writeError(w, http.StatusInternalServerError, "internal error")
}
