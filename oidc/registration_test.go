package oidc

import (
	"context"
	"net/http"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistrar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		config    *Config
		wantIsErr error
	}{
		{name: "valid", config: testStaticConfig(t)},
		{name: "nil-config", wantIsErr: ErrNilParameter},
		{name: "invalid-domain", config: &Config{ServerDomain: "https://sso.example.com", RFBEKey: "k", RFBESecret: "s"}, wantIsErr: ErrInvalidConfig},
		{name: "missing-credentials", config: &Config{ServerDomain: "sso.example.com"}, wantIsErr: ErrInvalidConfig},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			r, err := NewRegistrar(tt.config)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(r)
				return
			}
			require.NoError(err)
			assert.NotNil(r)
		})
	}
}

func TestRegistrar_IsEmailRegistered(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		status      int
		body        string
		email       string
		want        *EmailStatus
		wantIsErr   error
		wantMessage string
		wantCalls   int
	}{
		{
			name:      "not-registered",
			status:    http.StatusOK,
			body:      `{"statusCode":607,"message":"E-Mail nicht registriert"}`,
			email:     "new@example.com",
			want:      &EmailStatus{StatusCode: 607, Messages: []string{"E-Mail nicht registriert"}},
			wantCalls: 1,
		},
		{
			name:        "registered",
			status:      http.StatusOK,
			body:        `{"statusCode":200,"message":["Diese E-Mail-Adresse ist bereits registriert."]}`,
			email:       "old@example.com",
			wantIsErr:   ErrValidation,
			wantMessage: "Diese E-Mail-Adresse ist bereits registriert.",
			wantCalls:   1,
		},
		{
			name:        "registered-without-message",
			status:      http.StatusOK,
			body:        `{"statusCode":605}`,
			email:       "old@example.com",
			wantIsErr:   ErrValidation,
			wantMessage: "email address can't be registered (status 605)",
			wantCalls:   1,
		},
		{
			name:      "server-error",
			status:    http.StatusBadGateway,
			body:      `{"message":"down"}`,
			email:     "new@example.com",
			wantIsErr: ErrUpstream,
			wantCalls: 1,
		},
		{
			name:      "malformed",
			status:    http.StatusOK,
			body:      `<html>`,
			email:     "new@example.com",
			wantIsErr: ErrUpstream,
			wantCalls: 1,
		},
		{
			name:      "empty-email",
			email:     " ",
			wantIsErr: ErrValidation,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			tp := StartTestProvider(t)
			if tt.status != 0 {
				tp.SetEmailCheckReply(tt.status, tt.body)
			}
			r, err := NewRegistrar(tp.TestConfig("https://www.example.com/ssofact/callback"))
			require.NoError(err)

			got, err := r.IsEmailRegistered(context.Background(), tt.email)
			assert.Equal(tt.wantCalls, tp.Calls(PathIsEmailRegistered))
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(got)
				if tt.wantMessage != "" {
					var verr *ValidationError
					require.ErrorAs(err, &verr)
					assert.Equal("email", verr.Field)
					assert.Equal([]string{tt.wantMessage}, verr.Messages)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
			assert.Equal(map[string]string{"email": tt.email}, tp.LastEmailCheck())
		})
	}
}

func TestRegistrar_credentials(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	c := tp.TestConfig("https://www.example.com/ssofact/callback", WithRegistrationCredentials("wrong", "wrong-secret"))
	r, err := NewRegistrar(c)
	require.NoError(err)
	_, err = r.IsEmailRegistered(context.Background(), "a@b.com")
	require.Error(err)
	assert.ErrorIs(err, ErrUpstream)
	assert.NotContains(err.Error(), "wrong-secret")
}

func TestRegistrar_CreateUser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		status       int
		body         string
		confirmURL   string
		want         *CreatedUser
		wantIsErr    error
		wantMessages []string
	}{
		{
			name:       "created",
			status:     http.StatusOK,
			body:       `{"statusCode":200,"userId":"1001"}`,
			confirmURL: "https://www.example.com/confirm",
			want:       &CreatedUser{UserID: "1001"},
		},
		{
			name:       "created-numeric-id",
			status:     http.StatusOK,
			body:       `{"statusCode":200,"userId":1001,"userMessages":["Bitte bestätigen Sie Ihre E-Mail-Adresse."]}`,
			confirmURL: "https://www.example.com/confirm",
			want:       &CreatedUser{UserID: "1001", Messages: []string{"Bitte bestätigen Sie Ihre E-Mail-Adresse."}},
		},
		{
			name:       "created-large-numeric-id",
			status:     http.StatusOK,
			body:       `{"statusCode":200,"userId":9007199254740993}`,
			confirmURL: "https://www.example.com/confirm",
			want:       &CreatedUser{UserID: "9007199254740993"},
		},
		{
			name:         "rejected",
			status:       http.StatusBadRequest,
			body:         `{"statusCode":400,"userMessages":["Passwort fehlt","E-Mail ungültig"]}`,
			confirmURL:   "https://www.example.com/confirm",
			wantIsErr:    ErrValidation,
			wantMessages: []string{"Passwort fehlt", "E-Mail ungültig"},
		},
		{
			name:         "rejected-without-messages",
			status:       http.StatusConflict,
			body:         `{}`,
			confirmURL:   "https://www.example.com/confirm",
			wantIsErr:    ErrValidation,
			wantMessages: []string{"account creation failed (status 409)"},
		},
		{
			name:       "missing-user-id",
			status:     http.StatusOK,
			body:       `{"statusCode":200}`,
			confirmURL: "https://www.example.com/confirm",
			wantIsErr:  ErrUpstream,
		},
		{
			name:       "server-error",
			status:     http.StatusInternalServerError,
			body:       `{}`,
			confirmURL: "https://www.example.com/confirm",
			wantIsErr:  ErrUpstream,
		},
		{
			name:      "missing-confirmation-url",
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			tp := StartTestProvider(t)
			if tt.status != 0 {
				tp.SetCreateUserReply(tt.status, tt.body)
			}
			r, err := NewRegistrar(tp.TestConfig("https://www.example.com/ssofact/callback"))
			require.NoError(err)

			got, err := r.CreateUser(context.Background(), "new@example.com", tt.confirmURL)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(got)
				if tt.wantMessages != nil {
					var merr *multierror.Error
					require.ErrorAs(err, &merr)
					var msgs []string
					for _, v := range ValidationErrors(err) {
						msgs = append(msgs, v.Messages...)
					}
					assert.Equal(tt.wantMessages, msgs)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
			form := tp.LastCreateUserForm()
			assert.Equal("new@example.com", form.Get("email"))
			assert.Equal(tt.confirmURL, form.Get("confirmationUrl"))
			assert.Equal(1, tp.Calls(PathUserCreate))
		})
	}
}
