package main

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfigFile writes a config file for tp and returns its path.
func testConfigFile(t *testing.T, tp *oidc.TestProvider) string {
	t.Helper()
	return writeFile(t, "ssofact.yaml", fmt.Sprintf(`
log_level: error
provider:
  server_domain: %q
  client_id: test-client-id
  client_secret: test-client-secret
  rfbe_key: test-rfbe-key
  rfbe_secret: test-rfbe-secret
  redirect_url: https://www.example.com/ssofact/callback
  site_url: https://www.example.com/
  ca_file: %q
`, tp.Domain(), writeFile(t, "ca.pem", tp.CACert())))
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEndpointsCmd(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	path := writeFile(t, "ssofact.yaml", testYAML)
	out, _, err := runCmd(t, "--config", path, "endpoints")
	require.NoError(err)
	assert.Contains(out, "https://sso.example.com/REST/oauth/authorize")
	assert.Contains(out, "https://sso.example.com/REST/oauth/logout")
	assert.Contains(out, "https://sso.example.com/REST/services/authenticate/user/IsEmailRegistered")
	assert.NotContains(out, "client-secret")
}

func TestCheckEmailCmd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantOutput string
	}{
		{
			name:       "not-registered",
			status:     http.StatusOK,
			body:       `{"statusCode":607}`,
			wantOutput: "alice@example.com: not registered (status 607)",
		},
		{
			name:       "registered",
			status:     http.StatusOK,
			body:       `{"statusCode":200,"userMessages":["This email address is already registered."]}`,
			wantErr:    true,
			wantOutput: "alice@example.com: This email address is already registered.",
		},
		{
			name:    "upstream",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			tp := oidc.StartTestProvider(t)
			tp.SetEmailCheckReply(tt.status, tt.body)
			out, stderr, err := runCmd(t, "--config", testConfigFile(t, tp), "check-email", "alice@example.com")
			if tt.wantErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}
			assert.Contains(out, tt.wantOutput)
			assert.NotContains(out+stderr, "test-rfbe-secret")
			assert.Equal("alice@example.com", tp.LastEmailCheck()["email"])
		})
	}
}

func TestCreateUserCmd(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := oidc.StartTestProvider(t)
	path := testConfigFile(t, tp)

	out, _, err := runCmd(t, "--config", path, "create-user", "bob@example.com", "https://www.example.com/confirm")
	require.NoError(err)
	assert.Contains(out, "created user 1001")
	assert.Equal("https://www.example.com/confirm", tp.LastCreateUserForm().Get("confirmationUrl"))

	tp.SetCreateUserReply(http.StatusBadRequest, `{"statusCode":400,"userMessages":["invalid email","blocked domain"]}`)
	_, stderr, err := runCmd(t, "--config", path, "create-user", "bob@example.com", "https://www.example.com/confirm")
	require.Error(err)
	assert.Contains(stderr, "invalid email")
	assert.Contains(stderr, "blocked domain")
}

func TestRootCmd_args(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "ssofact.yaml", testYAML)
	_, _, err := runCmd(t, "--config", path, "check-email")
	assert.Error(t, err)
	_, _, err = runCmd(t, "--config", path+".missing", "endpoints")
	assert.ErrorContains(t, err, "unable to read")
}
