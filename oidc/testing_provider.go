package oidc

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local TLS server which implements the ssoFACT endpoints
// used by this package. It makes writing tests of the authorization code flow
// and the registration API much easier, and it counts the requests each
// endpoint received so tests can assert that no upstream call was made.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	mu               sync.Mutex
	clientID         string
	clientSecret     string
	rfbeKey          string
	rfbeSecret       string
	expectedAuthCode string
	accessToken      string
	replyUserInfo    map[string]interface{}
	tokenFailure     *testReply
	userInfoFailure  *testReply
	emailCheckReply  testReply
	createUserReply  testReply
	lastRedirectURI  string
	lastTokenForm    url.Values
	lastCreateForm   url.Values
	lastEmailCheck   map[string]string
	calls            map[string]int

	t *testing.T
}

type testReply struct {
	status int
	body   string
}

// StartTestProvider creates a disposable TestProvider. It's stopped when the
// test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		clientID:         "test-client-id",
		clientSecret:     "test-client-secret",
		rfbeKey:          "test-rfbe-key",
		rfbeSecret:       "test-rfbe-secret",
		expectedAuthCode: "test-code",
		accessToken:      "test-access-token",
		replyUserInfo: map[string]interface{}{
			VendorClaimID:          "42",
			VendorClaimEmail:       "alice@example.com",
			VendorClaimConfirmed:   true,
			VendorClaimLastChanged: "2024-01-02 03:04:05",
		},
		emailCheckReply: testReply{status: http.StatusOK, body: `{"statusCode":607,"message":"not registered"}`},
		createUserReply: testReply{status: http.StatusOK, body: `{"statusCode":200,"userId":"1001"}`},
		calls:           map[string]int{},
		t:               t,
	}
	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Domain returns the host:port of the TestProvider, suitable for
// Config.ServerDomain.
func (p *TestProvider) Domain() string {
	return strings.TrimPrefix(p.httpServer.URL, "https://")
}

// CACert returns the PEM encoded CA cert of the TestProvider.
func (p *TestProvider) CACert() string {
	return p.caCert
}

// HTTPClient returns an http.Client which trusts the TestProvider.
func (p *TestProvider) HTTPClient() *http.Client {
	return p.httpServer.Client()
}

// TestConfig returns an active Config for the TestProvider.
func (p *TestProvider) TestConfig(redirectURL string, opt ...Option) *Config {
	p.t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	opt = append([]Option{
		WithProviderCA(p.caCert),
		WithRegistrationCredentials(p.rfbeKey, RFBESecret(p.rfbeSecret)),
		WithSiteURL("https://www.example.com/"),
		WithLogger(hclog.NewNullLogger()),
	}, opt...)
	c, err := NewConfig(p.Domain(), p.clientID, ClientSecret(p.clientSecret), redirectURL, opt...)
	require.NoError(p.t, err)
	return c
}

// SetClientCreds configures the client id and secret the token endpoint
// accepts.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetRegistrationCreds configures the rfbe key pair the registration API
// accepts.
func (p *TestProvider) SetRegistrationCreds(key, secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rfbeKey = key
	p.rfbeSecret = secret
}

// SetExpectedAuthCode configures the auth code returned by the authorize
// endpoint and accepted by the token endpoint.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAccessToken configures the access token issued by the token endpoint.
func (p *TestProvider) SetAccessToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = token
}

// SetUserInfoReply configures the vendor fields returned by the user endpoint.
func (p *TestProvider) SetUserInfoReply(resp map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserInfo = resp
}

// SetTokenFailure makes the token endpoint reply with status and body. A zero
// status restores the default behavior.
func (p *TestProvider) SetTokenFailure(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenFailure = failure(status, body)
}

// SetUserInfoFailure makes the user endpoint reply with status and body. A zero
// status restores the default behavior.
func (p *TestProvider) SetUserInfoFailure(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoFailure = failure(status, body)
}

// SetEmailCheckReply configures the reply of the email check endpoint.
func (p *TestProvider) SetEmailCheckReply(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emailCheckReply = testReply{status: status, body: body}
}

// SetCreateUserReply configures the reply of the account creation endpoint.
func (p *TestProvider) SetCreateUserReply(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createUserReply = testReply{status: status, body: body}
}

// Calls returns the number of requests the endpoint at path received.
func (p *TestProvider) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// TotalCalls returns the number of requests the TestProvider received.
func (p *TestProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, c := range p.calls {
		n += c
	}
	return n
}

// LastRedirectURI returns the redirect_uri of the last token request.
func (p *TestProvider) LastRedirectURI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRedirectURI
}

// LastTokenForm returns the form of the last token request.
func (p *TestProvider) LastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm
}

// LastCreateUserForm returns the form of the last account creation request.
func (p *TestProvider) LastCreateUserForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCreateForm
}

// LastEmailCheck returns the body of the last email check request.
func (p *TestProvider) LastEmailCheck() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEmailCheck
}

func failure(status int, body string) *testReply {
	if status == 0 {
		return nil
	}
	return &testReply{status: status, body: body}
}

// ServeHTTP implements the ssoFACT endpoints.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := req.URL.Path
	if strings.HasPrefix(path, PathEndSession+"/") {
		path = PathEndSession
	}
	p.calls[path]++

	switch path {
	case PathAuthorize:
		p.handleAuthorize(w, req)
	case PathToken:
		p.handleToken(w, req)
	case PathUserInfo:
		p.handleUserInfo(w, req)
	case PathEndSession:
		w.WriteHeader(http.StatusOK)
	case PathIsEmailRegistered:
		if !p.authorizedRegistration(w, req) {
			return
		}
		var body map[string]string
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, `{"message":"invalid body"}`)
			return
		}
		p.lastEmailCheck = body
		writeJSON(w, p.emailCheckReply.status, p.emailCheckReply.body)
	case PathUserCreate:
		if !p.authorizedRegistration(w, req) {
			return
		}
		if err := req.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, `{"message":"invalid body"}`)
			return
		}
		p.lastCreateForm = req.PostForm
		writeJSON(w, p.createUserReply.status, p.createUserReply.body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != p.clientID {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || u.Host == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rq := u.Query()
	rq.Set("code", p.expectedAuthCode)
	rq.Set("state", q.Get("state"))
	u.RawQuery = rq.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_request"}`)
		return
	}
	p.lastTokenForm = req.PostForm
	p.lastRedirectURI = req.PostForm.Get("redirect_uri")
	if p.tokenFailure != nil {
		writeJSON(w, p.tokenFailure.status, p.tokenFailure.body)
		return
	}
	switch {
	case req.PostForm.Get("grant_type") != "authorization_code":
		writeJSON(w, http.StatusBadRequest, `{"error":"unsupported_grant_type"}`)
	case req.PostForm.Get("client_id") != p.clientID || req.PostForm.Get("client_secret") != p.clientSecret:
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client"}`)
	case req.PostForm.Get("code") != p.expectedAuthCode:
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	default:
		b, _ := json.Marshal(map[string]interface{}{
			"access_token": p.accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		writeJSON(w, http.StatusOK, string(b))
	}
}

func (p *TestProvider) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get("Authorization") != "Bearer "+p.accessToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if p.userInfoFailure != nil {
		writeJSON(w, p.userInfoFailure.status, p.userInfoFailure.body)
		return
	}
	b, err := json.Marshal(p.replyUserInfo)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, string(b))
}

func (p *TestProvider) authorizedRegistration(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if req.Header.Get(HeaderRFBEKey) != p.rfbeKey || req.Header.Get(HeaderRFBESecret) != p.rfbeSecret {
		writeJSON(w, http.StatusUnauthorized, `{"message":"invalid credentials"}`)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
