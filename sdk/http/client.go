package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// DefaultTimeout bounds every outbound call. All calls made with these clients
// are on user facing request paths.
const DefaultTimeout = 10 * time.Second

// Option defines a functional option for NewClient
type Option func(interface{})

type clientOptions struct {
	withTimeout          time.Duration
	withTransportWrapper func(http.RoundTripper) http.RoundTripper
}

func clientDefaults() clientOptions {
	return clientOptions{
		withTimeout: DefaultTimeout,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithTimeout overrides the DefaultTimeout. A zero or negative timeout is
// ignored since an unbounded call is never acceptable here.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && d > 0 {
			o.withTimeout = d
		}
	}
}

// WithTransportWrapper wraps the pooled transport, for example to instrument
// outbound requests.
func WithTransportWrapper(fn func(http.RoundTripper) http.RoundTripper) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withTransportWrapper = fn
		}
	}
}

// NewClient creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.
//
// Supported options: WithTimeout, WithTransportWrapper
func NewClient(caPEM string, opt ...Option) (*http.Client, error) {
	opts := getClientOpts(opt...)
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	var rt http.RoundTripper = tr
	if opts.withTransportWrapper != nil {
		rt = opts.withTransportWrapper(rt)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.withTimeout,
		// the callers inspect vendor redirects themselves
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// ClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
