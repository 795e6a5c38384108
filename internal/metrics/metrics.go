// Package metrics holds the prometheus collectors of the ssoFACT integration.
package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results of callbacks and registrations.
const (
	ResultSuccess      = "success"
	ResultAccessDenied = "access_denied"
	ResultUpstream     = "upstream_error"
	ResultInvalid      = "invalid"
	ResultError        = "error"
)

// Metrics are the collectors of one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gateRedirects    prometheus.Counter
	callbacks        *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	registrations    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Collectors which
// are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	const op = "metrics.New"
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		gateRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ssofact_gate_redirects_total",
			Help: "Anonymous requests redirected to ssoFACT because of the RF_OAUTH_SERVER cookie.",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssofact_callbacks_total",
			Help: "Authorization callbacks by result.",
		}, []string{"result"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssofact_upstream_requests_total",
			Help: "Requests sent to ssoFACT by status code and method.",
		}, []string{"code", "method"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ssofact_upstream_request_duration_seconds",
			Help:    "Latency of the requests sent to ssoFACT.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssofact_registrations_total",
			Help: "Account registrations by result.",
		}, []string{"result"}),
	}
	var err error
	if m.gateRedirects, err = register(reg, m.gateRedirects); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.callbacks, err = register(reg, m.callbacks); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.upstreamRequests, err = register(reg, m.upstreamRequests); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.upstreamDuration, err = register(reg, m.upstreamDuration); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if m.registrations, err = register(reg, m.registrations); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Handler serves the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// GateRedirect counts a redirect of the cookie gate.
func (m *Metrics) GateRedirect() {
	if m == nil {
		return
	}
	m.gateRedirects.Inc()
}

// Callback counts a callback with result.
func (m *Metrics) Callback(result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(result).Inc()
}

// Registration counts a registration attempt with result.
func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// InstrumentRoundTripper counts and times the requests sent through next. It
// matches the signature of sdkHttp.WithTransportWrapper.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperCounter(m.upstreamRequests,
		promhttp.InstrumentRoundTripperDuration(m.upstreamDuration, next))
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
