package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lanbridge"

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all lanbridge metrics.
type Registry struct {
	reg *prometheus.Registry

	// Forwarder metrics
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	DialFailures        prometheus.Counter
	ActiveSessions      prometheus.Gauge
	RelayBytes          *prometheus.CounterVec
	SessionDuration     prometheus.Histogram

	// Beacon metrics
	BeaconSent   prometheus.Counter
	BeaconErrors prometheus.Counter

	// Bind metrics
	BindAttempts     *prometheus.CounterVec
	BindTerminations prometheus.Counter

	// System metrics
	Uptime prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = New()
	})
	return registry
}

// New returns a registry backed by its own prometheus.Registry, so that
// tests can create as many as they like.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	r := &Registry{reg: reg}

	// Forwarder metrics
	r.ConnectionsAccepted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_accepted_total",
		Help:      "Client connections admitted by the whitelist",
	})

	r.ConnectionsRejected = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_rejected_total",
		Help:      "Client connections closed because the peer is not whitelisted",
	})

	r.DialFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_dial_failures_total",
		Help:      "Failed connections to the remote server",
	})

	r.ActiveSessions = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently being relayed",
	})

	r.RelayBytes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_bytes_total",
		Help:      "Bytes relayed, by direction",
	}, []string{"direction"})

	r.SessionDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Lifetime of relayed sessions",
		Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 4 * 3600},
	})

	// Beacon metrics
	r.BeaconSent = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "beacon_sent_total",
		Help:      "LAN announcements sent",
	})

	r.BeaconErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "beacon_errors_total",
		Help:      "LAN announcements that failed to send",
	})

	// Bind metrics
	r.BindAttempts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bind_attempts_total",
		Help:      "Listener bind attempts, by result",
	}, []string{"result"})

	r.BindTerminations = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bind_terminations_total",
		Help:      "Earlier instances terminated to free the listen port",
	})

	// System metrics
	r.Uptime = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the forwarder started",
	})

	return r
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordSession records a finished relay session.
func (r *Registry) RecordSession(up, down int64, d time.Duration) {
	r.RelayBytes.WithLabelValues("up").Add(float64(up))
	r.RelayBytes.WithLabelValues("down").Add(float64(down))
	r.SessionDuration.Observe(d.Seconds())
}

// RecordBindAttempt records the outcome of one bind attempt.
// result is "ok", "in_use" or "error".
func (r *Registry) RecordBindAttempt(result string) {
	r.BindAttempts.WithLabelValues(result).Inc()
}
