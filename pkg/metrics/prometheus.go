// Package metrics provides Prometheus metrics for the giteval service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus metrics for the service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	evaluationsProcessed prometheus.Counter
	evaluationsDuplicate prometheus.Counter
	signatureFailures    prometheus.Counter
	promotions           prometheus.Counter
	reconcileErrors      prometheus.Counter
	dmFailures           prometheus.Counter
	announceDropped      prometheus.Counter
	announceQueueDepth   prometheus.Gauge
	registeredUsers      prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRegistry sets the registry metrics are registered on.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// Custom registry so the default Go collectors stay out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a Manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "giteval",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.evaluationsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "evaluations_processed_total",
		Help:      "Evaluation callbacks that committed a score mutation",
	})
	m.evaluationsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "evaluations_duplicate_total",
		Help:      "Replayed deliveries suppressed by the deduper",
	})
	m.signatureFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "signature_failures_total",
		Help:      "Callbacks rejected for a bad or missing signature",
	})
	m.promotions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "promotions_total",
		Help:      "Rank transitions applied",
	})
	m.reconcileErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reconcile_errors_total",
		Help:      "Role reconciliation failures recovered as soft errors",
	})
	m.dmFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "dm_failures_total",
		Help:      "Direct messages that could not be delivered",
	})
	m.announceDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "announcements_dropped_total",
		Help:      "Promotion announcements dropped on queue overflow",
	})
	m.announceQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "announce_queue_depth",
		Help:      "Promotion announcements waiting for dispatch",
	})
	m.registeredUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "registered_users",
		Help:      "Users currently tracked in the store",
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request latency by endpoint and method",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method"})

	return m
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level recorders over the global manager.

func RecordEvaluationProcessed() { globalManager.evaluationsProcessed.Inc() }
func RecordEvaluationDuplicate() { globalManager.evaluationsDuplicate.Inc() }
func RecordSignatureFailure()    { globalManager.signatureFailures.Inc() }
func RecordPromotion()           { globalManager.promotions.Inc() }
func RecordReconcileError()      { globalManager.reconcileErrors.Inc() }
func RecordDMFailure()           { globalManager.dmFailures.Inc() }
func RecordAnnouncementDropped() { globalManager.announceDropped.Inc() }

func UpdateAnnounceQueueDepth(n int) { globalManager.announceQueueDepth.Set(float64(n)) }
func UpdateRegisteredUsers(n int)    { globalManager.registeredUsers.Set(float64(n)) }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}
