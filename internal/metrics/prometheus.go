package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics holds all Prometheus metric collectors for the AIR
// interpreter: hop outcomes and latency, call_service dispositions, trace
// merge conflicts, and the structural fold/par counters the engine walks.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	hopsTotal   *prometheus.CounterVec // labels: result (success|failure)
	hopDuration prometheus.Histogram
	callsTotal  *prometheus.CounterVec // labels: service_id, outcome (executed|deferred|failed)

	mergeConflictsTotal prometheus.Counter
	foldIterationsTotal prometheus.Counter
	parSubtreesTotal    prometheus.Counter

	circuitBreakerState      *prometheus.GaugeVec   // labels: service_id (0=closed,1=open,2=half_open)
	circuitBreakerTripsTotal *prometheus.CounterVec // labels: service_id
}

var (
	promMetrics   *PrometheusMetrics
	promMetricsMu sync.RWMutex
)

// InitPrometheus creates and registers AIR's Prometheus collectors under
// the given namespace, sizing the hop-duration histogram with buckets
// (milliseconds). Safe to call once at daemon startup.
func InitPrometheus(namespace string, buckets []float64) *PrometheusMetrics {
	if namespace == "" {
		namespace = "air"
	}
	if len(buckets) == 0 {
		buckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	}

	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		registry: registry,
		hopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hops_total",
			Help:      "Total number of hops executed by this peer, labeled by result.",
		}, []string{"result"}),
		hopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hop_duration_milliseconds",
			Help:      "Distribution of hop execution durations in milliseconds.",
			Buckets:   buckets,
		}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of Call nodes walked, labeled by service_id and outcome.",
		}, []string{"service_id", "outcome"}),
		mergeConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_conflicts_total",
			Help:      "Total number of trace-merge conflicts (incompatible executed states or call results).",
		}),
		foldIterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fold_iterations_total",
			Help:      "Total number of elements visited across all Fold instructions.",
		}),
		parSubtreesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "par_subtrees_total",
			Help:      "Total number of Par instructions walked by the engine.",
		}),
		circuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state per service_id (0=closed, 1=open, 2=half_open).",
		}, []string{"service_id"}),
		circuitBreakerTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of times a service_id's circuit breaker tripped to open.",
		}, []string{"service_id"}),
	}

	registry.MustRegister(
		pm.hopsTotal,
		pm.hopDuration,
		pm.callsTotal,
		pm.mergeConflictsTotal,
		pm.foldIterationsTotal,
		pm.parSubtreesTotal,
		pm.circuitBreakerState,
		pm.circuitBreakerTripsTotal,
	)

	promMetricsMu.Lock()
	promMetrics = pm
	promMetricsMu.Unlock()

	return pm
}

// PrometheusRegistry returns the active Prometheus registry, or nil if
// InitPrometheus has not been called.
func PrometheusRegistry() *prometheus.Registry {
	promMetricsMu.RLock()
	defer promMetricsMu.RUnlock()
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}

// PrometheusHandler returns an HTTP handler serving the Prometheus text
// exposition format, or a 503 handler if metrics were never initialized.
func PrometheusHandler() http.Handler {
	reg := PrometheusRegistry()
	if reg == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func current() *PrometheusMetrics {
	promMetricsMu.RLock()
	defer promMetricsMu.RUnlock()
	return promMetrics
}

// RecordPrometheusHop records one hop's duration and result, a no-op if
// Prometheus was never initialized.
func RecordPrometheusHop(durationMs int64, success bool) {
	pm := current()
	if pm == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	pm.hopsTotal.WithLabelValues(result).Inc()
	pm.hopDuration.Observe(float64(durationMs))
}

// RecordPrometheusCall records a Call node's disposition for a service_id.
func RecordPrometheusCall(serviceID, outcome string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.callsTotal.WithLabelValues(serviceID, outcome).Inc()
}

// RecordPrometheusMergeConflict records a trace-merge conflict.
func RecordPrometheusMergeConflict() {
	pm := current()
	if pm == nil {
		return
	}
	pm.mergeConflictsTotal.Inc()
}

// RecordPrometheusFoldIteration records one element visited by a Fold.
func RecordPrometheusFoldIteration() {
	pm := current()
	if pm == nil {
		return
	}
	pm.foldIterationsTotal.Inc()
}

// RecordPrometheusParSubtree records one Par node walked by the engine.
func RecordPrometheusParSubtree() {
	pm := current()
	if pm == nil {
		return
	}
	pm.parSubtreesTotal.Inc()
}

// Circuit breaker state constants, mirrored from internal/circuitbreaker
// independently to avoid a metrics->circuitbreaker import cycle.
const (
	BreakerStateClosed   = 0
	BreakerStateOpen     = 1
	BreakerStateHalfOpen = 2
)

// SetCircuitBreakerState records the current state of a service_id's
// circuit breaker.
func SetCircuitBreakerState(serviceID string, state int) {
	pm := current()
	if pm == nil {
		return
	}
	pm.circuitBreakerState.WithLabelValues(serviceID).Set(float64(state))
}

// RecordCircuitBreakerTrip records a service_id's breaker tripping open.
func RecordCircuitBreakerTrip(serviceID string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.circuitBreakerTripsTotal.WithLabelValues(serviceID).Inc()
}
