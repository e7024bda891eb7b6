// Package metrics collects and exposes AIR interpreter observability data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (atomic counters + time series) for a
//     lightweight JSON endpoint.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems (Grafana, Alertmanager, etc.).
//
// Keeping both lets the in-process counters be read without standing up a
// Prometheus sidecar, while `cmd/air daemon` serves the Prometheus registry
// for enterprise monitoring stacks. Neither internal/air/interpreter nor
// `cmd/air run` records into them.
//
// # Concurrency — hot path
//
// RecordHop is the per-hop entry point and must be fast. It uses atomic increments for global counters and dispatches a
// lightweight event onto a buffered channel (tsChan) for the time-series
// worker to process asynchronously, avoiding any lock on the hot path.
//
// # Invariants
//
//   - HopsTotal == HopsSucceeded + HopsFailed (maintained by RecordHop).
//   - CallsExecuted + CallsDeferred + CallsFailed never exceeds the number
//     of Call nodes walked by a hop (maintained by RecordCallExecuted,
//     RecordCallDeferred and RecordCallFailed).
//   - The time-series ring buffer holds at most timeSeriesBucketCount
//     buckets (24 * 60 = 1440 for the last 24 hours at 1-minute granularity).
//   - tsChan capacity is 8192 events; events dropped when full are counted
//     in tsDroppedEvents for observability.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores hop metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Hops         int64
	Errors       int64
	TotalLatency int64
	Count        int64 // for calculating avg
}

// Metrics collects and exposes AIR interpreter runtime metrics.
type Metrics struct {
	// Hop metrics
	HopsTotal     atomic.Int64
	HopsSucceeded atomic.Int64
	HopsFailed    atomic.Int64

	// Latency metrics (in milliseconds)
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	// Call metrics
	CallsExecuted atomic.Int64
	CallsDeferred atomic.Int64
	CallsFailed   atomic.Int64

	// Trace merger metrics
	MergeConflicts atomic.Int64

	// Fold/par structural metrics
	FoldIterations atomic.Int64
	ParSubtrees    atomic.Int64

	// Time-series data (minute buckets for last 24 hours)
	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

// timeSeriesEvent is sent over a channel to avoid write-lock contention on the hot path
type timeSeriesEvent struct {
	durationMs int64
	isError    bool
}

// Global metrics instance
var global = &Metrics{startTime: time.Now()}

func init() {
	global.MinLatencyMs.Store(int64(^uint64(0) >> 1)) // Max int64
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

// initTimeSeries initializes minute-level buckets for the last 24 hours.
func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized
func StartTime() time.Time {
	return global.startTime
}

// RecordHop records one hop's outcome: its duration and whether it
// succeeded, per spec.md §4.5's Outcome assembly.
func (m *Metrics) RecordHop(durationMs int64, success bool) {
	m.HopsTotal.Add(1)
	if success {
		m.HopsSucceeded.Add(1)
	} else {
		m.HopsFailed.Add(1)
	}

	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	m.recordTimeSeries(durationMs, !success)

	RecordPrometheusHop(durationMs, success)
}

// RecordCallExecuted records a Call node the engine invoked for the
// current peer and which produced an Executed result.
func (m *Metrics) RecordCallExecuted(serviceID string) {
	m.CallsExecuted.Add(1)
	RecordPrometheusCall(serviceID, "executed")
}

// RecordCallDeferred records a Call node whose baseline was silent or
// RequestSentBy a different peer, i.e. forwarded via next_peer_pks.
func (m *Metrics) RecordCallDeferred(serviceID string) {
	m.CallsDeferred.Add(1)
	RecordPrometheusCall(serviceID, "deferred")
}

// RecordCallFailed records a Call node whose invocation produced
// CallServiceFailed.
func (m *Metrics) RecordCallFailed(serviceID string) {
	m.CallsFailed.Add(1)
	RecordPrometheusCall(serviceID, "failed")
}

// RecordMergeConflict records a trace-merger IncompatibleExecutedStates or
// IncompatibleCallResults error (spec.md §7, ret_code=4).
func (m *Metrics) RecordMergeConflict() {
	m.MergeConflicts.Add(1)
	RecordPrometheusMergeConflict()
}

// RecordFoldIteration records one element visited by a Fold body.
func (m *Metrics) RecordFoldIteration() {
	m.FoldIterations.Add(1)
	RecordPrometheusFoldIteration()
}

// RecordParSubtree records one Par node the engine walked, emitting a
// Par(left_len, right_len) trace record.
func (m *Metrics) RecordParSubtree() {
	m.ParSubtrees.Add(1)
	RecordPrometheusParSubtree()
}

// recordTimeSeries enqueues a time-series event for async processing,
// avoiding a write-lock on the hot hop path.
func (m *Metrics) recordTimeSeries(durationMs int64, isError bool) {
	select {
	case m.tsChan <- timeSeriesEvent{durationMs: durationMs, isError: isError}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

// processTimeSeriesLoop drains tsChan and applies events under a write lock.
func (m *Metrics) processTimeSeriesLoop() {
	for evt := range m.tsChan {
		m.applyTimeSeriesEvent(evt.durationMs, evt.isError)
	}
}

// applyTimeSeriesEvent updates the time-series buckets (must be called from a single goroutine).
func (m *Metrics) applyTimeSeriesEvent(durationMs int64, isError bool) {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Hops++
		bucket.TotalLatency += durationMs
		bucket.Count++
		if isError {
			bucket.Errors++
		}
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.HopsTotal.Load()
	avgLatency := float64(0)
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == int64(^uint64(0)>>1) {
		minLatency = 0
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"hops": map[string]interface{}{
			"total":     total,
			"succeeded": m.HopsSucceeded.Load(),
			"failed":    m.HopsFailed.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"calls": map[string]interface{}{
			"executed": m.CallsExecuted.Load(),
			"deferred": m.CallsDeferred.Load(),
			"failed":   m.CallsFailed.Load(),
		},
		"merge_conflicts":   m.MergeConflicts.Load(),
		"fold_iterations":   m.FoldIterations.Load(),
		"par_subtrees":      m.ParSubtrees.Load(),
		"ts_dropped_events": m.tsDroppedEvents.Load(),
	}
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}

// TimeSeries returns minute-level time-series data for the last 24 hours.
func (m *Metrics) TimeSeries() []map[string]interface{} {
	m.timeSeriesMu.RLock()
	defer m.timeSeriesMu.RUnlock()

	result := make([]map[string]interface{}, len(m.timeSeries))
	for i, bucket := range m.timeSeries {
		avgDuration := float64(0)
		if bucket.Count > 0 {
			avgDuration = float64(bucket.TotalLatency) / float64(bucket.Count)
		}
		result[i] = map[string]interface{}{
			"timestamp":    bucket.Timestamp.Format(time.RFC3339),
			"hops":         bucket.Hops,
			"errors":       bucket.Errors,
			"avg_duration": avgDuration,
		}
	}
	return result
}

// TimeSeriesHandler returns an HTTP handler for time-series metrics.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

// Helper functions

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
