package metrics

import "testing"

func TestRecordHopUpdatesCounters(t *testing.T) {
	m := &Metrics{}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	m.tsChan = make(chan timeSeriesEvent, 16)
	m.initTimeSeries()
	go m.processTimeSeriesLoop()
	defer close(m.tsChan)

	m.RecordHop(12, true)
	m.RecordHop(30, false)

	if got := m.HopsTotal.Load(); got != 2 {
		t.Fatalf("expected 2 hops total, got %d", got)
	}
	if got := m.HopsSucceeded.Load(); got != 1 {
		t.Fatalf("expected 1 succeeded hop, got %d", got)
	}
	if got := m.HopsFailed.Load(); got != 1 {
		t.Fatalf("expected 1 failed hop, got %d", got)
	}
	if got := m.MaxLatencyMs.Load(); got != 30 {
		t.Fatalf("expected max latency 30, got %d", got)
	}
	if got := m.MinLatencyMs.Load(); got != 12 {
		t.Fatalf("expected min latency 12, got %d", got)
	}
}

func TestRecordCallOutcomes(t *testing.T) {
	m := &Metrics{}
	m.RecordCallExecuted("svc-a")
	m.RecordCallDeferred("svc-a")
	m.RecordCallFailed("svc-b")

	if got := m.CallsExecuted.Load(); got != 1 {
		t.Fatalf("expected 1 executed call, got %d", got)
	}
	if got := m.CallsDeferred.Load(); got != 1 {
		t.Fatalf("expected 1 deferred call, got %d", got)
	}
	if got := m.CallsFailed.Load(); got != 1 {
		t.Fatalf("expected 1 failed call, got %d", got)
	}
}

func TestRecordStructuralCounters(t *testing.T) {
	m := &Metrics{}
	m.RecordMergeConflict()
	m.RecordMergeConflict()
	m.RecordFoldIteration()
	m.RecordParSubtree()

	if got := m.MergeConflicts.Load(); got != 2 {
		t.Fatalf("expected 2 merge conflicts, got %d", got)
	}
	if got := m.FoldIterations.Load(); got != 1 {
		t.Fatalf("expected 1 fold iteration, got %d", got)
	}
	if got := m.ParSubtrees.Load(); got != 1 {
		t.Fatalf("expected 1 par subtree, got %d", got)
	}
}

func TestSnapshotReportsZeroMinLatencyWhenUnset(t *testing.T) {
	m := &Metrics{startTime: StartTime()}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))

	snap := m.Snapshot()
	latency, ok := snap["latency_ms"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected latency_ms map in snapshot, got %#v", snap["latency_ms"])
	}
	if latency["min"] != int64(0) {
		t.Fatalf("expected min latency 0 when never recorded, got %v", latency["min"])
	}
}

func TestInitPrometheusRegistersCollectors(t *testing.T) {
	pm := InitPrometheus("air_test", nil)
	if pm == nil {
		t.Fatal("expected non-nil PrometheusMetrics")
	}
	if PrometheusRegistry() == nil {
		t.Fatal("expected a registered prometheus registry")
	}

	RecordPrometheusHop(5, true)
	RecordPrometheusCall("svc", "executed")
	RecordPrometheusMergeConflict()
	RecordPrometheusFoldIteration()
	RecordPrometheusParSubtree()
	SetCircuitBreakerState("svc", BreakerStateOpen)
	RecordCircuitBreakerTrip("svc")
}
