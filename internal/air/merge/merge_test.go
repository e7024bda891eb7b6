package merge

import (
	"encoding/json"
	"testing"

	"github.com/oriys/airvm/internal/air/trace"
)

func mustJSON(t *testing.T, tr trace.Trace) string {
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestMerge_RequestSentBy_Executed_ResolvesToExecuted(t *testing.T) {
	prev := trace.Trace{trace.CallState(trace.RequestSentBy("A"))}
	curr := trace.Trace{trace.CallState(trace.Executed("x"))}

	got, err := Merge(prev, curr)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got[0].Call.Kind != trace.ExecutedKind || got[0].Call.Value != "x" {
		t.Fatalf("expected resolved Executed(x), got %+v", got[0])
	}
}

func TestMerge_Commutative(t *testing.T) {
	a := trace.Trace{trace.CallState(trace.RequestSentBy("A"))}
	b := trace.Trace{trace.CallState(trace.Executed("x"))}

	ab, err := Merge(a, b)
	if err != nil {
		t.Fatalf("merge(a,b): %v", err)
	}
	ba, err := Merge(b, a)
	if err != nil {
		t.Fatalf("merge(b,a): %v", err)
	}
	if mustJSON(t, ab) != mustJSON(t, ba) {
		t.Fatalf("merge is not commutative: %s vs %s", mustJSON(t, ab), mustJSON(t, ba))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	x := trace.Trace{trace.CallState(trace.Executed("x")), trace.CallState(trace.RequestSentBy("B"))}
	got, err := Merge(x, x)
	if err != nil {
		t.Fatalf("merge(x,x): %v", err)
	}
	if mustJSON(t, got) != mustJSON(t, x) {
		t.Fatalf("merge(x,x) != x: %s vs %s", mustJSON(t, got), mustJSON(t, x))
	}
}

func TestMerge_Associative(t *testing.T) {
	x := trace.Trace{trace.CallState(trace.RequestSentBy("A"))}
	y := trace.Trace{trace.CallState(trace.Executed("v"))}
	z := trace.Trace{trace.CallState(trace.Executed("v"))}

	xy, err := Merge(x, y)
	if err != nil {
		t.Fatalf("merge(x,y): %v", err)
	}
	xyz1, err := Merge(xy, z)
	if err != nil {
		t.Fatalf("merge(merge(x,y),z): %v", err)
	}

	yz, err := Merge(y, z)
	if err != nil {
		t.Fatalf("merge(y,z): %v", err)
	}
	xyz2, err := Merge(x, yz)
	if err != nil {
		t.Fatalf("merge(x,merge(y,z)): %v", err)
	}

	if mustJSON(t, xyz1) != mustJSON(t, xyz2) {
		t.Fatalf("merge not associative: %s vs %s", mustJSON(t, xyz1), mustJSON(t, xyz2))
	}
}

func TestMerge_ConflictingExecutedValues_S6(t *testing.T) {
	prev := trace.Trace{trace.CallState(trace.Executed("x"))}
	curr := trace.Trace{trace.CallState(trace.Executed("y"))}

	_, err := Merge(prev, curr)
	if err == nil {
		t.Fatal("expected IncompatibleCallResults error")
	}
	if _, ok := err.(*IncompatibleCallResults); !ok {
		t.Fatalf("expected *IncompatibleCallResults, got %T: %v", err, err)
	}
}

func TestMerge_ConflictingRequestSentByPeers(t *testing.T) {
	prev := trace.Trace{trace.CallState(trace.RequestSentBy("A"))}
	curr := trace.Trace{trace.CallState(trace.RequestSentBy("B"))}

	_, err := Merge(prev, curr)
	if err == nil {
		t.Fatal("expected IncompatibleCallResults error for differing RequestSentBy peers")
	}
}

func TestMerge_CallVsPar_IncompatibleShapes(t *testing.T) {
	prev := trace.Trace{trace.CallState(trace.Executed("x"))}
	curr := trace.Trace{trace.ParState(1, 1)}

	_, err := Merge(prev, curr)
	if err == nil {
		t.Fatal("expected IncompatibleExecutedStates error")
	}
	if _, ok := err.(*IncompatibleExecutedStates); !ok {
		t.Fatalf("expected *IncompatibleExecutedStates, got %T", err)
	}
}

func TestMerge_OneSidedDrain(t *testing.T) {
	prev := trace.Trace{}
	curr := trace.Trace{
		trace.CallState(trace.Executed("a")),
		trace.CallState(trace.Executed("b")),
	}

	got, err := Merge(prev, curr)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both elements drained from curr, got %d", len(got))
	}
}

func TestMerge_ParLengthInvariant(t *testing.T) {
	// prev: par(1,1) with two RequestSentBy markers.
	prev := trace.Trace{
		trace.ParState(1, 1),
		trace.CallState(trace.RequestSentBy("Z")),
		trace.CallState(trace.RequestSentBy("Z")),
	}
	// curr: the left call executed by the owning peer.
	curr := trace.Trace{
		trace.ParState(1, 1),
		trace.CallState(trace.Executed("left-value")),
		trace.CallState(trace.RequestSentBy("Z")),
	}

	got, err := Merge(prev, curr)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 elements (1 par header + 2 children), got %d", len(got))
	}
	if !got[0].IsPar || got[0].ParLeft != 1 || got[0].ParRight != 1 {
		t.Fatalf("expected Par(1,1) header, got %+v", got[0])
	}
	if got[1].Call.Kind != trace.ExecutedKind || got[1].Call.Value != "left-value" {
		t.Fatalf("expected left child resolved to Executed, got %+v", got[1])
	}
	if got[2].Call.Kind != trace.RequestSentByKind {
		t.Fatalf("expected right child to remain RequestSentBy, got %+v", got[2])
	}
}

func TestMerge_NestedPar(t *testing.T) {
	// par(par(1,1), 1): outer left is itself a nested par.
	prev := trace.Trace{
		trace.ParState(3, 1),
		trace.ParState(1, 1),
		trace.CallState(trace.RequestSentBy("Z")),
		trace.CallState(trace.RequestSentBy("Z")),
		trace.CallState(trace.RequestSentBy("Z")),
	}
	curr := trace.Trace{
		trace.ParState(3, 1),
		trace.ParState(1, 1),
		trace.CallState(trace.Executed("a")),
		trace.CallState(trace.Executed("b")),
		trace.CallState(trace.RequestSentBy("Z")),
	}

	got, err := Merge(prev, curr)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 elements, got %d: %s", len(got), mustJSON(t, got))
	}
	if !got[0].IsPar || got[0].ParLeft != 3 || got[0].ParRight != 1 {
		t.Fatalf("expected outer Par(3,1), got %+v", got[0])
	}
	if !got[1].IsPar || got[1].ParLeft != 1 || got[1].ParRight != 1 {
		t.Fatalf("expected inner Par(1,1), got %+v", got[1])
	}
}
