package interpreter

import (
	"reflect"
	"testing"
)

// TestNestedFoldParJoin reproduces the shape of stepper-lib's join.rs test:
// a fold whose body is `(par (call ...) (next m))`. Next sits in the par's
// right branch, and Par always runs both branches regardless of whether
// the left one completed, so next fires on every iteration even though
// the left call is still an outstanding request. Each iteration's next
// recurses into the following one from inside that right branch, so the
// fold's trace nests one par per remaining element instead of laying the
// iterations out as siblings.
func TestNestedFoldParJoin(t *testing.T) {
	script := `(seq
		(call "Z" ("s" "members") [] members)
		(fold members m (par
			(call m.$.[1] ("s" "ping") [] v[])
			(next m))))`

	call := func(serviceID, functionName string, args []any) (int, string) {
		if functionName == "members" {
			return 0, `[["A","R1"],["B","R2"],["C","R3"]]`
		}
		return 0, "null"
	}

	out := Run(script, nil, nil, "Z", "Z", call, Options{})
	if out.RetCode != RetOK {
		t.Fatalf("expected RetOK, got %d: %s", out.RetCode, out.ErrorMessage)
	}

	// Every call targets a peer other than Z, so every iteration's call is
	// a deferred request and every iteration's next still fires from the
	// par's right branch: three levels of nesting, outermost first, each
	// wrapping one deferred call, per join.rs's `par[1, 2] -> req ->
	// par[1, 0] -> req` shape.
	wantTrace := `[{"call":{"executed":[["A","R1"],["B","R2"],["C","R3"]]}},` +
		`{"par":[1,4]},{"call":{"request_sent_by":"Z"}},` +
		`{"par":[1,2]},{"call":{"request_sent_by":"Z"}},` +
		`{"par":[1,0]},{"call":{"request_sent_by":"Z"}}]`
	if string(out.Data) != wantTrace {
		t.Fatalf("trace: got %s want %s", out.Data, wantTrace)
	}

	if !reflect.DeepEqual(out.NextPeerPKs, []string{"R1", "R2", "R3"}) {
		t.Fatalf("next_peer_pks: got %v want [R1 R2 R3] (deduped, first-seen order)", out.NextPeerPKs)
	}
}
