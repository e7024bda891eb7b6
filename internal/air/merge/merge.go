// Package merge implements the trace merger of spec.md §4.4: a
// shape-driven, two-way deterministic merge of a previous-peer trace and
// the current peer's replayed trace, independent of the script AST.
package merge

import (
	"fmt"

	"github.com/oriys/airvm/internal/air/trace"
	"github.com/oriys/airvm/internal/air/value"
)

// IncompatibleExecutedStates is raised when a Call record is merged
// against a Par record at the same position (spec.md §7).
type IncompatibleExecutedStates struct {
	Prev trace.State
	Curr trace.State
}

func (e *IncompatibleExecutedStates) Error() string {
	return fmt.Sprintf("incompatible executed states: prev.isPar=%v curr.isPar=%v", e.Prev.IsPar, e.Curr.IsPar)
}

// IncompatibleCallResults is raised when two Call records disagree under
// the merge_call lattice (spec.md §4.4's table), e.g. two different
// Executed values, or two different RequestSentBy peers.
type IncompatibleCallResults struct {
	A, B trace.CallResult
}

func (e *IncompatibleCallResults) Error() string {
	return fmt.Sprintf("incompatible call results: %v vs %v", e.A, e.B)
}

// Merge merges prev and current into a baseline trace, per spec.md §4.4.
func Merge(prev, current trace.Trace) (trace.Trace, error) {
	return mergeStreams(trace.NewStream(prev), trace.NewStream(current))
}

func mergeStreams(prev, curr *trace.Stream) (trace.Trace, error) {
	var out trace.Trace
	for {
		p, pOk := prev.Peek()
		c, cOk := curr.Peek()

		switch {
		case pOk && cOk:
			if p.IsPar != c.IsPar {
				return nil, &IncompatibleExecutedStates{Prev: p, Curr: c}
			}
			if !p.IsPar {
				merged, err := mergeCall(p.Call, c.Call)
				if err != nil {
					return out, err
				}
				out = append(out, trace.CallState(merged))
				prev.Advance()
				curr.Advance()
				continue
			}

			prev.Advance()
			curr.Advance()

			leftPrev := prev.Sub(p.ParLeft)
			leftCurr := curr.Sub(c.ParLeft)
			leftMerged, err := mergeStreams(leftPrev, leftCurr)
			if err != nil {
				return out, err
			}
			prev.SkipPast(p.ParLeft)
			curr.SkipPast(c.ParLeft)

			rightPrev := prev.Sub(p.ParRight)
			rightCurr := curr.Sub(c.ParRight)
			rightMerged, err := mergeStreams(rightPrev, rightCurr)
			if err != nil {
				return out, err
			}
			prev.SkipPast(p.ParRight)
			curr.SkipPast(c.ParRight)

			out = append(out, trace.ParState(len(leftMerged), len(rightMerged)))
			out = append(out, leftMerged...)
			out = append(out, rightMerged...)

		case pOk && !cOk:
			for {
				s, ok := prev.Peek()
				if !ok {
					break
				}
				out = append(out, s)
				prev.Advance()
			}
			return out, nil

		case !pOk && cOk:
			for {
				s, ok := curr.Peek()
				if !ok {
					break
				}
				out = append(out, s)
				curr.Advance()
			}
			return out, nil

		default:
			return out, nil
		}
	}
}

// mergeCall implements the commutative lattice of spec.md §4.4.
func mergeCall(a, b trace.CallResult) (trace.CallResult, error) {
	switch a.Kind {
	case trace.RequestSentByKind:
		switch b.Kind {
		case trace.RequestSentByKind:
			if a.Peer == b.Peer {
				return a, nil
			}
			return trace.CallResult{}, &IncompatibleCallResults{A: a, B: b}
		case trace.ExecutedKind:
			return b, nil
		case trace.CallServiceFailedKind:
			return b, nil
		}
	case trace.ExecutedKind:
		switch b.Kind {
		case trace.RequestSentByKind:
			return a, nil
		case trace.ExecutedKind:
			if value.Equal(a.Value, b.Value) {
				return a, nil
			}
			return trace.CallResult{}, &IncompatibleCallResults{A: a, B: b}
		case trace.CallServiceFailedKind:
			return trace.CallResult{}, &IncompatibleCallResults{A: a, B: b}
		}
	case trace.CallServiceFailedKind:
		switch b.Kind {
		case trace.RequestSentByKind:
			return a, nil
		case trace.ExecutedKind:
			return trace.CallResult{}, &IncompatibleCallResults{A: a, B: b}
		case trace.CallServiceFailedKind:
			if a.FailMsg == b.FailMsg {
				return a, nil
			}
			return trace.CallResult{}, &IncompatibleCallResults{A: a, B: b}
		}
	}
	return trace.CallResult{}, fmt.Errorf("unknown call result kind")
}
