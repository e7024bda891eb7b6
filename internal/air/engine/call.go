package engine

import (
	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/execctx"
	"github.com/oriys/airvm/internal/air/trace"
	"github.com/oriys/airvm/internal/air/value"
)

func (e *Engine) execCall(n *ast.Call, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	triplet, err := value.ResolveTriplet(n.PeerPart, n.FunctionPart, ctx)
	if err != nil {
		return nil, err
	}

	st, ok := baseline.Peek()
	if ok {
		if st.IsPar {
			return nil, &ErrTraceScriptMismatch{Detail: "expected a call record, found a par record"}
		}
		baseline.Advance()
		switch st.Call.Kind {
		case trace.ExecutedKind:
			tet := value.Tetraplet{PeerPK: triplet.PeerPK, ServiceID: triplet.ServiceID, FunctionName: triplet.FunctionName}
			if err := ctx.BindOutput(n.Output, st.Call.Value, tet); err != nil {
				return nil, err
			}
			ctx.SubtreeComplete = true
			ctx.SubtreeFailed = false
			return trace.Trace{trace.CallState(trace.Executed(st.Call.Value))}, nil

		case trace.CallServiceFailedKind:
			ctx.SubtreeComplete = false
			ctx.SubtreeFailed = true
			return trace.Trace{trace.CallState(trace.CallServiceFailed(st.Call.FailMsg))}, nil

		case trace.RequestSentByKind:
			if triplet.PeerPK == ctx.CurrentPeerID {
				return e.invoke(triplet, n, ctx)
			}
			ctx.AddNextPeerPK(triplet.PeerPK)
			ctx.SubtreeComplete = false
			ctx.SubtreeFailed = false
			return trace.Trace{trace.CallState(trace.RequestSentBy(st.Call.Peer))}, nil
		}
		return nil, &ErrTraceScriptMismatch{Detail: "unknown call result kind in baseline"}
	}

	// Baseline is silent at this position: nothing has run here yet.
	if triplet.PeerPK == ctx.CurrentPeerID {
		return e.invoke(triplet, n, ctx)
	}
	ctx.AddNextPeerPK(triplet.PeerPK)
	ctx.SubtreeComplete = false
	ctx.SubtreeFailed = false
	return trace.Trace{trace.CallState(trace.RequestSentBy(ctx.CurrentPeerID))}, nil
}

// invoke calls call_service for a call whose resolved peer is the current
// peer, per spec.md §4.2's "Service invocation" subsection.
func (e *Engine) invoke(triplet value.Triplet, n *ast.Call, ctx *execctx.Ctx) (trace.Trace, error) {
	args, err := ctx.ResolveArgs(n.Args)
	if err != nil {
		return nil, err
	}

	var breaker interface {
		Allow() bool
		RecordSuccess()
		RecordFailure()
	}
	if e.Breakers != nil {
		if b := e.Breakers.Get(triplet.ServiceID, e.BreakerConfig); b != nil {
			breaker = b
		}
	}
	if breaker != nil && !breaker.Allow() {
		ctx.SubtreeComplete = false
		ctx.SubtreeFailed = true
		msg := "circuit breaker open for service " + triplet.ServiceID
		return trace.Trace{trace.CallState(trace.CallServiceFailed(msg))}, nil
	}

	retCode, result := e.CallService(triplet.ServiceID, triplet.FunctionName, args)
	if retCode == 0 {
		v, perr := value.ParseJSON(result)
		if perr == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			tet := value.Tetraplet{PeerPK: triplet.PeerPK, ServiceID: triplet.ServiceID, FunctionName: triplet.FunctionName}
			if err := ctx.BindOutput(n.Output, v, tet); err != nil {
				return nil, err
			}
			ctx.SubtreeComplete = true
			ctx.SubtreeFailed = false
			return trace.Trace{trace.CallState(trace.Executed(v))}, nil
		}
		result = perr.Error()
	}
	if breaker != nil {
		breaker.RecordFailure()
	}
	ctx.SubtreeComplete = false
	ctx.SubtreeFailed = true
	return trace.Trace{trace.CallState(trace.CallServiceFailed(result))}, nil
}
