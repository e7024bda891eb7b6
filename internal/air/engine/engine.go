// Package engine implements the execution engine of spec.md §4.2: a
// tree-walking interpreter over the AST that replays a merged baseline
// trace where possible and invokes call_service for genuinely new calls
// targeting the current peer.
package engine

import (
	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/execctx"
	"github.com/oriys/airvm/internal/air/trace"
	"github.com/oriys/airvm/internal/air/value"
	"github.com/oriys/airvm/internal/circuitbreaker"
)

// Engine walks an AST against a baseline trace and a shared execution
// context, producing the hop's new trace.
type Engine struct {
	CallService CallServiceFunc

	// Breakers is optional; when set, every Call consults the breaker for
	// its resolved service id before invoking call_service, matching the
	// teacher's per-function guard around its vsock call.
	Breakers      *circuitbreaker.Registry
	BreakerConfig circuitbreaker.Config
}

// Run walks script against baseline (the merged prev/current trace),
// mutating ctx and returning the trace this hop produced.
func (e *Engine) Run(script ast.Instruction, baseline trace.Trace, ctx *execctx.Ctx) (trace.Trace, error) {
	stream := trace.NewStream(baseline)
	out, err := e.exec(script, stream, ctx)
	if out == nil {
		out = trace.Trace{}
	}
	return out, err
}

func (e *Engine) exec(instr ast.Instruction, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	switch n := instr.(type) {
	case ast.Null:
		ctx.SubtreeComplete = true
		ctx.SubtreeFailed = false
		return nil, nil
	case ast.Error:
		ctx.SubtreeComplete = false
		ctx.SubtreeFailed = false
		return nil, &value.InstructionError{Msg: n.Message}
	case *ast.Seq:
		return e.execSeq(n, baseline, ctx)
	case *ast.Par:
		return e.execPar(n, baseline, ctx)
	case *ast.Xor:
		return e.execXor(n, baseline, ctx)
	case *ast.Call:
		return e.execCall(n, baseline, ctx)
	case *ast.Fold:
		return e.execFold(n, baseline, ctx)
	case ast.Next:
		return e.execNext(n, baseline, ctx)
	case *ast.Match:
		return e.execMatchLike(n.Left, n.Right, n.Body, true, baseline, ctx)
	case *ast.MisMatch:
		return e.execMatchLike(n.Left, n.Right, n.Body, false, baseline, ctx)
	default:
		return nil, &ErrTraceScriptMismatch{Detail: "unknown instruction node"}
	}
}

func (e *Engine) execSeq(n *ast.Seq, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	outL, err := e.exec(n.Left, baseline, ctx)
	if err != nil {
		return outL, err
	}
	if !ctx.SubtreeComplete {
		return outL, nil
	}
	outR, err := e.exec(n.Right, baseline, ctx)
	return append(outL, outR...), err
}

func (e *Engine) execPar(n *ast.Par, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	var leftSub, rightSub *trace.Stream
	if st, ok := baseline.Peek(); ok {
		if !st.IsPar {
			return nil, &ErrTraceScriptMismatch{Detail: "expected a par record"}
		}
		baseline.Advance()
		leftSub = baseline.Sub(st.ParLeft)
		baseline.SkipPast(st.ParLeft)
		rightSub = baseline.Sub(st.ParRight)
		baseline.SkipPast(st.ParRight)
	} else {
		leftSub = trace.NewStream(trace.Trace{})
		rightSub = trace.NewStream(trace.Trace{})
	}

	outL, errL := e.exec(n.Left, leftSub, ctx)
	leftComplete := ctx.SubtreeComplete
	leftFailed := ctx.SubtreeFailed
	if errL != nil {
		return outL, errL
	}

	outR, errR := e.exec(n.Right, rightSub, ctx)
	rightComplete := ctx.SubtreeComplete
	rightFailed := ctx.SubtreeFailed
	if errR != nil {
		combined := trace.Trace{trace.ParState(len(outL), len(outR))}
		combined = append(combined, outL...)
		combined = append(combined, outR...)
		return combined, errR
	}

	ctx.SubtreeComplete = leftComplete || rightComplete
	ctx.SubtreeFailed = leftFailed || rightFailed

	combined := trace.Trace{trace.ParState(len(outL), len(outR))}
	combined = append(combined, outL...)
	combined = append(combined, outR...)
	return combined, nil
}

func (e *Engine) execXor(n *ast.Xor, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	outL, err := e.exec(n.Left, baseline, ctx)
	if err != nil {
		return outL, err
	}
	if !ctx.SubtreeFailed {
		return outL, nil
	}
	ctx.SubtreeFailed = false
	outR, err := e.exec(n.Right, baseline, ctx)
	return append(outL, outR...), err
}

func (e *Engine) execMatchLike(left, right ast.Value, body ast.Instruction, wantEqual bool, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	lv, err := e.resolveMatchable(left, ctx)
	if err != nil {
		return nil, err
	}
	rv, err := e.resolveMatchable(right, ctx)
	if err != nil {
		return nil, err
	}
	equal := value.Equal(lv, rv)
	if equal != wantEqual {
		ctx.SubtreeComplete = true
		ctx.SubtreeFailed = false
		return nil, nil
	}
	return e.exec(body, baseline, ctx)
}

func (e *Engine) resolveMatchable(v ast.Value, ctx *execctx.Ctx) (value.JValue, error) {
	switch x := v.(type) {
	case ast.InitPeerID:
		return ctx.InitPeerID, nil
	case ast.Literal:
		return x.Value, nil
	case ast.Variable:
		jv, err := ctx.Get(x.Name)
		if err != nil {
			return nil, err
		}
		return jv.IntoJValue()
	case ast.JSONPath:
		jv, err := ctx.Get(x.Variable)
		if err != nil {
			return nil, err
		}
		matches, err := jv.ApplyJSONPath(x.Path)
		if err != nil {
			return nil, err
		}
		if len(matches) != 1 {
			return nil, &execctx.ErrMultipleValuesInJSONPath{Path: x.Path, Count: len(matches)}
		}
		return matches[0], nil
	default:
		return nil, &ErrTraceScriptMismatch{Detail: "unknown matchable value"}
	}
}
