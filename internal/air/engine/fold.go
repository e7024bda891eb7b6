package engine

import (
	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/execctx"
	"github.com/oriys/airvm/internal/air/trace"
	"github.com/oriys/airvm/internal/air/value"
)

// execFold implements spec.md §4.2's Fold semantics. The fold's body is a
// single shared AST node (never cloned, per spec.md §9's "Fold body
// reuse"), but iteration itself is a real recursive continuation: Fold
// runs the body bound to the first element and then returns, and it is
// Next — wherever in that body's tree it turns out to sit, including
// nested inside a Par or Xor branch — that recurses back into the next
// iteration. This is what lets `next` sitting inside a `par` branch
// produce nested par records the way a conforming peer's trace does
// (spec.md §8 S4; ground truth: stepper-lib's join.rs, whose `par[1, 2]`
// header is the outer par with the recursive `next` iteration folded into
// its right branch).
func (e *Engine) execFold(n *ast.Fold, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	elements, tet, err := resolveIterable(n.Iterable, ctx)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		ctx.SubtreeComplete = true
		ctx.SubtreeFailed = false
		return nil, nil
	}

	frame := &execctx.FoldFrame{Iterator: n.Iterator, Elements: elements, Source: tet, Body: n.Body}

	ctx.PushFold(n.Iterator)
	ctx.PushFoldFrame(frame)
	defer ctx.PopFold()
	defer ctx.PopFoldFrame()

	return e.runFoldIteration(frame, baseline, ctx)
}

// runFoldIteration binds frame's fold cursor to its current position and
// executes the fold body once. It is called both by execFold for the first
// element and by execNext for every subsequent element.
func (e *Engine) runFoldIteration(frame *execctx.FoldFrame, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	cursor := &value.FoldCursor{Iterator: frame.Iterator, Elements: frame.Elements, Source: frame.Source, Position: frame.Pos}
	restore := ctx.BindFoldCursor(frame.Iterator, cursor)
	out, err := e.exec(frame.Body, baseline, ctx)
	restore()
	return out, err
}

// execNext drives the enclosing fold's continuation. With elements left to
// visit it recurses into the next iteration right here, at whatever point
// in the AST Next was reached, so a Next nested under a Par's right branch
// nests that iteration's trace under the same Par. On the last element
// it's a completion marker, same as Null.
func (e *Engine) execNext(n ast.Next, baseline *trace.Stream, ctx *execctx.Ctx) (trace.Trace, error) {
	frame := ctx.FoldFrame(n.Iterator)
	if frame == nil {
		return nil, &execctx.ErrFoldStateNotFound{Name: n.Iterator}
	}
	if frame.Pos+1 >= len(frame.Elements) {
		ctx.SubtreeComplete = true
		ctx.SubtreeFailed = false
		return nil, nil
	}
	frame.Pos++
	return e.runFoldIteration(frame, baseline, ctx)
}

func resolveIterable(v ast.Value, ctx *execctx.Ctx) ([]value.JValue, value.Tetraplet, error) {
	var jv value.JValuable
	var err error
	switch x := v.(type) {
	case ast.Variable:
		jv, err = ctx.Get(x.Name)
	case ast.JSONPath:
		jv, err = ctx.Get(x.Variable)
	default:
		return nil, value.Tetraplet{}, &execctx.ErrIterableNotArray{Name: "<literal>"}
	}
	if err != nil {
		return nil, value.Tetraplet{}, err
	}

	raw, err := jv.IntoJValue()
	if err != nil {
		return nil, value.Tetraplet{}, err
	}
	if jp, ok := v.(ast.JSONPath); ok {
		matches, merr := jv.ApplyJSONPath(jp.Path)
		if merr != nil {
			return nil, value.Tetraplet{}, merr
		}
		raw = matches
	}

	arr, ok := raw.([]value.JValue)
	if !ok {
		name := ""
		switch x := v.(type) {
		case ast.Variable:
			name = x.Name
		case ast.JSONPath:
			name = x.Variable
		}
		return nil, value.Tetraplet{}, &execctx.ErrIterableNotArray{Name: name}
	}

	tets := jv.AsTetraplets()
	tet := value.Tetraplet{}
	if len(tets) > 0 {
		tet = tets[0]
	}
	return arr, tet, nil
}
