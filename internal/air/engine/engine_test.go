package engine

import (
	"testing"

	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/execctx"
	"github.com/oriys/airvm/internal/air/trace"
)

func noopCallService(string, string, []any) (int, string) { return 0, "null" }

func TestEngine_Null_MarksComplete(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	out, err := e.Run(ast.Null{}, nil, ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty trace, got %v", out)
	}
	if !ctx.SubtreeComplete || ctx.SubtreeFailed {
		t.Fatalf("expected complete, not failed: %+v", ctx)
	}
}

func TestEngine_Error_ReturnsInstructionError(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	_, err := e.Run(ast.Error{Message: "boom"}, nil, ctx)
	if err == nil {
		t.Fatal("expected an error from the Error node")
	}
}

func TestEngine_Match_BodyRunsWhenEqual(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	n := &ast.Match{
		Left:  ast.Literal{Value: "a"},
		Right: ast.Literal{Value: "a"},
		Body:  ast.Null{},
	}
	out, err := e.Run(n, nil, ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 0 || !ctx.SubtreeComplete {
		t.Fatalf("expected body to have run to completion, got out=%v ctx=%+v", out, ctx)
	}
}

func TestEngine_Match_BodySkippedWhenUnequal(t *testing.T) {
	e := &Engine{CallService: func(string, string, []any) (int, string) {
		t.Fatal("body should not have run")
		return 0, ""
	}}
	ctx := execctx.New("A", "A")
	n := &ast.Match{
		Left:  ast.Literal{Value: "a"},
		Right: ast.Literal{Value: "b"},
		Body: &ast.Call{
			PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "A"}},
			FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
			Output:       ast.NoOutput{},
		},
	}
	out, err := e.Run(n, nil, ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no trace when match skips its body, got %v", out)
	}
	if !ctx.SubtreeComplete || ctx.SubtreeFailed {
		t.Fatalf("expected skipped match to be a clean completion, got %+v", ctx)
	}
}

func TestEngine_MisMatch_BodyRunsWhenUnequal(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	n := &ast.MisMatch{
		Left:  ast.Literal{Value: "a"},
		Right: ast.Literal{Value: "b"},
		Body:  ast.Null{},
	}
	out, err := e.Run(n, nil, ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 0 || !ctx.SubtreeComplete {
		t.Fatalf("expected mismatch body to run, got out=%v ctx=%+v", out, ctx)
	}
}

func TestEngine_Match_UnboundVariable_PropagatesError(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	n := &ast.Match{
		Left:  ast.Variable{Name: "missing"},
		Right: ast.Literal{Value: "a"},
		Body:  ast.Null{},
	}
	if _, err := e.Run(n, nil, ctx); err == nil {
		t.Fatal("expected an error resolving an unbound variable")
	}
}

func TestEngine_Call_BaselineShapeMismatch_Errors(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	call := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "A"}},
		FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
		Output:       ast.NoOutput{},
	}
	baseline := trace.Trace{trace.ParState(1, 1)}
	if _, err := e.Run(call, baseline, ctx); err == nil {
		t.Fatal("expected a trace/script shape mismatch error")
	}
}

func TestEngine_Call_NoServiceID_InstructionError(t *testing.T) {
	e := &Engine{CallService: noopCallService}
	ctx := execctx.New("A", "A")
	call := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "A"}},
		FunctionPart: ast.FuncName{Name: ast.Literal{Value: "f"}},
		Output:       ast.NoOutput{},
	}
	if _, err := e.Run(call, nil, ctx); err == nil {
		t.Fatal("expected an InstructionError for a call with no resolvable service id")
	}
}

func TestEngine_Par_RightFailurePropagatesWithParHeader(t *testing.T) {
	e := &Engine{CallService: func(serviceID, functionName string, args []any) (int, string) {
		return 1, "boom"
	}}
	ctx := execctx.New("A", "A")
	n := &ast.Par{
		Left: &ast.Call{
			PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "A"}},
			FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
			Output:       ast.NoOutput{},
		},
		Right: ast.Error{Message: "right always fails"},
	}
	out, err := e.Run(n, nil, ctx)
	if err == nil {
		t.Fatal("expected the right branch's error to propagate")
	}
	if len(out) != 2 {
		t.Fatalf("expected a par header plus the left branch's record, got %d: %v", len(out), out)
	}
	if !out[0].IsPar {
		t.Fatalf("expected a par header even on right-branch failure, got %+v", out[0])
	}
}
