package lint

import (
	"testing"

	"github.com/oriys/airvm/internal/air/ast"
)

func hasError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func TestCheck_Null_NoDiagnostics(t *testing.T) {
	if diags := Check(ast.Null{}); len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", diags)
	}
}

func TestCheck_NextWithoutEnclosingFold_Errors(t *testing.T) {
	diags := Check(ast.Next{Iterator: "m"})
	if !hasError(diags) {
		t.Fatalf("expected an error diagnostic, got %+v", diags)
	}
}

func TestCheck_NextInsideMatchingFold_Clean(t *testing.T) {
	instr := &ast.Fold{
		Iterator: "m",
		Iterable: ast.Variable{Name: "members"},
		Body:     ast.Next{Iterator: "m"},
	}
	diags := Check(instr)
	if hasError(diags) {
		t.Fatalf("expected no error diagnostics, got %+v", diags)
	}
}

func TestCheck_NextInsideUnrelatedFold_Errors(t *testing.T) {
	instr := &ast.Fold{
		Iterator: "m",
		Iterable: ast.Variable{Name: "members"},
		Body:     ast.Next{Iterator: "other"},
	}
	diags := Check(instr)
	if !hasError(diags) {
		t.Fatalf("expected an error diagnostic for mismatched iterator, got %+v", diags)
	}
}

func TestCheck_CallWithNoServiceID_Errors(t *testing.T) {
	call := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "p"}},
		FunctionPart: ast.FuncName{Name: ast.Literal{Value: "f"}},
		Output:       ast.NoOutput{},
	}
	diags := Check(call)
	if !hasError(diags) {
		t.Fatalf("expected an error diagnostic for missing service id, got %+v", diags)
	}
}

func TestCheck_CallWithServiceIDOnFunctionPart_Clean(t *testing.T) {
	call := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "p"}},
		FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
		Output:       ast.NoOutput{},
	}
	diags := Check(call)
	if hasError(diags) {
		t.Fatalf("expected no error diagnostics, got %+v", diags)
	}
}

func TestCheck_DuplicateScalarOutsideFold_Errors(t *testing.T) {
	call1 := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "p"}},
		FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
		Output:       ast.Scalar{Name: "r"},
	}
	call2 := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "p2"}},
		FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "g"}},
		Output:       ast.Scalar{Name: "r"},
	}
	seq := &ast.Seq{Left: call1, Right: call2}
	diags := Check(seq)
	if !hasError(diags) {
		t.Fatalf("expected a duplicate-scalar error, got %+v", diags)
	}
}

func TestCheck_DuplicateScalarInsideFold_Allowed(t *testing.T) {
	call := &ast.Call{
		PeerPart:     ast.PeerPk{Peer: ast.Literal{Value: "p"}},
		FunctionPart: ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "s"}, Name: ast.Literal{Value: "f"}},
		Output:       ast.Scalar{Name: "r"},
	}
	fold := &ast.Fold{
		Iterator: "m",
		Iterable: ast.Variable{Name: "members"},
		Body:     &ast.Seq{Left: call, Right: call},
	}
	diags := Check(fold)
	if hasError(diags) {
		t.Fatalf("rebinding a scalar inside a fold body should not error, got %+v", diags)
	}
}

func TestCheck_MatchAndMismatch_WalkBody(t *testing.T) {
	match := &ast.Match{
		Left:  ast.Literal{Value: "a"},
		Right: ast.Literal{Value: "b"},
		Body:  ast.Next{Iterator: "unbound"},
	}
	diags := Check(match)
	if !hasError(diags) {
		t.Fatalf("expected lint to walk into match body and flag the bad next, got %+v", diags)
	}
}
