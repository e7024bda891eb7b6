// Package lint implements a structural validator over the AIR AST,
// catching a subset of spec.md §7's execution errors statically instead of
// only at runtime. It never executes the script; it only walks the tree.
//
// Grounded in the teacher's internal/workflow/dag.go cycle-detection pass
// (a pure structural walk over a graph before any node runs), adapted here
// from DAG-shape validation to AST-shape validation.
package lint

import (
	"fmt"

	"github.com/oriys/airvm/internal/air/ast"
)

// Severity tags a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one lint finding with no associated source offset (the
// AST carries no position information; see internal/air/parser for
// offset-carrying errors during parsing itself).
type Diagnostic struct {
	Severity Severity
	Message  string
}

type linter struct {
	foldStack  []string
	scalarSeen map[string]bool
	diags      []Diagnostic
}

// Check walks instr and returns every structural finding.
func Check(instr ast.Instruction) []Diagnostic {
	l := &linter{scalarSeen: make(map[string]bool)}
	l.walk(instr)
	return l.diags
}

func (l *linter) inFold(name string) bool {
	for _, f := range l.foldStack {
		if f == name {
			return true
		}
	}
	return false
}

func (l *linter) report(sev Severity, format string, args ...any) {
	l.diags = append(l.diags, Diagnostic{Severity: sev, Message: fmt.Sprintf(format, args...)})
}

func (l *linter) walk(instr ast.Instruction) {
	switch n := instr.(type) {
	case ast.Null:
	case ast.Error:
	case *ast.Seq:
		l.walk(n.Left)
		l.walk(n.Right)
	case *ast.Par:
		l.walk(n.Left)
		l.walk(n.Right)
	case *ast.Xor:
		l.walk(n.Left)
		l.walk(n.Right)
	case *ast.Call:
		l.checkCall(n)
	case *ast.Fold:
		l.foldStack = append(l.foldStack, n.Iterator)
		l.walk(n.Body)
		l.foldStack = l.foldStack[:len(l.foldStack)-1]
	case ast.Next:
		if !l.inFold(n.Iterator) {
			l.report(SeverityError, "next %q has no enclosing fold bound to that iterator", n.Iterator)
		}
	case *ast.Match:
		l.walk(n.Body)
	case *ast.MisMatch:
		l.walk(n.Body)
	default:
		l.report(SeverityWarning, "unrecognized instruction node %T", instr)
	}
}

func (l *linter) checkCall(n *ast.Call) {
	_, peerOnly := n.PeerPart.(ast.PeerPk)
	_, funcOnly := n.FunctionPart.(ast.FuncName)
	if peerOnly && funcOnly {
		l.report(SeverityError, "call supplies no service id on either peer_part or function_part; it will fail at runtime with InstructionError")
	}

	if sc, ok := n.Output.(ast.Scalar); ok {
		if l.scalarSeen[sc.Name] && len(l.foldStack) == 0 {
			l.report(SeverityError, "scalar output %q is bound more than once outside any fold", sc.Name)
		}
		l.scalarSeen[sc.Name] = true
	}
}
