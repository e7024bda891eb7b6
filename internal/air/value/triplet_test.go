package value

import (
	"testing"

	"github.com/oriys/airvm/internal/air/ast"
)

type fakeResolver map[string]string

func (f fakeResolver) ResolveString(v ast.Value) (string, error) {
	switch x := v.(type) {
	case ast.Literal:
		return x.Value, nil
	case ast.Variable:
		return f[x.Name], nil
	default:
		return "", nil
	}
}

func TestResolveTriplet_FuncPartServiceIDWins(t *testing.T) {
	r := fakeResolver{}
	peer := ast.PeerPkWithServiceID{Peer: ast.Literal{Value: "peer1"}, ServiceID: ast.Literal{Value: "peer-svc"}}
	fn := ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "func-svc"}, Name: ast.Literal{Value: "f"}}

	triplet, err := ResolveTriplet(peer, fn, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triplet.ServiceID != "func-svc" {
		t.Fatalf("expected function part's service id to win, got %q", triplet.ServiceID)
	}
}

func TestResolveTriplet_PeerPartServiceIDUsed(t *testing.T) {
	r := fakeResolver{}
	peer := ast.PeerPkWithServiceID{Peer: ast.Literal{Value: "peer1"}, ServiceID: ast.Literal{Value: "peer-svc"}}
	fn := ast.FuncName{Name: ast.Literal{Value: "f"}}

	triplet, err := ResolveTriplet(peer, fn, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triplet.ServiceID != "peer-svc" {
		t.Fatalf("expected peer part's service id, got %q", triplet.ServiceID)
	}
}

func TestResolveTriplet_FunctionPartServiceIDUsedWithBarePeer(t *testing.T) {
	r := fakeResolver{}
	peer := ast.PeerPk{Peer: ast.Literal{Value: "peer1"}}
	fn := ast.ServiceIDWithFuncName{ServiceID: ast.Literal{Value: "svc"}, Name: ast.Literal{Value: "f"}}

	triplet, err := ResolveTriplet(peer, fn, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triplet.ServiceID != "svc" {
		t.Fatalf("expected function part's service id, got %q", triplet.ServiceID)
	}
}

func TestResolveTriplet_NeitherSuppliesServiceID(t *testing.T) {
	r := fakeResolver{}
	peer := ast.PeerPk{Peer: ast.Literal{Value: "peer1"}}
	fn := ast.FuncName{Name: ast.Literal{Value: "f"}}

	_, err := ResolveTriplet(peer, fn, r)
	if err == nil {
		t.Fatal("expected InstructionError, got nil")
	}
	if _, ok := err.(*InstructionError); !ok {
		t.Fatalf("expected *InstructionError, got %T", err)
	}
}
