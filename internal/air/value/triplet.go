package value

import (
	"errors"
	"fmt"

	"github.com/oriys/airvm/internal/air/ast"
)

// Triplet is the resolved (peer, service, function) a Call targets.
type Triplet struct {
	PeerPK       string
	ServiceID    string
	FunctionName string
}

// InstructionError is InstructionError(msg) from spec.md §7: a fail-fast
// execution error with no recovery path; an enclosing Xor does not catch it.
type InstructionError struct {
	Msg string
}

func (e *InstructionError) Error() string { return "instruction error: " + e.Msg }

// Resolver resolves an ast.Value to a string, applying the value-resolution
// rules of spec.md §4.2 ("Value resolution"). Implemented by
// internal/air/execctx against the live Ctx.
type Resolver interface {
	ResolveString(v ast.Value) (string, error)
}

// ResolveTriplet builds the call triplet from peer_part/function_part,
// applying the exact precedence resolved for the spec's first Open
// Question (see DESIGN.md, grounded in original_source's triplet.rs):
//
//   - PeerPkWithServiceID + ServiceIDWithFuncName: function part's service id wins.
//   - PeerPkWithServiceID + FuncName:              peer part's service id is used.
//   - PeerPk + ServiceIDWithFuncName:               function part's service id is used.
//   - PeerPk + FuncName:                            neither supplies a service id -> InstructionError.
func ResolveTriplet(peerPart ast.PeerPart, functionPart ast.FunctionPart, r Resolver) (Triplet, error) {
	var peer, peerServiceID, funcServiceID, funcName string
	var havePeerServiceID, haveFuncServiceID bool
	var err error

	switch p := peerPart.(type) {
	case ast.PeerPk:
		peer, err = r.ResolveString(p.Peer)
	case ast.PeerPkWithServiceID:
		peer, err = r.ResolveString(p.Peer)
		if err == nil {
			peerServiceID, err = r.ResolveString(p.ServiceID)
			havePeerServiceID = true
		}
	default:
		err = fmt.Errorf("unknown peer part %T", peerPart)
	}
	if err != nil {
		return Triplet{}, err
	}

	switch f := functionPart.(type) {
	case ast.FuncName:
		funcName, err = r.ResolveString(f.Name)
	case ast.ServiceIDWithFuncName:
		funcServiceID, err = r.ResolveString(f.ServiceID)
		if err == nil {
			haveFuncServiceID = true
			funcName, err = r.ResolveString(f.Name)
		}
	default:
		err = fmt.Errorf("unknown function part %T", functionPart)
	}
	if err != nil {
		return Triplet{}, err
	}

	var serviceID string
	switch {
	case haveFuncServiceID:
		serviceID = funcServiceID
	case havePeerServiceID:
		serviceID = peerServiceID
	default:
		return Triplet{}, &InstructionError{Msg: "neither peer_part nor function_part supplies a service id"}
	}

	return Triplet{PeerPK: peer, ServiceID: serviceID, FunctionName: funcName}, nil
}

// ErrIncompatibleJValueType is raised when a string-typed slot resolves to a
// non-string JValue.
var ErrIncompatibleJValueType = errors.New("incompatible jvalue type")
