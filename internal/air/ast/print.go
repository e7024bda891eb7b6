package ast

import "fmt"

// ToJSON renders an Instruction tree as a generic JSON-marshalable value,
// mirroring the shape the original AquaVM wasm_bindgen `ast` export
// produced: a tagged object per node, recursively nested.
func ToJSON(instr Instruction) map[string]any {
	switch n := instr.(type) {
	case Null:
		return tag("null", nil)
	case *Call:
		return tag("call", map[string]any{
			"peer_part":     peerPartJSON(n.PeerPart),
			"function_part": functionPartJSON(n.FunctionPart),
			"args":          valuesJSON(n.Args),
			"output":        outputJSON(n.Output),
		})
	case *Seq:
		return tag("seq", map[string]any{"left": ToJSON(n.Left), "right": ToJSON(n.Right)})
	case *Par:
		return tag("par", map[string]any{"left": ToJSON(n.Left), "right": ToJSON(n.Right)})
	case *Xor:
		return tag("xor", map[string]any{"left": ToJSON(n.Left), "right": ToJSON(n.Right)})
	case *Fold:
		return tag("fold", map[string]any{
			"iterable": valueJSON(n.Iterable),
			"iterator": n.Iterator,
			"body":     ToJSON(n.Body),
		})
	case Next:
		return tag("next", map[string]any{"iterator": n.Iterator})
	case *Match:
		return tag("match", map[string]any{
			"left": valueJSON(n.Left), "right": valueJSON(n.Right), "body": ToJSON(n.Body),
		})
	case *MisMatch:
		return tag("mismatch", map[string]any{
			"left": valueJSON(n.Left), "right": valueJSON(n.Right), "body": ToJSON(n.Body),
		})
	case Error:
		return tag("error", map[string]any{"message": n.Message})
	default:
		return tag("unknown", map[string]any{"go_type": fmt.Sprintf("%T", instr)})
	}
}

func tag(name string, body map[string]any) map[string]any {
	if body == nil {
		body = map[string]any{}
	}
	return map[string]any{name: body}
}

func valueJSON(v Value) map[string]any {
	switch x := v.(type) {
	case InitPeerID:
		return tag("init_peer_id", nil)
	case Literal:
		return tag("literal", map[string]any{"value": x.Value})
	case Variable:
		return tag("variable", map[string]any{"name": x.Name})
	case JSONPath:
		return tag("json_path", map[string]any{"variable": x.Variable, "path": x.Path})
	default:
		return tag("unknown", nil)
	}
}

func valuesJSON(vs []Value) []map[string]any {
	out := make([]map[string]any, len(vs))
	for i, v := range vs {
		out[i] = valueJSON(v)
	}
	return out
}

func peerPartJSON(p PeerPart) map[string]any {
	switch x := p.(type) {
	case PeerPk:
		return tag("peer_pk", map[string]any{"peer": valueJSON(x.Peer)})
	case PeerPkWithServiceID:
		return tag("peer_pk_with_service_id", map[string]any{
			"peer": valueJSON(x.Peer), "service_id": valueJSON(x.ServiceID),
		})
	default:
		return tag("unknown", nil)
	}
}

func functionPartJSON(f FunctionPart) map[string]any {
	switch x := f.(type) {
	case FuncName:
		return tag("func_name", map[string]any{"name": valueJSON(x.Name)})
	case ServiceIDWithFuncName:
		return tag("service_id_with_func_name", map[string]any{
			"service_id": valueJSON(x.ServiceID), "name": valueJSON(x.Name),
		})
	default:
		return tag("unknown", nil)
	}
}

func outputJSON(o Output) map[string]any {
	switch x := o.(type) {
	case Scalar:
		return tag("scalar", map[string]any{"name": x.Name})
	case Accumulator:
		return tag("accumulator", map[string]any{"name": x.Name})
	case NoOutput:
		return tag("none", nil)
	default:
		return tag("unknown", nil)
	}
}
