package hostrpc

import (
	"context"
	"encoding/json"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestServiceDescHandlesCall(t *testing.T) {
	fn := func(serviceID, functionName string, args []json.RawMessage) (int, string) {
		if serviceID != "s" || functionName != "f" {
			t.Fatalf("unexpected call: %s/%s", serviceID, functionName)
		}
		return 0, `"ok"`
	}

	desc := ServiceDesc(fn)
	if len(desc.Methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(desc.Methods))
	}

	reqData, err := json.Marshal(Request{ServiceID: "s", FunctionName: "f"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := wrapperspb.Bytes(reqData)

	dec := func(v any) error {
		bv := v.(*wrapperspb.BytesValue)
		bv.Value = env.GetValue()
		return nil
	}

	out, err := desc.Methods[0].Handler(nil, context.Background(), dec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	respEnv := out.(*wrapperspb.BytesValue)
	var resp Response
	if err := json.Unmarshal(respEnv.GetValue(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RetCode != 0 || resp.Result != `"ok"` {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientCallRoundTrips(t *testing.T) {
	// Client.Call requires a live grpc.ClientConn; the wire-format
	// round trip it depends on (Request/Response JSON inside a
	// BytesValue) is exercised directly here instead.
	req := Request{ServiceID: "svc", FunctionName: "fn", Args: []json.RawMessage{[]byte(`1`)}}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded Request
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.ServiceID != "svc" || decoded.FunctionName != "fn" || len(decoded.Args) != 1 {
		t.Fatalf("unexpected decoded request: %+v", decoded)
	}
}
