package trace

import (
	"encoding/json"
	"testing"
)

func TestTrace_MarshalUnmarshal_RoundTrip(t *testing.T) {
	in := Trace{
		CallState(Executed("test")),
		ParState(1, 2),
		CallState(RequestSentBy("peer-a")),
		CallState(CallServiceFailed("boom")),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Trace
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if in[i].IsPar != out[i].IsPar {
			t.Fatalf("state %d: IsPar mismatch", i)
		}
		if in[i].IsPar {
			if in[i].ParLeft != out[i].ParLeft || in[i].ParRight != out[i].ParRight {
				t.Fatalf("state %d: par lengths mismatch", i)
			}
			continue
		}
		if in[i].Call.Kind != out[i].Call.Kind {
			t.Fatalf("state %d: call kind mismatch", i)
		}
	}
}

func TestTrace_MarshalJSON_Schema(t *testing.T) {
	tr := Trace{CallState(RequestSentBy("A"))}
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"call":{"request_sent_by":"A"}}]`
	if string(data) != want {
		t.Fatalf("got %s want %s", data, want)
	}
}

func TestTrace_MarshalJSON_ParSchema(t *testing.T) {
	tr := Trace{ParState(1, 2)}
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"par":[1,2]}]`
	if string(data) != want {
		t.Fatalf("got %s want %s", data, want)
	}
}

func TestTrace_EmptyTrace(t *testing.T) {
	tr := Trace{}
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %s want []", data)
	}

	decoded, err := Decode([]byte{})
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty trace, got %v", decoded)
	}
}

func TestTrace_Decode_MalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}

func TestStream_Sub_SkipPast(t *testing.T) {
	tr := Trace{
		CallState(Executed("a")),
		CallState(Executed("b")),
		CallState(Executed("c")),
	}
	s := NewStream(tr)
	sub := s.Sub(2)
	first, ok := sub.Peek()
	if !ok || first.Call.Value != "a" {
		t.Fatalf("unexpected sub stream head: %+v", first)
	}
	s.SkipPast(2)
	rest, ok := s.Peek()
	if !ok || rest.Call.Value != "c" {
		t.Fatalf("expected parent stream advanced to 'c', got %+v", rest)
	}
}

func TestStream_Sub_BeyondEnd(t *testing.T) {
	tr := Trace{CallState(Executed("a"))}
	s := NewStream(tr)
	sub := s.Sub(5)
	if sub.Remaining() != 1 {
		t.Fatalf("expected sub to clamp to available elements, got %d", sub.Remaining())
	}
}
