// Package trace implements the executed-state trace model of spec.md §3
// ("Executed state") and §4.3 ("Trace model"): an ordered list of
// Call/Par records, serialized as the JSON schema the external ABI uses.
package trace

import (
	"encoding/json"
	"fmt"
)

// CallResultKind tags which variant a CallResult holds.
type CallResultKind int

const (
	RequestSentByKind CallResultKind = iota
	ExecutedKind
	CallServiceFailedKind
)

// CallResult is one of RequestSentBy(peer) | Executed(value) |
// CallServiceFailed(msg).
type CallResult struct {
	Kind     CallResultKind
	Peer     string // RequestSentByKind
	Value    any    // ExecutedKind, decoded JSON
	FailMsg  string // CallServiceFailedKind
}

func RequestSentBy(peer string) CallResult { return CallResult{Kind: RequestSentByKind, Peer: peer} }
func Executed(v any) CallResult            { return CallResult{Kind: ExecutedKind, Value: v} }
func CallServiceFailed(msg string) CallResult {
	return CallResult{Kind: CallServiceFailedKind, FailMsg: msg}
}

// State is one trace element: a Call record or a Par marker spanning the
// next left+right elements (spec.md invariant 1).
type State struct {
	IsPar     bool
	Call      CallResult
	ParLeft   int
	ParRight  int
}

func CallState(r CallResult) State { return State{Call: r} }
func ParState(left, right int) State {
	return State{IsPar: true, ParLeft: left, ParRight: right}
}

// Trace is the ordered list of executed states produced by one hop.
type Trace []State

type wireCall struct {
	Executed        *json.RawMessage `json:"executed,omitempty"`
	RequestSentBy   *string          `json:"request_sent_by,omitempty"`
	CallServiceFailed *string        `json:"call_service_failed,omitempty"`
}

type wireState struct {
	Call *wireCall `json:"call,omitempty"`
	Par  *[2]int   `json:"par,omitempty"`
}

// MarshalJSON renders the trace per spec.md §4.3's single-key-object schema.
func (t Trace) MarshalJSON() ([]byte, error) {
	out := make([]wireState, len(t))
	for i, s := range t {
		if s.IsPar {
			pair := [2]int{s.ParLeft, s.ParRight}
			out[i] = wireState{Par: &pair}
			continue
		}
		wc := wireCall{}
		switch s.Call.Kind {
		case ExecutedKind:
			raw, err := json.Marshal(s.Call.Value)
			if err != nil {
				return nil, err
			}
			rm := json.RawMessage(raw)
			wc.Executed = &rm
		case RequestSentByKind:
			p := s.Call.Peer
			wc.RequestSentBy = &p
		case CallServiceFailedKind:
			m := s.Call.FailMsg
			wc.CallServiceFailed = &m
		default:
			return nil, fmt.Errorf("unknown call result kind %d", s.Call.Kind)
		}
		out[i] = wireState{Call: &wc}
	}
	if out == nil {
		out = []wireState{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a trace from the §4.3 JSON schema. An empty/absent
// input decodes to an empty trace (spec.md: "An empty trace is []").
func (t *Trace) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*t = Trace{}
		return nil
	}
	var raw []wireState
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("trace decode error: %w", err)
	}
	out := make(Trace, 0, len(raw))
	for _, w := range raw {
		switch {
		case w.Par != nil:
			out = append(out, ParState(w.Par[0], w.Par[1]))
		case w.Call != nil:
			switch {
			case w.Call.Executed != nil:
				var v any
				if err := json.Unmarshal(*w.Call.Executed, &v); err != nil {
					return fmt.Errorf("trace decode error: %w", err)
				}
				out = append(out, CallState(Executed(v)))
			case w.Call.RequestSentBy != nil:
				out = append(out, CallState(RequestSentBy(*w.Call.RequestSentBy)))
			case w.Call.CallServiceFailed != nil:
				out = append(out, CallState(CallServiceFailed(*w.Call.CallServiceFailed)))
			default:
				return fmt.Errorf("trace decode error: empty call record")
			}
		default:
			return fmt.Errorf("trace decode error: empty state record")
		}
	}
	*t = out
	return nil
}

// Decode parses raw bytes into a Trace, treating empty input as an empty
// trace.
func Decode(data []byte) (Trace, error) {
	if len(data) == 0 {
		return Trace{}, nil
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Stream is a peek/advance cursor over a Trace, used by the merger and the
// engine to walk a baseline trace without mutating it.
type Stream struct {
	states []State
	pos    int
}

func NewStream(t Trace) *Stream { return &Stream{states: []State(t)} }

// Peek returns the current element without advancing, or ok=false at end.
func (s *Stream) Peek() (State, bool) {
	if s.pos >= len(s.states) {
		return State{}, false
	}
	return s.states[s.pos], true
}

// Advance moves the cursor forward by one element.
func (s *Stream) Advance() { s.pos++ }

// Remaining reports how many elements are left.
func (s *Stream) Remaining() int { return len(s.states) - s.pos }

// Sub returns a new Stream restricted to the next n elements, without
// advancing the parent (used by merge_par's budget restriction).
func (s *Stream) Sub(n int) *Stream {
	end := s.pos + n
	if end > len(s.states) {
		end = len(s.states)
	}
	return &Stream{states: s.states[s.pos:end]}
}

// SkipPast advances the parent stream's cursor past a sub-stream it spawned
// via Sub, by n: the same budget the caller passed to Sub, whatever the
// sub-stream actually consumed.
func (s *Stream) SkipPast(n int) { s.pos += n }
