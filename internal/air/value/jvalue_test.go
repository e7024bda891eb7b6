package value

import "testing"

func TestScalar_ApplyJSONPath_ObjectKey(t *testing.T) {
	s := Scalar{Value: map[string]JValue{"a": map[string]JValue{"b": "deep"}}}
	got, err := s.ApplyJSONPath(".a.b")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 1 || got[0] != "deep" {
		t.Fatalf("got %v", got)
	}
}

func TestScalar_ApplyJSONPath_ArrayIndex(t *testing.T) {
	s := Scalar{Value: []JValue{"x", "y", "z"}}
	got, err := s.ApplyJSONPath(".$.[2]")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 1 || got[0] != "z" {
		t.Fatalf("got %v", got)
	}
}

func TestScalar_ApplyJSONPath_EmptyPath_ReturnsWhole(t *testing.T) {
	s := Scalar{Value: "whole"}
	got, err := s.ApplyJSONPath("")
	if err != nil || len(got) != 1 || got[0] != "whole" {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestScalar_ApplyJSONPath_IndexOutOfRange_Errors(t *testing.T) {
	s := Scalar{Value: []JValue{"x"}}
	if _, err := s.ApplyJSONPath(".$.[5]"); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestScalar_ApplyJSONPath_MissingKey_Errors(t *testing.T) {
	s := Scalar{Value: map[string]JValue{"a": "1"}}
	if _, err := s.ApplyJSONPath(".missing"); err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestScalar_Len_NonArray_Errors(t *testing.T) {
	s := Scalar{Value: "not-an-array"}
	if _, err := s.Len(); err == nil {
		t.Fatal("expected error for non-array Len")
	}
}

func TestAccumulator_AppendAndLen(t *testing.T) {
	a := &Accumulator{Name: "acc"}
	a.Append("first", Tetraplet{PeerPK: "P1"})
	a.Append("second", Tetraplet{PeerPK: "P2"})

	n, err := a.Len()
	if err != nil || n != 2 {
		t.Fatalf("len: %d, %v", n, err)
	}
	jv, err := a.IntoJValue()
	if err != nil {
		t.Fatalf("into: %v", err)
	}
	arr, ok := jv.([]JValue)
	if !ok || len(arr) != 2 || arr[0] != "first" || arr[1] != "second" {
		t.Fatalf("got %v", jv)
	}
	tets := a.AsTetraplets()
	if len(tets) != 2 || tets[0].PeerPK != "P1" || tets[1].PeerPK != "P2" {
		t.Fatalf("got %+v", tets)
	}
}

func TestAccumulator_Empty(t *testing.T) {
	a := &Accumulator{Name: "acc"}
	n, err := a.Len()
	if err != nil || n != 0 {
		t.Fatalf("len: %d, %v", n, err)
	}
}

func TestFoldCursor_CurrentAndExhausted(t *testing.T) {
	f := &FoldCursor{Iterator: "m", Elements: []JValue{"a", "b"}}
	f.Position = 0
	v, err := f.Current()
	if err != nil || v != "a" {
		t.Fatalf("got %v, %v", v, err)
	}
	if f.Exhausted() {
		t.Fatal("expected not exhausted at position 0")
	}
	f.Position = 2
	if !f.Exhausted() {
		t.Fatal("expected exhausted at position == len")
	}
	if _, err := f.Current(); err == nil {
		t.Fatal("expected error reading Current() past the end")
	}
}

func TestFoldCursor_ApplyJSONPath_OnCurrentElement(t *testing.T) {
	f := &FoldCursor{Iterator: "m", Elements: []JValue{[]JValue{"A", "R1"}, []JValue{"B", "R2"}}}
	f.Position = 1
	got, err := f.ApplyJSONPath(".$.[1]")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 1 || got[0] != "R2" {
		t.Fatalf("got %v", got)
	}
}

func TestParseJSON_Valid(t *testing.T) {
	v, err := ParseJSON(`{"a":1,"b":[1,2,3]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, ok := v.(map[string]JValue)
	if !ok || m["a"] != float64(1) {
		t.Fatalf("got %v", v)
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON(`not json`); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEqual_NumericNormalization(t *testing.T) {
	if !Equal(float64(3), int(3)) {
		t.Fatal("expected int(3) == float64(3) after normalization")
	}
	if !Equal(int64(7), float64(7)) {
		t.Fatal("expected int64(7) == float64(7) after normalization")
	}
}

func TestEqual_Strings(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Fatal("expected equal strings to compare equal")
	}
	if Equal("abc", "abd") {
		t.Fatal("expected unequal strings to compare unequal")
	}
}

func TestEqual_Arrays(t *testing.T) {
	a := []JValue{"x", float64(1)}
	b := []JValue{"x", int(1)}
	if !Equal(a, b) {
		t.Fatal("expected arrays with normalized numerics to compare equal")
	}
}

func TestEqual_Maps_OrderIndependent(t *testing.T) {
	a := map[string]JValue{"x": float64(1), "y": "z"}
	b := map[string]JValue{"y": "z", "x": int(1)}
	if !Equal(a, b) {
		t.Fatal("expected maps with same keys/values in different order to compare equal")
	}
}

func TestEqual_DifferentTypes(t *testing.T) {
	if Equal("1", float64(1)) {
		t.Fatal("expected string \"1\" and numeric 1 to compare unequal")
	}
}
