package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// JValue is a generic decoded JSON value: nil, bool, float64, string,
// []any, or map[string]any, exactly as encoding/json decodes into `any`.
type JValue = any

// JValuable is the capability set every data-cache slot implements:
// coercion to a plain JValue, JSON-path application (with or without
// provenance), provenance access, and length for iterables.
type JValuable interface {
	IntoJValue() (JValue, error)
	ApplyJSONPath(path string) ([]JValue, error)
	ApplyJSONPathWithTetraplets(path string) ([]JValue, []Tetraplet, error)
	AsTetraplets() []Tetraplet
	Len() (int, error)
}

// Scalar is a single stored JValue with its provenance.
type Scalar struct {
	Value     JValue
	Tetraplet Tetraplet
}

func (s Scalar) IntoJValue() (JValue, error) { return s.Value, nil }

func (s Scalar) ApplyJSONPath(path string) ([]JValue, error) {
	return applyPath(s.Value, path)
}

func (s Scalar) ApplyJSONPathWithTetraplets(path string) ([]JValue, []Tetraplet, error) {
	vs, err := applyPath(s.Value, path)
	if err != nil {
		return nil, nil, err
	}
	tet := s.Tetraplet.WithPath(path)
	tets := make([]Tetraplet, len(vs))
	for i := range tets {
		tets[i] = tet
	}
	return vs, tets, nil
}

func (s Scalar) AsTetraplets() []Tetraplet { return []Tetraplet{s.Tetraplet} }

func (s Scalar) Len() (int, error) {
	arr, ok := s.Value.([]JValue)
	if !ok {
		return 0, fmt.Errorf("value is not an array")
	}
	return len(arr), nil
}

// AccumulatorEntry is one element appended to an accumulator, with its own
// provenance (the call that produced it).
type AccumulatorEntry struct {
	Value     JValue
	Tetraplet Tetraplet
}

// Accumulator is a shared, append-only list. Multiple call sites can hold
// the same *Accumulator and mutate it; it is never surfaced past the hop.
type Accumulator struct {
	Name    string
	Entries []AccumulatorEntry
}

func (a *Accumulator) Append(v JValue, t Tetraplet) {
	a.Entries = append(a.Entries, AccumulatorEntry{Value: v, Tetraplet: t})
}

func (a *Accumulator) IntoJValue() (JValue, error) {
	out := make([]JValue, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Value
	}
	return out, nil
}

func (a *Accumulator) ApplyJSONPath(path string) ([]JValue, error) {
	v, _ := a.IntoJValue()
	return applyPath(v, path)
}

func (a *Accumulator) ApplyJSONPathWithTetraplets(path string) ([]JValue, []Tetraplet, error) {
	v, _ := a.IntoJValue()
	vs, err := applyPath(v, path)
	if err != nil {
		return nil, nil, err
	}
	tets := make([]Tetraplet, len(vs))
	for i := range tets {
		if i < len(a.Entries) {
			tets[i] = a.Entries[i].Tetraplet.WithPath(path)
		}
	}
	return vs, tets, nil
}

func (a *Accumulator) AsTetraplets() []Tetraplet {
	out := make([]Tetraplet, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Tetraplet
	}
	return out
}

func (a *Accumulator) Len() (int, error) { return len(a.Entries), nil }

// FoldCursor exposes the element a fold is currently positioned at.
type FoldCursor struct {
	Iterator string
	Elements []JValue
	Position int
	Source   Tetraplet
}

func (f *FoldCursor) Current() (JValue, error) {
	if f.Position < 0 || f.Position >= len(f.Elements) {
		return nil, fmt.Errorf("fold cursor %q is exhausted", f.Iterator)
	}
	return f.Elements[f.Position], nil
}

func (f *FoldCursor) Exhausted() bool { return f.Position >= len(f.Elements) }

func (f *FoldCursor) IntoJValue() (JValue, error) { return f.Current() }

func (f *FoldCursor) ApplyJSONPath(path string) ([]JValue, error) {
	cur, err := f.Current()
	if err != nil {
		return nil, err
	}
	return applyPath(cur, path)
}

func (f *FoldCursor) ApplyJSONPathWithTetraplets(path string) ([]JValue, []Tetraplet, error) {
	vs, err := f.ApplyJSONPath(path)
	if err != nil {
		return nil, nil, err
	}
	tet := f.Source.WithPath(path)
	tets := make([]Tetraplet, len(vs))
	for i := range tets {
		tets[i] = tet
	}
	return vs, tets, nil
}

func (f *FoldCursor) AsTetraplets() []Tetraplet { return []Tetraplet{f.Source.WithPath("")} }

func (f *FoldCursor) Len() (int, error) { return len(f.Elements), nil }

// ParseJSON decodes a JSON-encoded string into a JValue.
func ParseJSON(s string) (JValue, error) {
	var v JValue
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// applyPath navigates v by a dot-separated path such as "$.[1].name". A
// leading "$" segment denotes the root and is skipped; "[N]" segments index
// into an array; other segments index into an object by key. An empty path
// returns v unchanged.
func applyPath(v JValue, path string) ([]JValue, error) {
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return []JValue{v}, nil
	}
	segments := strings.Split(path, ".")
	cur := v
	for _, seg := range segments {
		if seg == "" || seg == "$" {
			continue
		}
		if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
			idxStr := seg[1 : len(seg)-1]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, fmt.Errorf("malformed json path index %q: %w", seg, err)
			}
			arr, ok := cur.([]JValue)
			if !ok {
				return nil, fmt.Errorf("json path %q: not an array at %q", path, seg)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, fmt.Errorf("json path %q: index %d out of range", path, idx)
			}
			cur = arr[idx]
			continue
		}
		obj, ok := cur.(map[string]JValue)
		if !ok {
			return nil, fmt.Errorf("json path %q: not an object at %q", path, seg)
		}
		next, present := obj[seg]
		if !present {
			return nil, fmt.Errorf("json path %q: key %q not found", path, seg)
		}
		cur = next
	}
	return []JValue{cur}, nil
}

// Equal compares two JValues structurally, normalizing numeric variants
// (int vs float) to float64 before comparison, per spec.md §9's Open
// Question on match/mismatch numeric normalization.
func Equal(a, b JValue) bool {
	return reflect.DeepEqual(normalize(a), normalizeComparable(b, a))
}

func normalize(v JValue) any {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case []JValue:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]JValue:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return x
	}
}

func normalizeComparable(v, _ JValue) any { return normalize(v) }

func mapSignature(m map[string]JValue) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// stable order regardless of map iteration order
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(fmt.Sprintf("%v", normalize(m[k])))
		b.WriteString(";")
	}
	return b.String()
}
