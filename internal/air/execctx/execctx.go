// Package execctx implements the per-hop execution context of spec.md §3:
// the data cache, fold stack, next-peer set, and completion flag shared
// mutably by the execution engine while it walks one script instance.
package execctx

import (
	"fmt"

	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/value"
)

// ErrMultipleVariablesFound is raised rewriting a Scalar outside an active
// fold shadow, per spec.md invariant 2.
type ErrMultipleVariablesFound struct {
	Name string
}

func (e *ErrMultipleVariablesFound) Error() string {
	return fmt.Sprintf("variable %q already bound", e.Name)
}

// ErrVariableNotFound is raised resolving an unbound Variable/JSONPath.
type ErrVariableNotFound struct {
	Name string
}

func (e *ErrVariableNotFound) Error() string {
	return fmt.Sprintf("variable %q not found", e.Name)
}

// ErrFoldStateNotFound is raised by Next(name) with no matching Fold.
type ErrFoldStateNotFound struct {
	Name string
}

func (e *ErrFoldStateNotFound) Error() string {
	return fmt.Sprintf("no active fold bound to %q", e.Name)
}

// ErrIterableNotArray is raised when a Fold's iterable does not resolve to
// a JSON array.
type ErrIterableNotArray struct {
	Name string
}

func (e *ErrIterableNotArray) Error() string {
	return fmt.Sprintf("iterable %q did not resolve to an array", e.Name)
}

// Ctx is the mutable execution context for one hop.
type Ctx struct {
	dataCache map[string]value.JValuable

	// NextPeerPKs preserves first-seen insertion order (spec.md §5).
	nextPeerPKs       []string
	nextPeerPKsSeen   map[string]bool
	CurrentPeerID     string
	InitPeerID        string
	SubtreeComplete   bool
	// SubtreeFailed reports whether the most recently executed subtree
	// ended in a CallServiceFailed result (for a Par, whether either branch
	// did; Null, a skipped Match body and a closing Next clear it); Xor
	// consults this (not
	// merely SubtreeComplete) to decide whether to run its right branch,
	// since a deferred RequestSentBy call also leaves SubtreeComplete
	// false without being a recoverable failure.
	SubtreeFailed bool
	metFolds      []string
	foldFrames    []*FoldFrame
}

// FoldFrame holds the state the engine needs to recurse into a fold's next
// iteration when Next is reached, keyed by the fold's iterator name. It is
// pushed by Fold and consulted by Next, wherever in the body's tree Next
// turns out to sit (including nested inside a Par or Xor branch).
type FoldFrame struct {
	Iterator string
	Elements []value.JValue
	Source   value.Tetraplet
	Body     ast.Instruction
	Pos      int
}

// New creates an empty execution context for one hop.
func New(currentPeerID, initPeerID string) *Ctx {
	return &Ctx{
		dataCache:       make(map[string]value.JValuable),
		nextPeerPKsSeen: make(map[string]bool),
		CurrentPeerID:   currentPeerID,
		InitPeerID:      initPeerID,
	}
}

// AddNextPeerPK records a peer that must receive the continuation,
// deduplicating while preserving first-seen order.
func (c *Ctx) AddNextPeerPK(peer string) {
	if c.nextPeerPKsSeen[peer] {
		return
	}
	c.nextPeerPKsSeen[peer] = true
	c.nextPeerPKs = append(c.nextPeerPKs, peer)
}

// NextPeerPKs returns the deduped, stable-order list of next hops.
func (c *Ctx) NextPeerPKs() []string {
	out := make([]string, len(c.nextPeerPKs))
	copy(out, c.nextPeerPKs)
	return out
}

// PushFold marks iterator as active, enabling shadowed scalar writes.
func (c *Ctx) PushFold(iterator string) { c.metFolds = append(c.metFolds, iterator) }

// PopFold removes the most recently pushed fold iterator.
func (c *Ctx) PopFold() {
	if len(c.metFolds) > 0 {
		c.metFolds = c.metFolds[:len(c.metFolds)-1]
	}
}

// InFold reports whether iterator is currently an active fold (on met_folds).
func (c *Ctx) InFold(iterator string) bool {
	for _, f := range c.metFolds {
		if f == iterator {
			return true
		}
	}
	return false
}

// metFoldsActive reports whether any fold is currently active; a Scalar
// rewrite is only legal when it happens textually inside some fold body.
func (c *Ctx) metFoldsActive() bool { return len(c.metFolds) > 0 }

// PushFoldFrame installs a fold's continuation frame, consulted by Next to
// recurse into the following iteration.
func (c *Ctx) PushFoldFrame(f *FoldFrame) { c.foldFrames = append(c.foldFrames, f) }

// PopFoldFrame removes the most recently pushed fold frame.
func (c *Ctx) PopFoldFrame() {
	if len(c.foldFrames) > 0 {
		c.foldFrames = c.foldFrames[:len(c.foldFrames)-1]
	}
}

// FoldFrame returns the innermost active frame for iterator, or nil.
func (c *Ctx) FoldFrame(iterator string) *FoldFrame {
	for i := len(c.foldFrames) - 1; i >= 0; i-- {
		if c.foldFrames[i].Iterator == iterator {
			return c.foldFrames[i]
		}
	}
	return nil
}

// Get returns the JValuable bound to name.
func (c *Ctx) Get(name string) (value.JValuable, error) {
	v, ok := c.dataCache[name]
	if !ok {
		return nil, &ErrVariableNotFound{Name: name}
	}
	return v, nil
}

// BindOutput applies the output-binding rules of spec.md §4.2: Scalar
// inserts-or-errors (unless shadowed by an active fold), Accumulator
// appends, NoOutput discards.
func (c *Ctx) BindOutput(output ast.Output, v value.JValue, tet value.Tetraplet) error {
	switch o := output.(type) {
	case ast.Scalar:
		if _, exists := c.dataCache[o.Name]; exists && !c.metFoldsActive() {
			return &ErrMultipleVariablesFound{Name: o.Name}
		}
		c.dataCache[o.Name] = value.Scalar{Value: v, Tetraplet: tet}
	case ast.Accumulator:
		acc, ok := c.dataCache[o.Name].(*value.Accumulator)
		if !ok {
			acc = &value.Accumulator{Name: o.Name}
			c.dataCache[o.Name] = acc
		}
		acc.Append(v, tet)
	case ast.NoOutput:
		// discard
	default:
		return fmt.Errorf("unknown output kind %T", output)
	}
	return nil
}

// BindFoldCursor installs a fold cursor under name, shadowing any outer
// scalar for the duration of the fold.
func (c *Ctx) BindFoldCursor(name string, cursor *value.FoldCursor) (restore func()) {
	prev, had := c.dataCache[name]
	c.dataCache[name] = cursor
	return func() {
		if had {
			c.dataCache[name] = prev
		} else {
			delete(c.dataCache, name)
		}
	}
}

// ResolveString implements value.Resolver for peer/service/function slots,
// which must resolve to exactly one JSON string (spec.md §4.2).
func (c *Ctx) ResolveString(v ast.Value) (string, error) {
	switch x := v.(type) {
	case ast.InitPeerID:
		return c.InitPeerID, nil
	case ast.Literal:
		return x.Value, nil
	case ast.Variable:
		jv, err := c.Get(x.Name)
		if err != nil {
			return "", err
		}
		raw, err := jv.IntoJValue()
		if err != nil {
			return "", err
		}
		s, ok := raw.(string)
		if !ok {
			return "", value.ErrIncompatibleJValueType
		}
		return s, nil
	case ast.JSONPath:
		jv, err := c.Get(x.Variable)
		if err != nil {
			return "", err
		}
		matches, err := jv.ApplyJSONPath(x.Path)
		if err != nil {
			return "", err
		}
		if len(matches) != 1 {
			return "", &ErrMultipleValuesInJSONPath{Path: x.Path, Count: len(matches)}
		}
		s, ok := matches[0].(string)
		if !ok {
			return "", value.ErrIncompatibleJValueType
		}
		return s, nil
	default:
		return "", fmt.Errorf("unknown value kind %T", v)
	}
}

// ErrMultipleValuesInJSONPath is raised when a peer/service/function slot's
// JSON path matches more than one value.
type ErrMultipleValuesInJSONPath struct {
	Path  string
	Count int
}

func (e *ErrMultipleValuesInJSONPath) Error() string {
	return fmt.Sprintf("json path %q matched %d values, expected exactly one", e.Path, e.Count)
}

// ResolveArgs resolves a Call's argument list to a JSON array. A JSONPath
// argument contributes the full array of matches wrapped in a JSON array
// (spec.md §4.2); other kinds contribute a single value.
func (c *Ctx) ResolveArgs(args []ast.Value) ([]value.JValue, error) {
	out := make([]value.JValue, 0, len(args))
	for _, a := range args {
		switch x := a.(type) {
		case ast.InitPeerID:
			out = append(out, c.InitPeerID)
		case ast.Literal:
			out = append(out, x.Value)
		case ast.Variable:
			jv, err := c.Get(x.Name)
			if err != nil {
				return nil, err
			}
			raw, err := jv.IntoJValue()
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		case ast.JSONPath:
			jv, err := c.Get(x.Variable)
			if err != nil {
				return nil, err
			}
			matches, err := jv.ApplyJSONPath(x.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, []value.JValue(matches))
		default:
			return nil, fmt.Errorf("unknown value kind %T", a)
		}
	}
	return out, nil
}
