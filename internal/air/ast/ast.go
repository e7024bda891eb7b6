// Package ast defines the AIR instruction tree: the immutable, parsed
// representation of a script. Nodes are never mutated once parsed; all
// per-hop state lives in the execution context, not here.
package ast

// Value is a call argument or matchable, resolved against the data cache
// at execution time.
type Value interface {
	isValue()
}

// InitPeerID resolves to the hop's init_peer_id.
type InitPeerID struct{}

// Literal resolves to itself.
type Literal struct {
	Value string
}

// Variable resolves to the named data-cache slot.
type Variable struct {
	Name string
}

// JSONPath resolves by applying Path against the named variable's value.
type JSONPath struct {
	Variable string
	Path     string
}

func (InitPeerID) isValue() {}
func (Literal) isValue()    {}
func (Variable) isValue()   {}
func (JSONPath) isValue()   {}

// PeerPart is the peer half of a call triplet.
type PeerPart interface {
	isPeerPart()
}

// PeerPk names only a peer.
type PeerPk struct {
	Peer Value
}

// PeerPkWithServiceID names a peer and a service id.
type PeerPkWithServiceID struct {
	Peer      Value
	ServiceID Value
}

func (PeerPk) isPeerPart()              {}
func (PeerPkWithServiceID) isPeerPart() {}

// FunctionPart is the function half of a call triplet.
type FunctionPart interface {
	isFunctionPart()
}

// FuncName names only a function.
type FuncName struct {
	Name Value
}

// ServiceIDWithFuncName names a service id and a function.
type ServiceIDWithFuncName struct {
	ServiceID Value
	Name      Value
}

func (FuncName) isFunctionPart()              {}
func (ServiceIDWithFuncName) isFunctionPart() {}

// Output is the binding for a call's result.
type Output interface {
	isOutput()
}

// Scalar writes once to Name.
type Scalar struct {
	Name string
}

// Accumulator appends to Name.
type Accumulator struct {
	Name string
}

// NoOutput discards the result.
type NoOutput struct{}

func (Scalar) isOutput()      {}
func (Accumulator) isOutput() {}
func (NoOutput) isOutput()    {}

// Instruction is an AIR AST node.
type Instruction interface {
	isInstruction()
}

// Null has no effect.
type Null struct{}

// Call invokes a service on a peer.
type Call struct {
	PeerPart     PeerPart
	FunctionPart FunctionPart
	Args         []Value
	Output       Output
}

// Seq executes Left then, if it completed, Right.
type Seq struct {
	Left  Instruction
	Right Instruction
}

// Par explores Left and Right independently, fanning out via trace markers.
type Par struct {
	Left  Instruction
	Right Instruction
}

// Xor executes Left, falling back to Right on a recoverable call failure.
type Xor struct {
	Left  Instruction
	Right Instruction
}

// Fold iterates Iterable, binding Iterator for each element while executing Body.
type Fold struct {
	Iterable Value
	Iterator string
	Body     Instruction
}

// Next advances the fold cursor bound to Iterator.
type Next struct {
	Iterator string
}

// Match executes Body when Left and Right compare structurally equal.
type Match struct {
	Left  Value
	Right Value
	Body  Instruction
}

// MisMatch executes Body when Left and Right do not compare structurally equal.
type MisMatch struct {
	Left  Value
	Right Value
	Body  Instruction
}

// Error halts execution; produced only by the literal `(error)` form (the
// parser stops at the first grammar error and inserts no recovery node).
type Error struct {
	Message string
}

func (Null) isInstruction()     {}
func (*Call) isInstruction()    {}
func (*Seq) isInstruction()     {}
func (*Par) isInstruction()     {}
func (*Xor) isInstruction()     {}
func (*Fold) isInstruction()    {}
func (Next) isInstruction()     {}
func (*Match) isInstruction()   {}
func (*MisMatch) isInstruction() {}
func (Error) isInstruction()    {}
