// Package interpreter wires the parser, trace merger, and execution engine
// into the single entry point spec.md §6 describes as the invocation ABI:
// (init_peer_id, script, prev_trace, current_trace) -> structured outcome.
package interpreter

import (
	"encoding/json"

	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/engine"
	"github.com/oriys/airvm/internal/air/execctx"
	"github.com/oriys/airvm/internal/air/merge"
	airparser "github.com/oriys/airvm/internal/air/parser"
	"github.com/oriys/airvm/internal/air/trace"
	"github.com/oriys/airvm/internal/circuitbreaker"
)

// Exit-code taxonomy, per spec.md §6.
const (
	RetOK                 = 0
	RetReserved            = 1
	RetParseError          = 2
	RetTraceDecodeError    = 3
	RetMergeIncompatible   = 4
	RetExecutionError      = 5
)

// Outcome is the structured result of one hop, per spec.md §4.5 and §6.
type Outcome struct {
	RetCode      int
	ErrorMessage string
	Data         []byte
	NextPeerPKs  []string
}

// Options configures optional collaborators for a Run.
type Options struct {
	Breakers      *circuitbreaker.Registry
	BreakerConfig circuitbreaker.Config
}

// Run executes one hop: parse script (or reuse a pre-parsed AST via
// RunAST), decode both traces, merge them into a baseline, and walk the
// AST against that baseline, invoking callService for any call resolved to
// the current peer.
func Run(script string, prevTraceBytes, currentTraceBytes []byte, initPeerID, currentPeerID string, callService engine.CallServiceFunc, opts Options) Outcome {
	instr, err := airparser.Parse(script)
	if err != nil {
		return Outcome{RetCode: RetParseError, ErrorMessage: err.Error(), Data: emptyTraceJSON(), NextPeerPKs: nil}
	}
	return RunAST(instr, prevTraceBytes, currentTraceBytes, initPeerID, currentPeerID, callService, opts)
}

// RunAST is Run with a pre-parsed AST, letting a caller reuse a parse
// across hops without re-lexing the script text.
func RunAST(instr ast.Instruction, prevTraceBytes, currentTraceBytes []byte, initPeerID, currentPeerID string, callService engine.CallServiceFunc, opts Options) Outcome {
	prevTrace, err := trace.Decode(prevTraceBytes)
	if err != nil {
		return Outcome{RetCode: RetTraceDecodeError, ErrorMessage: err.Error(), Data: emptyTraceJSON()}
	}
	currTrace, err := trace.Decode(currentTraceBytes)
	if err != nil {
		return Outcome{RetCode: RetTraceDecodeError, ErrorMessage: err.Error(), Data: emptyTraceJSON()}
	}

	baseline, err := merge.Merge(prevTrace, currTrace)
	if err != nil {
		data, _ := json.Marshal(baseline)
		return Outcome{RetCode: RetMergeIncompatible, ErrorMessage: err.Error(), Data: data}
	}

	ctx := execctx.New(currentPeerID, initPeerID)
	eng := &engine.Engine{CallService: callService, Breakers: opts.Breakers, BreakerConfig: opts.BreakerConfig}

	produced, err := eng.Run(instr, baseline, ctx)
	data, merr := json.Marshal(produced)
	if merr != nil {
		data = emptyTraceJSON()
	}
	if err != nil {
		return Outcome{RetCode: RetExecutionError, ErrorMessage: err.Error(), Data: data, NextPeerPKs: ctx.NextPeerPKs()}
	}
	return Outcome{RetCode: RetOK, Data: data, NextPeerPKs: ctx.NextPeerPKs()}
}

func emptyTraceJSON() []byte {
	data, _ := json.Marshal(trace.Trace{})
	return data
}
