// Package stub implements a YAML-defined registry of call_service
// responses, standing in for the host-language FFI boundary spec.md
// declares out of scope for this repository.
package stub

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ServiceStub describes one stubbed call_service response, keyed by the
// (service_id, function_name) pair the engine resolves via internal/air/value.Triplet.
type ServiceStub struct {
	ServiceID    string `yaml:"service_id"`
	FunctionName string `yaml:"function_name"`
	Result       string `yaml:"result"`             // raw JSON text returned as the call's output
	RetCode      int    `yaml:"ret_code,omitempty"` // 0 = ServiceResult, nonzero = service-reported failure
}

// File is the top-level shape of a stub YAML document.
type File struct {
	Services []ServiceStub `yaml:"services"`
}

// Registry answers call_service invocations from a set of loaded stubs,
// falling back to a catch-all echo stub when nothing matches — this
// keeps `cmd/air run`/`network`/`daemon` runnable against any script without
// requiring a stub file.
type Registry struct {
	mu    sync.RWMutex
	stubs map[key]ServiceStub
}

type key struct {
	serviceID    string
	functionName string
}

// NewRegistry returns an empty registry that echoes every call.
func NewRegistry() *Registry {
	return &Registry{stubs: make(map[key]ServiceStub)}
}

// ParseFile loads a stub registry from a YAML file path.
func ParseFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stub file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse loads a stub registry from YAML content, supporting multiple
// `---`-separated documents the way the teacher's spec.Parse does.
func Parse(r io.Reader) (*Registry, error) {
	reg := NewRegistry()
	decoder := yaml.NewDecoder(r)

	for {
		var doc File
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode stub yaml: %w", err)
		}
		for _, s := range doc.Services {
			if err := s.validate(); err != nil {
				return nil, err
			}
			reg.Add(s)
		}
	}

	return reg, nil
}

func (s ServiceStub) validate() error {
	if s.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if s.FunctionName == "" {
		return fmt.Errorf("function_name is required")
	}
	if s.Result == "" {
		return fmt.Errorf("result is required for service %q function %q", s.ServiceID, s.FunctionName)
	}
	return nil
}

// Add registers or overwrites a stub.
func (r *Registry) Add(s ServiceStub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs[key{s.ServiceID, s.FunctionName}] = s
}

// Call answers a call_service invocation, matching internal/air/engine's
// CallServiceFunc signature. Unmatched (service_id, function_name) pairs
// fall back to echoing the first argument (or "null" if args is empty),
// with ret_code 0.
func (r *Registry) Call(serviceID, functionName string, args []any) (retCode int, result string) {
	r.mu.RLock()
	s, ok := r.stubs[key{serviceID, functionName}]
	r.mu.RUnlock()

	if ok {
		return s.RetCode, s.Result
	}

	return 0, echo(args)
}

// echo JSON-encodes the first argument, or returns "null" if args is
// empty or unencodable — this is the default catch-all behavior when no
// stub matches.
func echo(args []any) string {
	if len(args) == 0 {
		return "null"
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return "null"
	}
	return string(data)
}
