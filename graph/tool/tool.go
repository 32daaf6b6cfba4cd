// Package tool provides the deterministic enrichment tools applied to a
// finished draft.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ResultKey is the output key every built-in tool sets to its display text.
const ResultKey = "result"

var (
	// ErrUnknownTool is returned by Registry.Call for an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidInput is returned when a required parameter is missing or has
	// the wrong type.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrDuplicateTool is returned by Registry.Register for a name already taken.
	ErrDuplicateTool = errors.New("duplicate tool")
)

// Tool is a named operation over structured input.
//
// Implementations validate their input, respect ctx cancellation and return
// structured output. Built-in tools always set ResultKey to a human-readable
// line alongside their typed fields.
type Tool interface {
	// Name returns the unique identifier, lowercase with underscores.
	Name() string

	// Call executes the tool. input may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Registry holds tools by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns a registry containing tools. It panics on a duplicate
// name, which is a wiring mistake.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t to the registry.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Call(ctx, input)
}

// Result extracts the display line from a tool output.
func Result(output map[string]interface{}) string {
	s, _ := output[ResultKey].(string)
	return s
}

func stringParam(input map[string]interface{}, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", fmt.Errorf("%w: %q is required", ErrInvalidInput, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidInput, key, v)
	}
	return s, nil
}

// optionalString returns input[key] or def when the key is absent or empty.
func optionalString(input map[string]interface{}, key, def string) (string, error) {
	if _, ok := input[key]; !ok {
		return def, nil
	}
	s, err := stringParam(input, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func optionalInt(input map[string]interface{}, key string, def int) (int, error) {
	v, ok := input[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidInput, key, v)
	}
}
