package tools

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// WebSearchToolName identifies the search tool for result aggregation.
const WebSearchToolName = "web_search"

// Tool is a named capability the model can invoke. Invoke is uniformly
// blocking; implementations that talk to slow backends are dispatched on
// their own goroutine by the caller.
type Tool interface {
	Name() string
	Definition() llms.Tool
	Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ArgumentError signals that a tool call carried malformed or missing
// arguments. The calling loop turns it into a corrective message for the
// model instead of failing the run.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// Registry is a fixed set of tools, looked up by name.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			continue
		}
		r.order = append(r.order, t.Name())
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool after construction. Duplicate names are ignored.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; exists {
		return
	}
	r.order = append(r.order, t.Name())
	r.tools[t.Name()] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions renders the LLM-facing function-calling schemas in
// registration order.
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

func (r *Registry) Len() int {
	return len(r.order)
}
