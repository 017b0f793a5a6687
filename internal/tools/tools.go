// Package tools defines the actions available to the model and the
// registry that holds their compiled calling schemas.
package tools

import (
	"context"
	"fmt"

	"github.com/nugget/coworker/internal/schema"
)

// RuntimeContext carries the runtime-injected state a tool handler may
// need. It is populated by the dispatcher per event and is never part
// of the model-facing schema.
type RuntimeContext struct {
	// Channel is the channel the triggering message arrived in.
	Channel string
	// ThreadTS is the thread the reply should land in (empty when the
	// trigger was unthreaded).
	ThreadTS string
	// UserID is the author of the triggering message.
	UserID string
}

// Handler executes a tool. It returns a human-readable summary that
// becomes the outward reply, or an error rendered inline as
// "Error: ...". Arguments have already been validated against the
// tool's compiled schema.
type Handler func(ctx context.Context, rc RuntimeContext, args map[string]any) (string, error)

// Tool pairs a declarative registration record with its handler.
type Tool struct {
	schema.Declaration
	Handler Handler
}

// Registry holds the registered tools and their compiled schemas.
// It is built once at startup and never mutated afterwards, so it is
// safe to share across concurrently handled events without locking.
type Registry struct {
	order       []string
	tools       map[string]*Tool
	descriptors map[string]*schema.Descriptor
}

// NewRegistry compiles every tool's calling schema and builds the
// registry. Any schema the compiler cannot represent, and any name
// collision, is a fatal build error: a partially-initialized registry
// is never returned.
func NewRegistry(list []*Tool) (*Registry, error) {
	r := &Registry{
		tools:       make(map[string]*Tool, len(list)),
		descriptors: make(map[string]*schema.Descriptor, len(list)),
	}

	for _, t := range list {
		if _, exists := r.tools[t.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}

		d, err := schema.Compile(t.Declaration)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", t.Name, err)
		}

		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
		r.descriptors[t.Name] = d
	}

	return r, nil
}

// Get returns the tool and its compiled descriptor, or false when the
// name is not registered.
func (r *Registry) Get(name string) (*Tool, *schema.Descriptor, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, nil, false
	}
	return t, r.descriptors[name], true
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns the model-facing tool list in registration order,
// exactly as produced by the schema compiler.
func (r *Registry) Schemas() []map[string]any {
	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name].JSONSchema())
	}
	return out
}
