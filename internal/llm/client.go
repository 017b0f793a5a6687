// Package llm provides the language-model backend boundary: given a
// system prompt, the compiled tool schemas, and an assembled
// conversation window, the backend returns the model's chosen action.
package llm

import (
	"context"
	"encoding/json"

	"github.com/nugget/coworker/internal/window"
)

// Decision is the model's tagged result for one turn: either a chosen
// tool name with its raw argument payload, or a free-text completion.
type Decision struct {
	// ToolName is the chosen tool, empty when the model answered with
	// free text.
	ToolName string
	// RawArguments is the undecoded JSON argument blob accompanying a
	// tool choice. Validation happens in the action resolver.
	RawArguments json.RawMessage
	// FreeText is the completion text when no tool was chosen.
	FreeText string
}

// ToolCalled reports whether the model selected a tool.
func (d *Decision) ToolCalled() bool {
	return d.ToolName != ""
}

// Client is the interface a model backend must implement. The tool
// schemas are passed through exactly as produced by the schema
// compiler.
type Client interface {
	// Complete asks the model to choose at most one action for the
	// given conversation window.
	Complete(ctx context.Context, systemPrompt string, toolSchemas []map[string]any, conversation []window.Message) (*Decision, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}
