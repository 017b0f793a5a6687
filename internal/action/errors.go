// Package action resolves a model's chosen action into a validated,
// ready-to-dispatch invocation.
//
// This file defines the per-event error types. Both are surfaced to the
// human as inline diagnostics, never as process faults.
package action

import (
	"errors"
	"fmt"
)

// UnknownToolError reports a model decision naming a tool absent from
// the registry. Never silently ignored.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ArgumentDecodeError reports a raw argument payload that could not be
// decoded or validated against the tool's calling schema. It carries
// the offending tool name and payload for diagnostics.
type ArgumentDecodeError struct {
	Tool   string
	Raw    string
	Reason string
}

// Error implements the error interface.
func (e *ArgumentDecodeError) Error() string {
	return fmt.Sprintf("arguments for %q: %s", e.Tool, e.Reason)
}

// Inline reports whether err should be surfaced to the human as an
// inline diagnostic reply rather than aborting the event.
func Inline(err error) bool {
	var unknown *UnknownToolError
	var decode *ArgumentDecodeError
	return errors.As(err, &unknown) || errors.As(err, &decode)
}
