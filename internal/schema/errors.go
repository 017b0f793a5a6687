// Package schema compiles declarative tool registrations into the
// machine-checkable calling schemas presented to the model.
//
// This file defines the build-time error types. Both are fatal at
// startup: a tool whose schema cannot be represented must not register
// with a degraded one.
package schema

import "fmt"

// UnsupportedTypeError reports a declared parameter type outside the
// closed set the compiler can map to a schema type.
type UnsupportedTypeError struct {
	Tool     string
	Param    string
	Declared ParamType
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("tool %q: parameter %q has unsupported type %q", e.Tool, e.Param, e.Declared)
}

// MissingDocumentationError reports a tool whose documentation block
// could not be parsed into a description. Individual parameters may go
// undocumented; the tool itself may not.
type MissingDocumentationError struct {
	Tool   string
	Reason string
}

// Error implements the error interface.
func (e *MissingDocumentationError) Error() string {
	return fmt.Sprintf("tool %q: documentation block unusable: %s", e.Tool, e.Reason)
}
