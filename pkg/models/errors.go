package models

import "fmt"

// Error kinds shared across engines and the HTTP layer. Handlers match
// these with errors.As to pick a status code; adapters return them instead
// of leaking raw transport errors.

// NotFoundError reports an unknown engine, workspace, module, dimension or
// line item.
type NotFoundError struct {
	Kind string // "engine", "workspace", "module", "dimension", "line item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotEditableError reports a write targeting a computed line item.
type NotEditableError struct {
	LineItem string
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("line item %q is not editable", e.LineItem)
}

// InvalidIdentifierError reports a malformed composite workspace id, row id
// or filter parameter.
type InvalidIdentifierError struct {
	Message string
}

func (e *InvalidIdentifierError) Error() string { return e.Message }

// UpstreamError reports an external engine authentication or transport
// failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationError reports a request that is structurally well-formed but
// semantically invalid, such as a numeric filter missing its operand.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
