package compiler

import "fmt"

// Error is a compile-time failure tagged with a short, machine-checkable Kind
// (e.g. "UnknownOperator", "UnknownIdentifier", "InvalidAssignmentTarget").
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newError(kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}
