package compiler

import (
	"fmt"

	"github.com/dust-lang/dust/internal/token"
)

// ErrorKind enumerates the compile-time failure classes.
type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	ExpectedExpression
	TypeMismatch
	UndefinedIdentifier
	ArityMismatch
	InvalidAssignmentTarget
	BreakOutsideLoop
	DuplicateParameter
	NotYetImplemented
)

func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case ExpectedExpression:
		return "ExpectedExpression"
	case TypeMismatch:
		return "TypeMismatch"
	case UndefinedIdentifier:
		return "UndefinedIdentifier"
	case ArityMismatch:
		return "ArityMismatch"
	case InvalidAssignmentTarget:
		return "InvalidAssignmentTarget"
	case BreakOutsideLoop:
		return "BreakOutsideLoop"
	case DuplicateParameter:
		return "DuplicateParameter"
	case NotYetImplemented:
		return "NotYetImplemented"
	default:
		return "UnknownCompileError"
	}
}

// CompileError is a single compile-time failure with its source span
// and an optional suggested fix.
type CompileError struct {
	Kind    ErrorKind
	Message string
	Span    token.Span
	Suggest string
}

func (e *CompileError) Error() string {
	if e.Suggest != "" {
		return fmt.Sprintf("%s at %s: %s (%s)", e.Kind, e.Span, e.Message, e.Suggest)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span, e.Message)
}

func newErr(kind ErrorKind, span token.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}
