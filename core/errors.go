package core

import "github.com/pkg/errors"

// Kind classifies the failures surfaced by the workflow services.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindConflict
	KindForbidden
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindNotFound:     "not found",
	KindInvalidState: "invalid state",
	KindConflict:     "conflict",
	KindForbidden:    "forbidden",
	KindInvalidInput: "invalid input",
}

func (k Kind) String() string { return kindNames[k] }

// Error is a recoverable, caller-facing failure of a workflow operation.
type Error struct {
	Kind Kind
	Msg  string
}

func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func (err *Error) Error() string {
	return err.Msg
}

// ErrorKind returns the Kind of the first *Error in err's cause chain.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && ErrorKind(err) == kind
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
