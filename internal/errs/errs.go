package errs

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so controllers can map them to HTTP statuses
// without inspecting error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindSessionClosed
	KindValidation
	KindGradingInvariant
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSessionClosed:
		return "session_closed"
	case KindValidation:
		return "validation"
	case KindGradingInvariant:
		return "grading_invariant"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func SessionClosed(format string, args ...any) error {
	return &Error{Kind: KindSessionClosed, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// GradingInvariant marks internal failures that must never happen in normal
// operation (e.g. grading a non-completed session). These surface loudly.
func GradingInvariant(format string, args ...any) error {
	return &Error{Kind: KindGradingInvariant, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, unwrapping as needed. Unclassified errors
// report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
