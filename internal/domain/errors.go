package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies workflow failures so callers can map them without parsing text.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindInvalidState  ErrorKind = "invalid_state"
	KindAuthorization ErrorKind = "authorization"
	KindConcurrency   ErrorKind = "concurrency"
	KindNotFound      ErrorKind = "not_found"
)

// Sentinels for errors.Is matching against *Error values.
var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidState  = errors.New("invalid state")
	ErrAuthorization = errors.New("not authorized")
	ErrConcurrency   = errors.New("concurrent modification")
	ErrNotFound      = errors.New("not found")
)

// Error is the structured error returned by every workflow operation.
// Any Error means no state change occurred.
type Error struct {
	Kind    ErrorKind
	Op      string
	Entity  string
	ID      string
	From    string
	To      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindInvalidState:
		fmt.Fprintf(&b, "%s %s cannot go from %q to %q", e.Entity, e.ID, e.From, e.To)
	case KindNotFound:
		fmt.Fprintf(&b, "%s %s not found", e.Entity, e.ID)
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Field != "" {
		b.WriteString(" [")
		b.WriteString(e.Field)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	case ErrAuthorization:
		return e.Kind == KindAuthorization
	case ErrConcurrency:
		return e.Kind == KindConcurrency
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func ValidationError(op, field, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Message: message}
}

func InvalidStateError(op, entity, id, from, to string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Entity: entity, ID: id, From: from, To: to}
}

func AuthorizationError(op, userID, message string) *Error {
	return &Error{Kind: KindAuthorization, Op: op, ID: userID, Message: message}
}

func ConcurrencyError(op, entity, id string, err error) *Error {
	return &Error{Kind: KindConcurrency, Op: op, Entity: entity, ID: id, Err: err}
}

func NotFoundError(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id}
}
