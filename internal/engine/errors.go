// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an action failure. Every validation or invariant failure
// the engine surfaces carries exactly one kind plus a human-readable,
// action-specific message.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindCrossRoom    Kind = "cross_room_conflict"
	KindNotFound     Kind = "not_found"
)

// Error is a typed action failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf extracts the kind from an action error, or "" for infrastructure
// errors.
func KindOf(err error) Kind {
	var actionErr *Error
	if errors.As(err, &actionErr) {
		return actionErr.Kind
	}
	return ""
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func crossRoomf(format string, args ...any) *Error {
	return &Error{Kind: KindCrossRoom, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}
