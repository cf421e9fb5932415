package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures surfaced by the core and the data service
type ErrorKind string

const (
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindRequestFailed ErrorKind = "REQUEST_FAILED"
	KindCycleDetected ErrorKind = "CYCLE_DETECTED"
	KindInvalidInput  ErrorKind = "INVALID_INPUT"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrRequestFailed = &Error{Kind: KindRequestFailed}
	ErrCycleDetected = &Error{Kind: KindCycleDetected}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
)

// Error is the typed error used across echelon
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	// Cycle holds the offending bullet point path for KindCycleDetected,
	// first id repeated at the end.
	Cycle []int64
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound reports a referenced id that does not exist at the store
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// RequestFailed reports a transport or remote failure
func RequestFailed(message string, err error) error {
	return &Error{Kind: KindRequestFailed, Message: message, Err: err}
}

// InvalidInput reports a request the core refuses to issue
func InvalidInput(message string) error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// CycleDetected reports a bullet point that is its own transitive child
func CycleDetected(path []int64) error {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return &Error{
		Kind:    KindCycleDetected,
		Message: "provenance cycle " + strings.Join(parts, " -> "),
		Cycle:   append([]int64(nil), path...),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRequestFailed checks if an error is a request failure
func IsRequestFailed(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}

// IsCycleDetected checks if an error is a provenance cycle
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

// IsInvalidInput checks if an error is an input validation failure
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
