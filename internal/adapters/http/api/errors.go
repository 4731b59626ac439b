package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnavailable  = errors.New("service unavailable")
	ErrConflict     = errors.New("conflict")
	ErrStreaming    = errors.New("streaming not supported")
	ErrQRGeneration = errors.New("qr generation failed")
)

// opError carries the failing operation, the error kind and the cause.
// It prints as "op: kind: cause" and matches both kind and cause with errors.Is.
type opError struct {
	op    string
	kind  error
	cause error
}

func (e *opError) Error() string {
	switch {
	case e.kind != nil && e.cause != nil:
		return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.cause)
	case e.kind != nil:
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	default:
		return fmt.Sprintf("%s: %v", e.op, e.cause)
	}
}

func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// Wrap annotates err with op. It returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, cause: err}
}

// WrapKind annotates err with op and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, cause: err}
}

// NewKind returns an error of the given kind with no further cause.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}
