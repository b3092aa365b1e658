package slicer

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for the failure taxonomy.
//
// Every failure returned by an adapter is a *ReadError whose Kind is one of
// these sentinels (or nil for transport failures), so errors.Is works on both
// the class and the underlying fault.
var (
	// ErrOutOfBounds indicates the requested range extends past the
	// backend's current length, or cannot be addressed by the backend.
	ErrOutOfBounds = errOutOfBounds{}

	// ErrShortRead indicates the backend ended before delivering every
	// requested byte. Unlike ErrOutOfBounds this can happen after Len
	// reported enough data (the backend shrank, or a transfer was cut).
	ErrShortRead = errShortRead{}

	// ErrCanceled indicates the operation was abandoned because its
	// context was canceled or its deadline passed.
	ErrCanceled = errCanceled{}

	// ErrNotFound indicates the backing object does not exist.
	ErrNotFound = errNotFound{}

	// ErrClosed indicates an operation on an adapter that was closed.
	ErrClosed = errClosed{}
)

type errOutOfBounds struct{}

func (errOutOfBounds) Error() string { return "out of bounds" }

type errShortRead struct{}

func (errShortRead) Error() string { return "short read" }

type errCanceled struct{}

func (errCanceled) Error() string { return "canceled" }

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errClosed struct{}

func (errClosed) Error() string { return "closed" }

// Op names the operation that failed.
type Op string

// Operations reported in ReadError.
const (
	OpOpen Op = "open"
	OpRead Op = "read"
	OpLen  Op = "len"
)

// ReadError describes a failed slice read or length query.
type ReadError struct {
	// Op is the failed operation.
	Op Op

	// Offset and Length describe the requested range. Both are zero for
	// length queries.
	Offset uint64
	Length uint64

	// Kind is the taxonomy sentinel (ErrOutOfBounds, ErrShortRead,
	// ErrCanceled, ErrNotFound, ErrClosed), or nil for a transport failure.
	Kind error

	// Err is the underlying fault, if any.
	Err error
}

// NewReadError builds a ReadError. Backends outside this package use it to
// report failures in the common shape.
func NewReadError(op Op, offset, length uint64, kind, err error) *ReadError {
	return &ReadError{Op: op, Offset: offset, Length: length, Kind: kind, Err: err}
}

func newReadError(op Op, offset, length uint64, kind, err error) *ReadError {
	return NewReadError(op, offset, length, kind, err)
}

func (e *ReadError) Error() string {
	var b strings.Builder
	b.WriteString("slicer: ")
	b.WriteString(string(e.Op))
	if e.Op == OpRead {
		b.WriteString(" offset=")
		b.WriteString(strconv.FormatUint(e.Offset, 10))
		b.WriteString(" length=")
		b.WriteString(strconv.FormatUint(e.Length, 10))
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the taxonomy sentinel and the underlying fault.
func (e *ReadError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Kind classifies a failure for callers deciding between retry, failover,
// and abort.
type Kind int

// Failure classes.
const (
	KindNone Kind = iota
	KindBounds
	KindShortRead
	KindTransport
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBounds:
		return "bounds"
	case KindShortRead:
		return "short-read"
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// KindOf returns the failure class of err. Not-found and closed adapters
// count as transport failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrOutOfBounds):
		return KindBounds
	case errors.Is(err, ErrShortRead):
		return KindShortRead
	default:
		return KindTransport
	}
}

// Classify wraps a raw backend error into a ReadError.
//
// io.EOF and io.ErrUnexpectedEOF become ErrShortRead, context errors become
// ErrCanceled, and an existing *ReadError is returned unchanged. Anything
// else is a transport failure.
func Classify(op Op, offset, length uint64, err error) error {
	if err == nil {
		return nil
	}
	var re *ReadError
	if errors.As(err, &re) {
		return err
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return newReadError(op, offset, length, ErrShortRead, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newReadError(op, offset, length, ErrCanceled, err)
	default:
		return newReadError(op, offset, length, nil, err)
	}
}

// canceled reports a context that is already done as ErrCanceled.
func canceled(ctx context.Context, op Op, offset, length uint64) error {
	if err := ctx.Err(); err != nil {
		return newReadError(op, offset, length, ErrCanceled, context.Cause(ctx))
	}
	return nil
}
