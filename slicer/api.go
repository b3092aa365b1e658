// Package slicer provides offset-addressed reads over heterogeneous storage
// backends.
//
// A SliceReader answers two questions: "give me exactly these bytes" and
// "how many bytes are there". Code written against it (page caches, B-trees,
// log readers, file-format parsers) runs unmodified over local files,
// in-memory buffers, memory maps, and remote object stores.
//
// Slicer standardizes the read primitive only. It does not cache, prefetch,
// write, or coordinate multiple readers.
package slicer

import (
	"context"
	"math"
)

// -----------------------------------------------------------------------------
// SliceReader interface
// -----------------------------------------------------------------------------

// SliceReader reads exact byte ranges at explicit offsets.
//
// No cursor is exposed: every read names its own offset, so callers never
// coordinate position between calls.
type SliceReader interface {
	// ReadSlice fills p with the bytes [offset, offset+len(p)).
	//
	// On nil error all len(p) bytes are populated, never fewer. On error
	// the contents of p are undefined and must be discarded.
	ReadSlice(ctx context.Context, offset uint64, p []byte) error

	// Len returns the current addressable length in bytes.
	//
	// For backends that can grow or shrink the value is a snapshot taken
	// at call time; a later read up to this length may still fail.
	Len(ctx context.Context) (uint64, error)
}

// Read returns the bytes [offset, offset+length) from r in a new buffer.
func Read(ctx context.Context, r SliceReader, offset uint64, length int) ([]byte, error) {
	if length < 0 {
		return nil, newReadError(OpRead, offset, 0, ErrOutOfBounds, nil)
	}
	buf := make([]byte, length)
	if err := r.ReadSlice(ctx, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Request names a single slice to read.
type Request struct {
	Offset uint64
	Length int
}

// End returns the exclusive end offset of the request.
// The second result is false if the end overflows uint64.
func (r Request) End() (uint64, bool) {
	return rangeEnd(r.Offset, len64(r.Length))
}

// -----------------------------------------------------------------------------
// Range helpers
// -----------------------------------------------------------------------------

// rangeEnd returns offset+length, reporting false on overflow.
func rangeEnd(offset, length uint64) (uint64, bool) {
	if offset > math.MaxUint64-length {
		return 0, false
	}
	return offset + length, true
}

// inBounds reports whether [offset, offset+length) lies within size bytes.
func inBounds(offset, length, size uint64) bool {
	end, ok := rangeEnd(offset, length)
	return ok && end <= size
}

// toInt64 converts an offset for APIs that take int64 positions.
func toInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func len64(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
