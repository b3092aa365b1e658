package slicer

import "context"

// -----------------------------------------------------------------------------
// Direct adapter
// -----------------------------------------------------------------------------

// Bytes implements SliceReader over a contiguous in-memory region.
//
// Reads are bounds-checked copies with no shared mutable state, so any number
// of goroutines may read from one Bytes concurrently. The region must not be
// modified while readers are active.
type Bytes struct {
	data []byte
}

// NewBytes wraps b without copying it.
func NewBytes(b []byte) *Bytes {
	return &Bytes{data: b}
}

// ReadSlice copies [offset, offset+len(p)) into p.
// Returns ErrOutOfBounds if the range extends past the end of the region.
func (b *Bytes) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	return readRegion(ctx, b.data, offset, p)
}

// Len returns the region length. It never fails.
func (b *Bytes) Len(context.Context) (uint64, error) {
	return uint64(len(b.data)), nil
}

// Slice returns [offset, offset+length) without copying.
// The result aliases the region and must be treated as read-only.
func (b *Bytes) Slice(offset uint64, length int) ([]byte, error) {
	if length < 0 || !inBounds(offset, len64(length), uint64(len(b.data))) {
		return nil, newReadError(OpRead, offset, len64(length), ErrOutOfBounds, nil)
	}
	return b.data[offset : offset+uint64(length) : offset+uint64(length)], nil
}

// readRegion serves a slice request from a fully addressable region.
// No suspension happens here: the copy runs to completion once started.
func readRegion(ctx context.Context, region []byte, offset uint64, p []byte) error {
	length := uint64(len(p))
	if err := canceled(ctx, OpRead, offset, length); err != nil {
		return err
	}
	if !inBounds(offset, length, uint64(len(region))) {
		return newReadError(OpRead, offset, length, ErrOutOfBounds, nil)
	}
	copy(p, region[offset:offset+length])
	return nil
}

// Ensure Bytes implements SliceReader
var _ SliceReader = (*Bytes)(nil)
