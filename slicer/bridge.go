package slicer

import (
	"context"
	"errors"
	"io"
)

// ReaderAtBridge exposes a SliceReader as an io.ReaderAt with a known size,
// so stdlib and ecosystem consumers (io.SectionReader, file-format parsers)
// run unmodified on any backend.
//
// The size is captured once when the bridge is created.
type ReaderAtBridge struct {
	ctx  context.Context
	r    SliceReader
	size int64
}

// AsReaderAt queries r's length and returns a bridge bound to ctx.
// Every ReadAt on the bridge runs under ctx.
func AsReaderAt(ctx context.Context, r SliceReader) (*ReaderAtBridge, error) {
	n, err := r.Len(ctx)
	if err != nil {
		return nil, err
	}
	size, ok := toInt64(n)
	if !ok {
		return nil, newReadError(OpLen, 0, 0, ErrOutOfBounds, errors.New("length exceeds int64"))
	}
	return &ReaderAtBridge{ctx: ctx, r: r, size: size}, nil
}

// ReadAt implements io.ReaderAt. A read that crosses the end returns the
// available prefix together with io.EOF.
func (b *ReaderAtBridge) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("slicer: negative offset")
	}
	if off >= b.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := len(p)
	if remaining := b.size - off; int64(n) > remaining {
		n = int(remaining)
	}
	if err := b.r.ReadSlice(b.ctx, uint64(off), p[:n]); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the length captured at creation.
func (b *ReaderAtBridge) Size() int64 {
	return b.size
}

// Ensure ReaderAtBridge implements io.ReaderAt
var _ io.ReaderAt = (*ReaderAtBridge)(nil)
