package slicer

import (
	"context"
	"errors"
	"io"
	"os"
)

// -----------------------------------------------------------------------------
// Positional adapter
// -----------------------------------------------------------------------------

// SizeFunc reports the current size of a positional backend.
type SizeFunc func() (int64, error)

// FixedSize returns a SizeFunc for a backend whose size never changes.
func FixedSize(n int64) SizeFunc {
	return func() (int64, error) { return n, nil }
}

// ReaderAt implements SliceReader over an io.ReaderAt.
//
// Positional reads carry their own offset and never touch a shared cursor,
// so ReaderAt is safe for concurrent use whenever the wrapped io.ReaderAt is
// (as *os.File, *bytes.Reader and *io.SectionReader are).
type ReaderAt struct {
	ra   io.ReaderAt
	size SizeFunc
}

// NewReaderAt wraps ra. size is consulted on every Len call.
func NewReaderAt(ra io.ReaderAt, size SizeFunc) *ReaderAt {
	return &ReaderAt{ra: ra, size: size}
}

// OpenFileAt opens the named file for positional reads.
// Len reflects the live file size on every call.
// Returns ErrNotFound if the file does not exist.
func OpenFileAt(path string) (*ReaderAt, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newReadError(OpOpen, 0, 0, ErrNotFound, err)
		}
		return nil, newReadError(OpOpen, 0, 0, nil, err)
	}
	return NewReaderAt(f, func() (int64, error) {
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}), nil
}

// ReadSlice reads exactly len(p) bytes at offset.
// Returns ErrShortRead if the backend ends before p is full.
func (r *ReaderAt) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	length := len64(len(p))
	if err := canceled(ctx, OpRead, offset, length); err != nil {
		return err
	}
	pos, ok := toInt64(offset)
	if !ok {
		return newReadError(OpRead, offset, length, ErrOutOfBounds, nil)
	}
	if length == 0 {
		return nil
	}

	n, err := r.ra.ReadAt(p, pos)
	if n == len(p) {
		// io.ReaderAt may return io.EOF alongside a full read at the end.
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return Classify(OpRead, offset, length, err)
}

// Len returns the size reported by the SizeFunc.
func (r *ReaderAt) Len(ctx context.Context) (uint64, error) {
	if err := canceled(ctx, OpLen, 0, 0); err != nil {
		return 0, err
	}
	n, err := r.size()
	if err != nil {
		return 0, Classify(OpLen, 0, 0, err)
	}
	if n < 0 {
		return 0, newReadError(OpLen, 0, 0, nil, errors.New("negative size"))
	}
	return uint64(n), nil
}

// Close closes the wrapped reader if it implements io.Closer.
func (r *ReaderAt) Close() error {
	if c, ok := r.ra.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Ensure ReaderAt implements SliceReader
var _ SliceReader = (*ReaderAt)(nil)
