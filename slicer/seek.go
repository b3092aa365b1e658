package slicer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// -----------------------------------------------------------------------------
// Seek-based adapter
// -----------------------------------------------------------------------------

// Seeker implements SliceReader for any handle that can seek to an absolute
// position and then read sequentially (files, bytes.Reader, decoded streams).
//
// Each ReadSlice seeks to its own offset before reading, so callers never
// depend on the position left behind by an earlier call. The underlying
// handle has a single position, so Seeker serializes its own calls: reads
// and length queries issued concurrently on one Seeker run one at a time.
type Seeker struct {
	mu     sync.Mutex
	rs     io.ReadSeeker
	closed bool
}

// NewSeeker wraps rs. The Seeker takes ownership of rs; no other code should
// move its position while the Seeker is in use.
func NewSeeker(rs io.ReadSeeker) *Seeker {
	return &Seeker{rs: rs}
}

// OpenFile opens the named file for seek-based reads.
// Returns ErrNotFound if the file does not exist.
func OpenFile(path string) (*Seeker, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newReadError(OpOpen, 0, 0, ErrNotFound, err)
		}
		return nil, newReadError(OpOpen, 0, 0, nil, err)
	}
	return NewSeeker(f), nil
}

// ReadSlice seeks to offset and reads exactly len(p) bytes.
//
// Reaching the end of data before p is full returns ErrShortRead. If ctx is
// canceled while the read is in flight, ReadSlice returns ErrCanceled
// immediately; the in-flight I/O finishes in the background and may still
// write into p, so p must not be reused.
func (s *Seeker) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
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

	return s.do(ctx, OpRead, offset, length, func() error {
		if _, err := s.rs.Seek(pos, io.SeekStart); err != nil {
			return newReadError(OpRead, offset, length, nil, fmt.Errorf("seek: %w", err))
		}
		_, err := io.ReadFull(s.rs, p)
		return Classify(OpRead, offset, length, err)
	})
}

// Len reports the current size by seeking to the end, then restores the
// position the handle had before the call.
func (s *Seeker) Len(ctx context.Context) (uint64, error) {
	if err := canceled(ctx, OpLen, 0, 0); err != nil {
		return 0, err
	}

	var size int64
	err := s.do(ctx, OpLen, 0, 0, func() error {
		cur, err := s.rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return newReadError(OpLen, 0, 0, nil, fmt.Errorf("seek current: %w", err))
		}
		end, err := s.rs.Seek(0, io.SeekEnd)
		if err != nil {
			return newReadError(OpLen, 0, 0, nil, fmt.Errorf("seek end: %w", err))
		}
		if _, err := s.rs.Seek(cur, io.SeekStart); err != nil {
			return newReadError(OpLen, 0, 0, nil, fmt.Errorf("restore position: %w", err))
		}
		size = end
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(size), nil
}

// Close closes the underlying handle if it implements io.Closer.
// Close waits for any in-flight operation to finish.
func (s *Seeker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// do runs fn under the instance lock. When ctx can be canceled the blocking
// work runs on its own goroutine so the caller can stop waiting.
func (s *Seeker) do(ctx context.Context, op Op, offset, length uint64, fn func() error) error {
	run := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed {
			return newReadError(op, offset, length, ErrClosed, nil)
		}
		// The context may have ended while waiting for the lock.
		if err := canceled(ctx, op, offset, length); err != nil {
			return err
		}
		return fn()
	}

	if ctx.Done() == nil {
		return run()
	}

	done := make(chan error, 1)
	go func() { done <- run() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return newReadError(op, offset, length, ErrCanceled, context.Cause(ctx))
	}
}

// Ensure Seeker implements SliceReader
var _ SliceReader = (*Seeker)(nil)
