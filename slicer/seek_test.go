package slicer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/slicer/internal/testutil"
	"github.com/pithecene-io/slicer/slicer"
)

// -----------------------------------------------------------------------------
// Fault injection
// -----------------------------------------------------------------------------

// faultSeeker wraps an io.ReadSeeker and injects failures.
type faultSeeker struct {
	io.ReadSeeker
	seekErr error
	readErr error
}

func (f *faultSeeker) Seek(offset int64, whence int) (int64, error) {
	if f.seekErr != nil {
		return 0, f.seekErr
	}
	return f.ReadSeeker.Seek(offset, whence)
}

func (f *faultSeeker) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.ReadSeeker.Read(p)
}

// blockingSeeker blocks every Read until release is closed.
type blockingSeeker struct {
	io.ReadSeeker
	release chan struct{}
}

func (b *blockingSeeker) Read(p []byte) (int, error) {
	<-b.release
	return b.ReadSeeker.Read(p)
}

// -----------------------------------------------------------------------------
// Scenario C: seek-based file backend
// -----------------------------------------------------------------------------

func TestSeeker_File(t *testing.T) {
	ctx := t.Context()
	data := testutil.Pattern(1000)
	path := testutil.WriteFile(t, "data.bin", data)

	s, err := slicer.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1000 {
		t.Errorf("expected Len 1000, got %d", n)
	}

	got, err := slicer.Read(ctx, s, 500, 10)
	if err != nil {
		t.Fatalf("Read(500, 10) failed: %v", err)
	}
	if !bytes.Equal(got, data[500:510]) {
		t.Errorf("Read(500, 10) = %v, want %v", got, data[500:510])
	}

	// Non-monotonic offsets: every read seeks on its own.
	for _, offset := range []uint64{990, 0, 400, 3} {
		got, err := slicer.Read(ctx, s, offset, 10)
		if err != nil {
			t.Fatalf("Read(%d, 10) failed: %v", offset, err)
		}
		if !bytes.Equal(got, data[offset:offset+10]) {
			t.Errorf("Read(%d, 10) content mismatch", offset)
		}
	}
}

func TestSeeker_SequentialSlicesReassemble(t *testing.T) {
	ctx := t.Context()
	data := testutil.Pattern(1000)

	s, err := slicer.OpenFile(testutil.WriteFile(t, "data.bin", data))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var got []byte
	for offset := uint64(0); offset < 1000; offset += 10 {
		chunk, err := slicer.Read(ctx, s, offset, 10)
		if err != nil {
			t.Fatalf("Read(%d, 10) failed: %v", offset, err)
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, data) {
		t.Error("sequential slices did not reproduce the original content")
	}
}

func TestSeeker_EmptyFile(t *testing.T) {
	ctx := t.Context()

	s, err := slicer.OpenFile(testutil.WriteFile(t, "empty.bin", nil))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected Len 0, got %d", n)
	}
	if _, err := slicer.Read(ctx, s, 0, 1); err == nil {
		t.Error("expected read from empty file to fail")
	}
}

func TestSeeker_ShortRead(t *testing.T) {
	ctx := t.Context()
	s := slicer.NewSeeker(bytes.NewReader(testutil.Pattern(100)))

	tests := []struct {
		name   string
		offset uint64
		length int
	}{
		{"crosses end", 95, 10},
		{"starts at end", 100, 1},
		{"starts past end", 500, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := slicer.Read(ctx, s, tt.offset, tt.length)
			if !errors.Is(err, slicer.ErrShortRead) {
				t.Fatalf("expected ErrShortRead, got %v", err)
			}
			if slicer.KindOf(err) != slicer.KindShortRead {
				t.Errorf("expected KindShortRead, got %s", slicer.KindOf(err))
			}
		})
	}
}

func TestSeeker_OffsetBeyondInt64(t *testing.T) {
	s := slicer.NewSeeker(bytes.NewReader([]byte("abc")))

	err := s.ReadSlice(t.Context(), math.MaxInt64+1, make([]byte, 1))
	if !errors.Is(err, slicer.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestSeeker_ZeroLength(t *testing.T) {
	s := slicer.NewSeeker(&faultSeeker{
		ReadSeeker: bytes.NewReader([]byte("abc")),
		seekErr:    errors.New("must not seek"),
	})

	if err := s.ReadSlice(t.Context(), 2, nil); err != nil {
		t.Errorf("zero-length read should not touch the handle, got %v", err)
	}
}

func TestSeeker_LenRestoresPosition(t *testing.T) {
	ctx := t.Context()
	r := bytes.NewReader([]byte("0123456789"))
	s := slicer.NewSeeker(r)

	if _, err := r.Seek(4, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected Len 10, got %d", n)
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 4 {
		t.Errorf("expected position 4 after Len, got %d", pos)
	}
}

func TestSeeker_LenTracksGrowth(t *testing.T) {
	ctx := t.Context()
	path := testutil.WriteFile(t, "grow.bin", []byte("abc"))

	s, err := slicer.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("defg")); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 7 {
		t.Errorf("expected Len 7 after append, got %d", n)
	}
	got, err := slicer.Read(ctx, s, 3, 4)
	if err != nil {
		t.Fatalf("Read(3, 4) failed: %v", err)
	}
	if string(got) != "defg" {
		t.Errorf("got %q, want %q", got, "defg")
	}
}

func TestSeeker_OpenFile_NotFound(t *testing.T) {
	_, err := slicer.OpenFile(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, slicer.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Transport failures
// -----------------------------------------------------------------------------

func TestSeeker_TransportFailure(t *testing.T) {
	ctx := t.Context()
	fault := errors.New("disk on fire")

	tests := []struct {
		name string
		rs   io.ReadSeeker
	}{
		{"seek fails", &faultSeeker{ReadSeeker: bytes.NewReader(make([]byte, 10)), seekErr: fault}},
		{"read fails", &faultSeeker{ReadSeeker: bytes.NewReader(make([]byte, 10)), readErr: fault}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := slicer.NewSeeker(tt.rs)
			err := s.ReadSlice(ctx, 0, make([]byte, 4))
			if !errors.Is(err, fault) {
				t.Fatalf("expected underlying fault in chain, got %v", err)
			}
			if slicer.KindOf(err) != slicer.KindTransport {
				t.Errorf("expected KindTransport, got %s", slicer.KindOf(err))
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Cancellation
// -----------------------------------------------------------------------------

func TestSeeker_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	s := slicer.NewSeeker(&faultSeeker{
		ReadSeeker: bytes.NewReader(make([]byte, 10)),
		seekErr:    errors.New("must not seek"),
	})
	err := s.ReadSlice(ctx, 0, make([]byte, 4))
	if !errors.Is(err, slicer.ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
	if _, err := s.Len(ctx); !errors.Is(err, slicer.ErrCanceled) {
		t.Errorf("Len: expected ErrCanceled, got %v", err)
	}
}

func TestSeeker_CanceledInFlight(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	s := slicer.NewSeeker(&blockingSeeker{
		ReadSeeker: bytes.NewReader(make([]byte, 10)),
		release:    release,
	})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.ReadSlice(ctx, 0, make([]byte, 4))
	if !errors.Is(err, slicer.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded in chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

// -----------------------------------------------------------------------------
// Lifecycle and concurrency
// -----------------------------------------------------------------------------

func TestSeeker_Closed(t *testing.T) {
	ctx := t.Context()
	s := slicer.NewSeeker(bytes.NewReader([]byte("abc")))

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := s.ReadSlice(ctx, 0, make([]byte, 1)); !errors.Is(err, slicer.ErrClosed) {
		t.Errorf("ReadSlice after Close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Len(ctx); !errors.Is(err, slicer.ErrClosed) {
		t.Errorf("Len after Close: expected ErrClosed, got %v", err)
	}
}

// countingSeeker detects overlapping calls on the underlying handle.
type countingSeeker struct {
	io.ReadSeeker
	mu      sync.Mutex
	active  int
	overlap bool
}

func (c *countingSeeker) enter() {
	c.mu.Lock()
	c.active++
	if c.active > 1 {
		c.overlap = true
	}
	c.mu.Unlock()
}

func (c *countingSeeker) exit() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func (c *countingSeeker) Seek(offset int64, whence int) (int64, error) {
	c.enter()
	defer c.exit()
	return c.ReadSeeker.Seek(offset, whence)
}

func (c *countingSeeker) Read(p []byte) (int, error) {
	c.enter()
	defer c.exit()
	time.Sleep(50 * time.Microsecond)
	return c.ReadSeeker.Read(p)
}

func TestSeeker_ConcurrentReadsSerialized(t *testing.T) {
	data := testutil.Pattern(1000)
	cs := &countingSeeker{ReadSeeker: bytes.NewReader(data)}
	s := slicer.NewSeeker(cs)

	results := make([][]byte, 100)
	g, ctx := errgroup.WithContext(t.Context())
	for i := range results {
		g.Go(func() error {
			buf := make([]byte, 10)
			if err := s.ReadSlice(ctx, uint64(i*10), buf); err != nil {
				return err
			}
			results[i] = buf
			return nil
		})
	}
	// Len seeks to the end and back; it must not move a read's position.
	for range 20 {
		g.Go(func() error {
			n, err := s.Len(ctx)
			if err != nil {
				return err
			}
			if n != uint64(len(data)) {
				return fmt.Errorf("Len = %d, want %d", n, len(data))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent read failed: %v", err)
	}

	if got := bytes.Join(results, nil); !bytes.Equal(got, data) {
		t.Error("concurrent reads returned misplaced bytes")
	}
	if cs.overlap {
		t.Error("underlying handle saw overlapping calls")
	}
}
