package slicer_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/pithecene-io/slicer/internal/testutil"
	"github.com/pithecene-io/slicer/slicer"
)

// backendFactory builds a fresh backend over data.
type backendFactory struct {
	name string
	open func(t *testing.T, data []byte) slicer.SliceReader
	// overrun is the error class a read past the end produces.
	overrun error
}

func backendFactories() []backendFactory {
	return []backendFactory{
		{
			name:    "bytes",
			open:    func(_ *testing.T, data []byte) slicer.SliceReader { return slicer.NewBytes(data) },
			overrun: slicer.ErrOutOfBounds,
		},
		{
			name: "seeker/memory",
			open: func(_ *testing.T, data []byte) slicer.SliceReader {
				return slicer.NewSeeker(bytes.NewReader(data))
			},
			overrun: slicer.ErrShortRead,
		},
		{
			name: "seeker/file",
			open: func(t *testing.T, data []byte) slicer.SliceReader {
				s, err := slicer.OpenFile(testutil.WriteFile(t, "data.bin", data))
				if err != nil {
					t.Fatalf("OpenFile failed: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
			overrun: slicer.ErrShortRead,
		},
		{
			name: "readerat/file",
			open: func(t *testing.T, data []byte) slicer.SliceReader {
				r, err := slicer.OpenFileAt(testutil.WriteFile(t, "data.bin", data))
				if err != nil {
					t.Fatalf("OpenFileAt failed: %v", err)
				}
				t.Cleanup(func() { _ = r.Close() })
				return r
			},
			overrun: slicer.ErrShortRead,
		},
		{
			name: "mmap",
			open: func(t *testing.T, data []byte) slicer.SliceReader {
				m, err := slicer.OpenMmap(testutil.WriteFile(t, "data.bin", data))
				if err != nil {
					t.Fatalf("OpenMmap failed: %v", err)
				}
				t.Cleanup(func() { _ = m.Close() })
				return m
			},
			overrun: slicer.ErrOutOfBounds,
		},
		{
			name: "compressed/zstd",
			open: func(t *testing.T, data []byte) slicer.SliceReader {
				enc, err := zstd.NewWriter(nil)
				if err != nil {
					t.Fatal(err)
				}
				compressed := enc.EncodeAll(data, nil)
				_ = enc.Close()

				b, err := slicer.LoadCompressed(t.Context(), bytes.NewReader(compressed), slicer.NewZstdCompressor())
				if err != nil {
					t.Fatalf("LoadCompressed failed: %v", err)
				}
				return b
			},
			overrun: slicer.ErrOutOfBounds,
		},
		{
			name: "compressed/gzip",
			open: func(t *testing.T, data []byte) slicer.SliceReader {
				var buf bytes.Buffer
				w := gzip.NewWriter(&buf)
				if _, err := w.Write(data); err != nil {
					t.Fatal(err)
				}
				if err := w.Close(); err != nil {
					t.Fatal(err)
				}

				b, err := slicer.LoadCompressed(t.Context(), &buf, slicer.NewGzipCompressor())
				if err != nil {
					t.Fatalf("LoadCompressed failed: %v", err)
				}
				return b
			},
			overrun: slicer.ErrOutOfBounds,
		},
	}
}

// TestBackends_Equivalent checks that every backend over the same content
// returns identical bytes for the same in-bounds requests.
func TestBackends_Equivalent(t *testing.T) {
	data := testutil.Pattern(10000)
	requests := []slicer.Request{
		{Offset: 0, Length: 10000},
		{Offset: 0, Length: 1},
		{Offset: 9999, Length: 1},
		{Offset: 4096, Length: 4096},
		{Offset: 1234, Length: 567},
		{Offset: 10000, Length: 0},
	}

	for _, f := range backendFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := t.Context()
			r := f.open(t, data)

			n, err := r.Len(ctx)
			if err != nil {
				t.Fatalf("Len failed: %v", err)
			}
			if n != uint64(len(data)) {
				t.Fatalf("Len = %d, want %d", n, len(data))
			}

			for _, req := range requests {
				got, err := slicer.Read(ctx, r, req.Offset, req.Length)
				if err != nil {
					t.Fatalf("Read(%d, %d) failed: %v", req.Offset, req.Length, err)
				}
				end, _ := req.End()
				if !bytes.Equal(got, data[req.Offset:end]) {
					t.Errorf("Read(%d, %d) content mismatch", req.Offset, req.Length)
				}
			}

			_, err = slicer.Read(ctx, r, 9995, 10)
			if err == nil {
				t.Fatal("expected failure for read past end")
			}
			if !errors.Is(err, f.overrun) {
				t.Errorf("read past end: expected %v, got %v", f.overrun, err)
			}
			// Either class is a non-transport failure callers can act on.
			if kind := slicer.KindOf(err); kind != slicer.KindBounds && kind != slicer.KindShortRead {
				t.Errorf("read past end classified as %s", kind)
			}
		})
	}
}
