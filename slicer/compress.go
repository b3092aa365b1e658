package slicer

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compressor decodes a compressed source into its plain bytes.
//
// Compressed formats are not randomly addressable, so slicer only reads them
// through LoadCompressed, which materializes the decoded bytes once and
// serves slices directly from memory.
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip", "zstd", "noop").
	Name() string

	// Extension returns the conventional file extension (for example, ".gz").
	Extension() string

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Gzip Compressor
// -----------------------------------------------------------------------------

type gzipCompressor struct{}

// NewGzipCompressor creates a gzip compressor.
func NewGzipCompressor() Compressor {
	return &gzipCompressor{}
}

func (g *gzipCompressor) Name() string {
	return "gzip"
}

func (g *gzipCompressor) Extension() string {
	return ".gz"
}

func (g *gzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// Zstd Compressor
// -----------------------------------------------------------------------------

type zstdCompressor struct{}

// NewZstdCompressor creates a zstd compressor.
func NewZstdCompressor() Compressor {
	return &zstdCompressor{}
}

func (z *zstdCompressor) Name() string {
	return "zstd"
}

func (z *zstdCompressor) Extension() string {
	return ".zst"
}

func (z *zstdCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// NoOp Compressor
// -----------------------------------------------------------------------------

type noopCompressor struct{}

// NewNoOpCompressor creates a compressor that passes data through unchanged.
func NewNoOpCompressor() Compressor {
	return &noopCompressor{}
}

func (n *noopCompressor) Name() string {
	return "noop"
}

func (n *noopCompressor) Extension() string {
	return ""
}

func (n *noopCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// CompressorByName returns the compressor registered under name.
func CompressorByName(name string) (Compressor, error) {
	switch name {
	case "gzip", "gz":
		return NewGzipCompressor(), nil
	case "zstd", "zst":
		return NewZstdCompressor(), nil
	case "noop", "none", "":
		return NewNoOpCompressor(), nil
	default:
		return nil, fmt.Errorf("slicer: unknown compressor %q", name)
	}
}

// CompressorForPath returns the compressor whose Extension ends path.
// It reports false when no known extension matches.
func CompressorForPath(path string) (Compressor, bool) {
	for _, c := range []Compressor{NewGzipCompressor(), NewZstdCompressor()} {
		if strings.HasSuffix(path, c.Extension()) {
			return c, true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------
// Loader
// -----------------------------------------------------------------------------

// LoadCompressed decodes src with c and returns a direct adapter over the
// decoded bytes. ctx is checked between decode chunks.
func LoadCompressed(ctx context.Context, src io.Reader, c Compressor) (*Bytes, error) {
	if err := canceled(ctx, OpOpen, 0, 0); err != nil {
		return nil, err
	}
	rc, err := c.Decompress(src)
	if err != nil {
		return nil, fmt.Errorf("slicer: %s decompress: %w", c.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &ctxReader{ctx: ctx, r: rc}); err != nil {
		err = fmt.Errorf("slicer: %s decompress: %w", c.Name(), err)
		if ctx.Err() != nil {
			return nil, newReadError(OpOpen, 0, 0, ErrCanceled, err)
		}
		return nil, err
	}
	return NewBytes(buf.Bytes()), nil
}

// ctxReader stops a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
