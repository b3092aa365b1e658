package slicer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// -----------------------------------------------------------------------------
// Memory-mapped adapter
// -----------------------------------------------------------------------------

// Mmap implements SliceReader over a read-only memory map of a file.
//
// Reads are bounds-checked copies out of the mapping, with the same
// guarantees as Bytes: no positional state, safe for concurrent use.
// The mapping is fixed at open time; later growth of the file is not visible.
type Mmap struct {
	mu     sync.RWMutex
	region mmap.MMap
	closed bool
}

// OpenMmap maps the named file read-only.
// Returns ErrNotFound if the file does not exist.
func OpenMmap(path string) (*Mmap, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newReadError(OpOpen, 0, 0, ErrNotFound, err)
		}
		return nil, newReadError(OpOpen, 0, 0, nil, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, newReadError(OpOpen, 0, 0, nil, err)
	}
	if info.Size() == 0 {
		// Zero-length mappings are rejected by the kernel.
		return &Mmap{}, nil
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, newReadError(OpOpen, 0, 0, nil, fmt.Errorf("mmap: %w", err))
	}
	adviseRandom(region)

	return &Mmap{region: region}, nil
}

// ReadSlice copies [offset, offset+len(p)) out of the mapping.
// Returns ErrOutOfBounds if the range extends past the mapped length.
func (m *Mmap) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return newReadError(OpRead, offset, len64(len(p)), ErrClosed, nil)
	}
	return readRegion(ctx, m.region, offset, p)
}

// Len returns the mapped length. It fails only after Close.
func (m *Mmap) Len(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, newReadError(OpLen, 0, 0, ErrClosed, nil)
	}
	return uint64(len(m.region)), nil
}

// Close unmaps the file. Reads after Close return ErrClosed.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.region == nil {
		return nil
	}
	err := m.region.Unmap()
	m.region = nil
	return err
}

// Ensure Mmap implements SliceReader
var _ SliceReader = (*Mmap)(nil)
