//go:build linux || darwin || freebsd

package slicer

import "golang.org/x/sys/unix"

// adviseRandom tells the kernel the mapping is read at random offsets,
// which disables aggressive readahead. Failure only loses the hint.
func adviseRandom(region []byte) {
	_ = unix.Madvise(region, unix.MADV_RANDOM)
}
