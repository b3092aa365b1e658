package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/slicer/slicer"
)

// ReadCmd writes [offset, offset+length) of a source to stdout.
func ReadCmd() cli.Command {
	return cli.Command{
		Name:      "read",
		Usage:     "write an exact byte range to stdout",
		ArgsUsage: "<path-or-key>",
		Flags: append(backendFlags(),
			cli.Uint64Flag{
				Name:  "offset, o",
				Usage: "first byte to read",
			},
			cli.Int64Flag{
				Name:  "length, n",
				Value: -1,
				Usage: "number of bytes to read (-1 reads to the end)",
			},
			cli.IntFlag{
				Name:  "parallel, p",
				Value: 1,
				Usage: "number of concurrent slice reads",
			},
			cli.IntFlag{
				Name:  "chunk",
				Value: defaultChunk,
				Usage: "bytes per slice read when --parallel > 1",
			},
		),
		Action: func(c *cli.Context) error {
			if err := read(c); err != nil {
				return fmt.Errorf("error running read command: %w", err)
			}
			return nil
		},
	}
}

func read(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	src, err := openSource(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	offset := c.Uint64("offset")
	length := c.Int64("length")
	if length < 0 {
		size, err := src.Len(ctx)
		if err != nil {
			return err
		}
		if offset > size {
			return slicer.NewReadError(slicer.OpRead, offset, 0, slicer.ErrOutOfBounds, nil)
		}
		length = int64(size - offset)
	}
	if int64(int(length)) != length {
		return fmt.Errorf("length %d does not fit in memory", length)
	}

	buf := make([]byte, length)
	if err := readChunked(ctx, src, offset, buf, c.Int("parallel"), c.Int("chunk")); err != nil {
		return err
	}

	logger(c.App).Debug("range read",
		zap.String("source", src.name),
		zap.Uint64("offset", offset),
		zap.Int("length", len(buf)))

	_, err = output(c).Write(buf)
	return err
}

// readChunked fills buf from offset using up to parallel concurrent
// ReadSlice calls of at most chunk bytes each.
func readChunked(ctx context.Context, r slicer.SliceReader, offset uint64, buf []byte, parallel, chunk int) error {
	if parallel < 1 {
		return errors.New("--parallel must be at least 1")
	}
	if parallel == 1 || len(buf) <= chunk {
		return r.ReadSlice(ctx, offset, buf)
	}
	if chunk < 1 {
		return errors.New("--chunk must be at least 1")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for start := 0; start < len(buf); start += chunk {
		end := min(start+chunk, len(buf))
		g.Go(func() error {
			return r.ReadSlice(gctx, offset+uint64(start), buf[start:end])
		})
	}
	return g.Wait()
}
