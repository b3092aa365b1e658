package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/pithecene-io/slicer/slicer"
	"github.com/pithecene-io/slicer/slicer/gcs"
	s3slicer "github.com/pithecene-io/slicer/slicer/s3"
)

// Backend names accepted by --backend.
const (
	backendFile = "file"
	backendSeek = "seek"
	backendMmap = "mmap"
	backendS3   = "s3"
	backendGCS  = "gcs"
)

var errMissingSource = errors.New("a path or object key is required")

// backendFlags are shared by every command that opens a source.
func backendFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "backend, b",
			Value: backendFile,
			Usage: "file, seek, mmap, s3 or gcs",
		},
		cli.StringFlag{
			Name:  "decompress",
			Usage: "decode a gzip or zstd source into memory before reading (local backends only); auto picks the codec from the path suffix",
		},
		cli.StringFlag{
			Name:   "bucket",
			Usage:  "bucket for s3 and gcs backends",
			EnvVar: "SLICECAT_BUCKET",
		},
		cli.StringFlag{
			Name:   "prefix",
			Usage:  "key prefix for the s3 backend",
			EnvVar: "SLICECAT_PREFIX",
		},
		cli.StringFlag{
			Name:   "region",
			Value:  "us-east-1",
			Usage:  "region for the s3 backend",
			EnvVar: "AWS_REGION",
		},
		cli.StringFlag{
			Name:   "endpoint",
			Usage:  "custom endpoint for S3-compatible stores or the GCS emulator",
			EnvVar: "SLICECAT_ENDPOINT",
		},
	}
}

// source is an opened, instrumented backend.
type source struct {
	slicer.SliceReader
	backend string
	name    string
	closers []io.Closer
}

func (s *source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSource opens the command's first argument on the selected backend.
func openSource(ctx context.Context, c *cli.Context) (*source, error) {
	name := c.Args().First()
	if name == "" {
		return nil, errMissingSource
	}
	backend := c.String("backend")
	log := logger(c.App).With(zap.String("backend", backend), zap.String("source", name))

	src := &source{backend: backend, name: name}
	r, err := openBackend(ctx, c, src, name)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	if codec := c.String("decompress"); codec != "" {
		if backend == backendS3 || backend == backendGCS {
			_ = src.Close()
			return nil, fmt.Errorf("--decompress is not supported for the %s backend", backend)
		}
		r, err = decompress(ctx, r, codec, name)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
	}

	ir, err := slicer.Instrument(r, backend, slicer.WithLogger(log))
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	src.SliceReader = ir
	log.Debug("source opened")
	return src, nil
}

func openBackend(ctx context.Context, c *cli.Context, src *source, name string) (slicer.SliceReader, error) {
	switch src.backend {
	case backendFile:
		r, err := slicer.OpenFileAt(name)
		if err != nil {
			return nil, err
		}
		src.closers = append(src.closers, r)
		return r, nil

	case backendSeek:
		r, err := slicer.OpenFile(name)
		if err != nil {
			return nil, err
		}
		src.closers = append(src.closers, r)
		return r, nil

	case backendMmap:
		r, err := slicer.OpenMmap(name)
		if err != nil {
			return nil, err
		}
		src.closers = append(src.closers, r)
		return r, nil

	case backendS3:
		cfg := s3slicer.ClientConfig{
			Region:       c.String("region"),
			Endpoint:     c.String("endpoint"),
			UsePathStyle: c.String("endpoint") != "",
		}
		client, err := s3slicer.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := s3slicer.New(client, s3slicer.Config{
			Bucket: c.String("bucket"),
			Prefix: c.String("prefix"),
		})
		if err != nil {
			return nil, err
		}
		return store.Open(ctx, name)

	case backendGCS:
		client, err := gcs.NewClient(ctx, c.String("endpoint"))
		if err != nil {
			return nil, err
		}
		src.closers = append(src.closers, client)
		return gcs.Open(ctx, gcs.NewClientAPI(client), gcs.Config{Bucket: c.String("bucket")}, name)

	default:
		return nil, fmt.Errorf("unknown backend %q", src.backend)
	}
}

// codecAuto selects the codec from the source name's extension.
const codecAuto = "auto"

// decompress streams r through the named codec into memory.
func decompress(ctx context.Context, r slicer.SliceReader, codec, name string) (slicer.SliceReader, error) {
	var c slicer.Compressor
	if codec == codecAuto {
		var ok bool
		if c, ok = slicer.CompressorForPath(name); !ok {
			return nil, fmt.Errorf("--decompress auto: no known compression extension on %q", name)
		}
	} else {
		var err error
		if c, err = slicer.CompressorByName(codec); err != nil {
			return nil, err
		}
	}
	ra, err := slicer.AsReaderAt(ctx, r)
	if err != nil {
		return nil, err
	}
	return slicer.LoadCompressed(ctx, io.NewSectionReader(ra, 0, ra.Size()), c)
}

// output returns the writer commands print to.
func output(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
