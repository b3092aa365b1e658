// Package gcs exposes Google Cloud Storage objects as slicer backends.
//
// Each ReadSlice opens one ranged reader for exactly the requested bytes.
// Failures map onto the slicer taxonomy the same way as the s3 package.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pithecene-io/slicer/slicer"
)

const (
	googleOperationTimeout = 5 * time.Second
	googleReadTimeout      = 15 * time.Second
)

// RangeBody is an open ranged download.
type RangeBody struct {
	io.ReadCloser

	// Remain is the number of bytes the server will send.
	Remain int64

	// ObjectSize is the full size of the object, or -1 if unknown.
	ObjectSize int64
}

// API is the part of Cloud Storage the adapter needs.
type API interface {
	NewRangeReader(ctx context.Context, bucket, object string, offset, length int64) (*RangeBody, error)
	Size(ctx context.Context, bucket, object string) (int64, error)
}

type clientAPI struct {
	client *storage.Client
}

// NewClientAPI adapts a *storage.Client to API.
func NewClientAPI(client *storage.Client) API {
	return &clientAPI{client: client}
}

func (c *clientAPI) NewRangeReader(ctx context.Context, bucket, object string, offset, length int64) (*RangeBody, error) {
	// Offsets address the stored bytes, so transcoding must stay off.
	r, err := c.client.Bucket(bucket).Object(object).ReadCompressed(true).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	return &RangeBody{ReadCloser: r, Remain: r.Remain(), ObjectSize: r.Attrs.Size}, nil
}

func (c *clientAPI) Size(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// NewClient creates a Cloud Storage client. A non-empty endpoint targets an
// emulator (fake-gcs-server) without authentication.
func NewClient(ctx context.Context, endpoint string) (*storage.Client, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: creating client: %w", err)
	}
	return client, nil
}

// Config holds configuration for Open.
type Config struct {
	// Bucket is the bucket name. Required.
	Bucket string

	// ReadTimeout bounds one ranged read including the transfer. Zero means 15s.
	ReadTimeout time.Duration

	// OperationTimeout bounds attribute lookups. Zero means 5s.
	OperationTimeout time.Duration
}

// Object is a Cloud Storage object exposed as a slicer.SliceReader.
// It holds no positional state; concurrent reads are safe.
type Object struct {
	api              API
	bucket           string
	name             string
	readTimeout      time.Duration
	operationTimeout time.Duration
}

// Open returns the named object after verifying it exists.
// Returns slicer.ErrNotFound if it does not.
func Open(ctx context.Context, api API, cfg Config, name string) (*Object, error) {
	if api == nil {
		return nil, errors.New("gcs: api is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	if name == "" {
		return nil, errors.New("gcs: object name is required")
	}

	o := &Object{
		api:              api,
		bucket:           cfg.Bucket,
		name:             name,
		readTimeout:      cfg.ReadTimeout,
		operationTimeout: cfg.OperationTimeout,
	}
	if o.readTimeout <= 0 {
		o.readTimeout = googleReadTimeout
	}
	if o.operationTimeout <= 0 {
		o.operationTimeout = googleOperationTimeout
	}

	if _, err := o.size(ctx, slicer.OpOpen); err != nil {
		return nil, err
	}
	return o, nil
}

// ReadSlice fetches [offset, offset+len(p)) with one ranged reader.
func (o *Object) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	length := uint64(len(p))
	if err := ctx.Err(); err != nil {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrCanceled, err)
	}
	if offset > math.MaxInt64 || length > math.MaxInt64-offset {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrOutOfBounds, nil)
	}
	if length == 0 {
		size, err := o.size(ctx, slicer.OpRead)
		if err != nil {
			return err
		}
		if offset > size {
			return slicer.NewReadError(slicer.OpRead, offset, 0, slicer.ErrOutOfBounds, nil)
		}
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, o.readTimeout)
	defer cancel()

	body, err := o.api.NewRangeReader(rctx, o.bucket, o.name, int64(offset), int64(length))
	if err != nil {
		return o.mapError(ctx, slicer.OpRead, offset, length, "range read", err)
	}
	defer func() { _ = body.Close() }()

	if body.ObjectSize >= 0 && offset+length > uint64(body.ObjectSize) {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrOutOfBounds, nil)
	}
	if body.Remain >= 0 && uint64(body.Remain) < length {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrShortRead,
			fmt.Errorf("gcs: %d bytes remain, want %d", body.Remain, length))
	}

	if _, err := io.ReadFull(body, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return slicer.Classify(slicer.OpRead, offset, length, fmt.Errorf("gcs: reading range body: %w", err))
		}
		return o.mapError(ctx, slicer.OpRead, offset, length, "reading range body", err)
	}
	return nil
}

// Len returns the object's current size.
func (o *Object) Len(ctx context.Context) (uint64, error) {
	return o.size(ctx, slicer.OpLen)
}

func (o *Object) size(ctx context.Context, op slicer.Op) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, slicer.NewReadError(op, 0, 0, slicer.ErrCanceled, err)
	}

	actx, cancel := context.WithTimeout(ctx, o.operationTimeout)
	defer cancel()

	n, err := o.api.Size(actx, o.bucket, o.name)
	if err != nil {
		return 0, o.mapError(ctx, op, 0, 0, "attrs", err)
	}
	if n < 0 {
		return 0, slicer.NewReadError(op, 0, 0, nil, fmt.Errorf("gcs: negative size %d", n))
	}
	return uint64(n), nil
}

// mapError classifies a failed call. Only cancellation of the caller's ctx
// is ErrCanceled; an expired per-call timeout is a transport failure.
func (o *Object) mapError(ctx context.Context, op slicer.Op, offset, length uint64, action string, err error) error {
	wrapped := fmt.Errorf("gcs: %s %s/%s: %w", action, o.bucket, o.name, err)
	switch {
	case ctx.Err() != nil:
		return slicer.NewReadError(op, offset, length, slicer.ErrCanceled, wrapped)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return slicer.NewReadError(op, offset, length, nil, wrapped)
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		return slicer.NewReadError(op, offset, length, slicer.ErrNotFound, wrapped)
	case isStatus(err, http.StatusRequestedRangeNotSatisfiable):
		return slicer.NewReadError(op, offset, length, slicer.ErrOutOfBounds, wrapped)
	default:
		return slicer.NewReadError(op, offset, length, nil, wrapped)
	}
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// Ensure Object implements slicer.SliceReader
var _ slicer.SliceReader = (*Object)(nil)
