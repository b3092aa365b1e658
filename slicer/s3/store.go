// Package s3 provides an S3-compatible remote backend for slicer.
//
// This adapter supports AWS S3, MinIO, LocalStack, Cloudflare R2,
// and other S3-compatible object stores.
//
// # Read semantics
//
// Every ReadSlice issues exactly one ranged GetObject
// ("Range: bytes=<offset>-<offset+len-1>") and never falls back to a full
// download. Len issues a HeadObject and reports ContentLength; it is not
// cached. Failures map onto the slicer taxonomy:
//
//   - InvalidRange, or a Content-Range total smaller than the request: ErrOutOfBounds
//   - body shorter than requested for any other reason: ErrShortRead
//   - NoSuchKey / 404: ErrNotFound
//   - cancellation of the caller's context: ErrCanceled
//   - ReadTimeout or OperationTimeout expiry: transport failure
//   - anything else: transport failure, with the SDK error preserved
//
// Nothing is retried at this layer beyond what the SDK client itself is
// configured to do.
//
// # Concurrency
//
// An Object holds no positional state. Concurrent reads are safe.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pithecene-io/slicer/slicer"
)

const (
	defaultOperationTimeout = 5 * time.Second
	defaultReadTimeout      = 15 * time.Second
)

// ErrInvalidKey indicates an empty key or one that escapes the prefix.
var ErrInvalidKey = errors.New("s3: invalid key")

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all operations.
	// If set, all keys are prefixed with this value (with a trailing slash added if missing).
	Prefix string

	// ReadTimeout bounds a single ranged GetObject including the body
	// transfer. Zero means 15s.
	ReadTimeout time.Duration

	// OperationTimeout bounds HeadObject calls. Zero means 5s.
	OperationTimeout time.Duration
}

// Store opens objects in one bucket as slicer backends.
type Store struct {
	client           API
	bucket           string
	prefix           string
	readTimeout      time.Duration
	operationTimeout time.Duration
}

// New creates a new S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use NewClient or github.com/aws/aws-sdk-go-v2/config to build one.
//
// Example:
//
//	client, err := s3store.NewClient(ctx, s3store.ClientConfig{Region: "us-east-1"})
//	store, err := s3store.New(client, s3store.Config{Bucket: "my-bucket"})
//	obj, err := store.Open(ctx, "segments/000001.log")
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	operationTimeout := cfg.OperationTimeout
	if operationTimeout <= 0 {
		operationTimeout = defaultOperationTimeout
	}

	return &Store{
		client:           client,
		bucket:           cfg.Bucket,
		prefix:           prefix,
		readTimeout:      readTimeout,
		operationTimeout: operationTimeout,
	}, nil
}

// Open returns the object at key after verifying it exists.
// Returns slicer.ErrNotFound if it does not.
func (s *Store) Open(ctx context.Context, key string) (*Object, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	obj := &Object{store: s, key: fullKey}
	if _, err := obj.head(ctx, slicer.OpOpen); err != nil {
		return nil, err
	}
	return obj, nil
}

// Object is a single S3 object exposed as a slicer.SliceReader.
type Object struct {
	store *Store
	key   string
}

// Key returns the full object key including the store prefix.
func (o *Object) Key() string {
	return o.key
}

// ReadSlice fetches [offset, offset+len(p)) with one ranged GetObject.
func (o *Object) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	length := uint64(len(p))
	if err := ctx.Err(); err != nil {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrCanceled, err)
	}
	if offset > math.MaxInt64 || length > math.MaxInt64-offset {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrOutOfBounds, nil)
	}

	// S3 has no empty range; answer zero-length reads from the object size.
	if length == 0 {
		size, err := o.head(ctx, slicer.OpRead)
		if err != nil {
			return err
		}
		if offset > size {
			return slicer.NewReadError(slicer.OpRead, offset, 0, slicer.ErrOutOfBounds, nil)
		}
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, o.store.readTimeout)
	defer cancel()

	// S3 Range header format: "bytes=start-end" (inclusive)
	end := offset + length - 1
	out, err := o.store.client.GetObject(rctx, &s3.GetObjectInput{
		Bucket: aws.String(o.store.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
	})
	if err != nil {
		return o.mapError(ctx, slicer.OpRead, offset, length, "range read", err)
	}
	defer func() { _ = out.Body.Close() }()

	// A range crossing the end of the object is served truncated.
	if total, ok := parseContentRangeTotal(aws.ToString(out.ContentRange)); ok && offset+length > total {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrOutOfBounds, nil)
	}
	if out.ContentLength != nil && uint64(*out.ContentLength) < length {
		return slicer.NewReadError(slicer.OpRead, offset, length, slicer.ErrShortRead,
			fmt.Errorf("s3: content length %d, want %d", *out.ContentLength, length))
	}

	if _, err := io.ReadFull(out.Body, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return slicer.Classify(slicer.OpRead, offset, length, fmt.Errorf("s3: reading range body: %w", err))
		}
		return o.mapError(ctx, slicer.OpRead, offset, length, "reading range body", err)
	}
	return nil
}

// Len returns the object's current ContentLength.
func (o *Object) Len(ctx context.Context) (uint64, error) {
	return o.head(ctx, slicer.OpLen)
}

func (o *Object) head(ctx context.Context, op slicer.Op) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, slicer.NewReadError(op, 0, 0, slicer.ErrCanceled, err)
	}

	hctx, cancel := context.WithTimeout(ctx, o.store.operationTimeout)
	defer cancel()

	out, err := o.store.client.HeadObject(hctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.store.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return 0, o.mapError(ctx, op, 0, 0, "head object", err)
	}
	size := aws.ToInt64(out.ContentLength)
	if size < 0 {
		return 0, slicer.NewReadError(op, 0, 0, nil, fmt.Errorf("s3: negative content length %d", size))
	}
	return uint64(size), nil
}

// mapError classifies a failed call. ctx is the caller's context: only its
// cancellation counts as ErrCanceled. An expired per-call timeout is a
// transport failure with context.DeadlineExceeded in the chain.
func (o *Object) mapError(ctx context.Context, op slicer.Op, offset, length uint64, action string, err error) error {
	wrapped := fmt.Errorf("s3: %s %s: %w", action, o.key, err)
	switch {
	case ctx.Err() != nil:
		return slicer.NewReadError(op, offset, length, slicer.ErrCanceled, wrapped)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return slicer.NewReadError(op, offset, length, nil, wrapped)
	case isNotFound(err):
		return slicer.NewReadError(op, offset, length, slicer.ErrNotFound, wrapped)
	case isInvalidRange(err):
		return slicer.NewReadError(op, offset, length, slicer.ErrOutOfBounds, wrapped)
	default:
		return slicer.NewReadError(op, offset, length, nil, wrapped)
	}
}

// parseContentRangeTotal extracts the complete length from a
// "bytes start-end/total" header. Returns false for "*" or malformed values.
func parseContentRangeTotal(v string) (uint64, bool) {
	_, total, found := strings.Cut(v, "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseUint(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// validateKey validates and returns the full key.
func (s *Store) validateKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	// Remove leading slash
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", ErrInvalidKey
	}

	return s.prefix + cleaned, nil
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// isInvalidRange checks for a range that starts past the end of the object.
func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "InvalidRange" || code == "416"
	}
	return false
}

// Ensure Object implements slicer.SliceReader
var _ slicer.SliceReader = (*Object)(nil)
