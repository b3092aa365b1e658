package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API.
//
// Range requests follow S3 behavior: a range starting at or past the end of
// the object fails with InvalidRange, and a range crossing the end is served
// truncated with a Content-Range header carrying the full size.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Call counters for test assertions
	GetObjectCalls  int
	HeadObjectCalls int
	LastRange       string

	// TruncateBody drops this many bytes from the end of every range body
	// while still advertising the full ContentLength. Simulates a transfer
	// cut short mid-stream.
	TruncateBody int

	// GetObjectErr, when set, is returned by every GetObject call.
	GetObjectErr error

	// GetObjectDelay stalls GetObject until the delay passes or the
	// request context ends.
	GetObjectDelay time.Duration
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		objects: make(map[string][]byte),
	}
}

// SetObject stores data under key, replacing any existing object.
func (m *MockS3Client) SetObject(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// ResetCounts resets call counters for test isolation.
func (m *MockS3Client) ResetCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetObjectCalls = 0
	m.HeadObjectCalls = 0
	m.LastRange = ""
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	m.GetObjectCalls++
	m.LastRange = aws.ToString(params.Range)
	data, exists := m.objects[key]
	failWith := m.GetObjectErr
	delay := m.GetObjectDelay
	truncate := m.TruncateBody
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failWith != nil {
		return nil, failWith
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}

	out := &s3.GetObjectOutput{}
	size := int64(len(data))

	// Handle range requests
	if params.Range != nil {
		var start, end int64
		_, _ = fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end)

		if start >= size {
			return nil, &smithyAPIError{code: "InvalidRange", message: "the requested range is not satisfiable"}
		}
		if end >= size {
			end = size - 1
		}

		data = data[start : end+1]
		out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}

	out.ContentLength = aws.Int64(int64(len(data)))
	if truncate > 0 && truncate <= len(data) {
		data = data[:len(data)-truncate]
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	return out, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	m.HeadObjectCalls++
	data, exists := m.objects[key]
	m.mu.Unlock()

	if !exists {
		return nil, &types.NotFound{}
	}

	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

// NewAPIError returns a smithy.APIError with the given code, for injecting
// service failures through GetObjectErr.
func NewAPIError(code, message string) smithy.APIError {
	return &smithyAPIError{code: code, message: message}
}

// Ensure MockS3Client implements API
var _ API = (*MockS3Client)(nil)
