package slicer

import (
	"context"
	"io"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/pithecene-io/slicer"

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLogger sets the logger used for failed operations (warn) and
// per-call details (debug). Defaults to a no-op logger.
func WithLogger(l *zap.Logger) InstrumentOption {
	return func(c *instrumentConfig) {
		c.logger = l
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.meterProvider = mp
	}
}

// Instrumented decorates a SliceReader with a span per call, operation and
// byte counters, and logging. It forwards every call unchanged: no retries,
// no caching, no reordering.
type Instrumented struct {
	r       SliceReader
	backend string
	logger  *zap.Logger
	tracer  trace.Tracer
	ops     metric.Int64Counter
	bytes   metric.Int64Counter
}

// Instrument wraps r. backend labels every span, metric, and log line.
func Instrument(r SliceReader, backend string, opts ...InstrumentOption) (*Instrumented, error) {
	cfg := instrumentConfig{
		logger:         zap.NewNop(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	ops, err := meter.Int64Counter("slicer.read.ops",
		metric.WithDescription("slice reads and length queries"))
	if err != nil {
		return nil, err
	}
	bytesRead, err := meter.Int64Counter("slicer.read.bytes",
		metric.WithDescription("bytes delivered by successful slice reads"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return &Instrumented{
		r:       r,
		backend: backend,
		logger:  cfg.logger.With(zap.String("backend", backend)),
		tracer:  cfg.tracerProvider.Tracer(instrumentationName),
		ops:     ops,
		bytes:   bytesRead,
	}, nil
}

// ReadSlice forwards to the wrapped reader.
func (i *Instrumented) ReadSlice(ctx context.Context, offset uint64, p []byte) error {
	ctx, span := i.tracer.Start(ctx, "slicer.ReadSlice", trace.WithAttributes(
		attribute.String("slicer.backend", i.backend),
		offsetAttr(offset),
		attribute.Int("slicer.length", len(p)),
	))
	defer span.End()

	err := i.r.ReadSlice(ctx, offset, p)
	i.record(ctx, span, OpRead, err)
	if err == nil {
		i.bytes.Add(ctx, int64(len(p)), metric.WithAttributes(attribute.String("backend", i.backend)))
	}

	if err != nil {
		i.logFailure(OpRead, err, zap.Uint64("offset", offset), zap.Int("length", len(p)))
	} else if ce := i.logger.Check(zap.DebugLevel, "slice read"); ce != nil {
		ce.Write(zap.Uint64("offset", offset), zap.Int("length", len(p)))
	}
	return err
}

// Len forwards to the wrapped reader.
func (i *Instrumented) Len(ctx context.Context) (uint64, error) {
	ctx, span := i.tracer.Start(ctx, "slicer.Len", trace.WithAttributes(
		attribute.String("slicer.backend", i.backend),
	))
	defer span.End()

	n, err := i.r.Len(ctx)
	i.record(ctx, span, OpLen, err)

	if err != nil {
		i.logFailure(OpLen, err)
	} else if size, ok := toInt64(n); ok {
		span.SetAttributes(attribute.Int64("slicer.size", size))
	}
	return n, err
}

// Close closes the wrapped reader if it implements io.Closer.
func (i *Instrumented) Close() error {
	if c, ok := i.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the decorated reader.
func (i *Instrumented) Unwrap() SliceReader {
	return i.r
}

func (i *Instrumented) record(ctx context.Context, span trace.Span, op Op, err error) {
	kind := KindOf(err)
	i.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", i.backend),
		attribute.String("op", string(op)),
		attribute.String("result", kind.String()),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (i *Instrumented) logFailure(op Op, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", string(op)), zap.Stringer("kind", KindOf(err)), zap.Error(err))
	// Cancellation is the caller's decision, not a backend fault.
	if KindOf(err) == KindCanceled {
		i.logger.Debug("slice operation canceled", fields...)
		return
	}
	i.logger.Warn("slice operation failed", fields...)
}

// Ensure Instrumented implements SliceReader
var _ SliceReader = (*Instrumented)(nil)

// offsetAttr records offsets past math.MaxInt64 as decimal strings.
func offsetAttr(offset uint64) attribute.KeyValue {
	if pos, ok := toInt64(offset); ok {
		return attribute.Int64("slicer.offset", pos)
	}
	return attribute.String("slicer.offset", strconv.FormatUint(offset, 10))
}
