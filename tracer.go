// Copyright 2026 The Otelware Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultServiceName is the default service name used for tracing when none is provided.
	DefaultServiceName = "unknown-service"

	// DefaultServiceVersion is the default service version when none is provided.
	DefaultServiceVersion = "0.0.0"

	// DefaultSampleRate is the default sampling rate (100% of requests).
	DefaultSampleRate = 1.0
)

// instrumentationName identifies spans produced by this module.
const instrumentationName = "github.com/otelware/tracing"

// Sampling multiplier (Knuth's multiplicative hash constant)
// Used for deterministic sampling with uniform distribution.
// The sampling counter wraps around at uint64 max, which keeps the
// distribution uniform after overflow.
const samplingMultiplier = 2654435761

// Provider represents the available tracing providers.
type Provider string

const (
	// NoopProvider is a no-op provider that doesn't export anything (default).
	NoopProvider Provider = "noop"

	// StdoutProvider exports traces to stdout (development/testing).
	StdoutProvider Provider = "stdout"

	// OTLPProvider exports traces via OTLP gRPC protocol.
	OTLPProvider Provider = "otlp"

	// OTLPHTTPProvider exports traces via OTLP HTTP protocol.
	OTLPHTTPProvider Provider = "otlp-http"
)

// Tracer holds the OpenTelemetry tracing configuration and lifecycle.
// All operations on Tracer are thread-safe.
//
// Important: Tracer is immutable after creation via New(). All configuration
// must be done through functional options passed to New().
//
// Global State:
// By default, this package does NOT set the global OpenTelemetry tracer
// provider. Use WithGlobalTracerProvider() if you want global registration.
// This allows multiple tracing configurations to coexist in the same process.
type Tracer struct {
	// Core tracing components
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator
	tracerProvider trace.TracerProvider
	sdkProvider    *sdktrace.TracerProvider
	eventHandler   EventHandler
	serviceName    string
	serviceVersion string
	provider       Provider
	otlpEndpoint   string

	// Tracing behavior settings
	sampleRate float64

	// Atomic types (must be 8-byte aligned)
	samplingCounter   atomic.Uint64
	samplingThreshold uint64

	// Shutdown synchronization
	shutdownOnce sync.Once
	shutdownErr  error

	// Small types and booleans at end
	otlpInsecure         bool
	enabled              bool
	customTracerProvider bool
	registerGlobal       bool
	providerSet          bool

	// Validation errors (collected during option application)
	validationErrors []error
}

// New creates a new Tracer with the given options.
// Returns an error if the configuration is invalid or the provider fails to
// initialize. For a version that panics on error, use MustNew.
//
// Default configuration:
//   - Service name: DefaultServiceName
//   - Service version: DefaultServiceVersion
//   - Sample rate: DefaultSampleRate (1.0 = 100%)
//   - Provider: NoopProvider (no traces exported)
//   - Propagator: W3C Trace Context + Baggage composite
//
// Example:
//
//	tracer, err := tracing.New(
//	    tracing.WithServiceName("my-api"),
//	    tracing.WithOTLP("localhost:4317", tracing.OTLPInsecure()),
//	    tracing.WithSampleRate(0.1),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(context.Background())
func New(opts ...Option) (*Tracer, error) {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext is like New but uses ctx for exporter initialization
// (OTLP exporters use it while establishing their connection).
func NewWithContext(ctx context.Context, opts ...Option) (*Tracer, error) {
	t := newDefaultTracer()

	for _, opt := range opts {
		opt(t)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := t.initializeProvider(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return t, nil
}

// MustNew creates a new Tracer with the given options.
// It panics if the configuration is invalid or the provider fails to initialize.
//
// Example:
//
//	tracer := tracing.MustNew(
//	    tracing.WithServiceName("my-api"),
//	    tracing.WithStdout(),
//	)
//	defer tracer.Shutdown(context.Background())
func MustNew(opts ...Option) *Tracer {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize tracing: %v", err))
	}
	return t
}

// newDefaultTracer creates a Tracer with default values.
func newDefaultTracer() *Tracer {
	return &Tracer{
		enabled:        true,
		serviceName:    DefaultServiceName,
		serviceVersion: DefaultServiceVersion,
		propagator:     defaultPropagator(),
		sampleRate:     DefaultSampleRate,
		provider:       NoopProvider,
	}
}

// validate checks that the configuration is valid.
func (t *Tracer) validate() error {
	// Check for validation errors collected during option application
	if len(t.validationErrors) > 0 {
		var errMsgs []string
		for _, err := range t.validationErrors {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errMsgs, "; "))
	}

	if t.serviceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	if t.serviceVersion == "" {
		return fmt.Errorf("service version cannot be empty")
	}

	if t.sampleRate < 0.0 || t.sampleRate > 1.0 {
		return fmt.Errorf("sample rate must be between 0.0 and 1.0, got %f", t.sampleRate)
	}

	// Precompute sampling threshold for integer-based sampling
	switch {
	case t.sampleRate > 0.0 && t.sampleRate < 1.0:
		t.samplingThreshold = uint64(t.sampleRate * float64(^uint64(0)))
	case t.sampleRate == 1.0:
		t.samplingThreshold = ^uint64(0)
	default:
		t.samplingThreshold = 0
	}

	switch t.provider {
	case NoopProvider, StdoutProvider:
		// No provider-specific validation needed
	case OTLPProvider:
		if t.otlpEndpoint == "" {
			t.emitWarning("OTLP endpoint not specified, will use default", "default", "localhost:4317")
			t.otlpEndpoint = "localhost:4317"
		}
	case OTLPHTTPProvider:
		if t.otlpEndpoint == "" {
			t.emitWarning("OTLP HTTP endpoint not specified, will use default", "default", "http://localhost:4318")
			t.otlpEndpoint = "http://localhost:4318"
		}
	default:
		return fmt.Errorf("unsupported tracing provider: %s", t.provider)
	}

	return nil
}

// IsEnabled returns true if tracing is enabled.
func (t *Tracer) IsEnabled() bool {
	return t.enabled
}

// ServiceName returns the service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// ServiceVersion returns the service version.
func (t *Tracer) ServiceVersion() string {
	return t.serviceVersion
}

// GetTracer returns the OpenTelemetry tracer.
func (t *Tracer) GetTracer() trace.Tracer {
	return t.tracer
}

// GetPropagator returns the OpenTelemetry propagator.
func (t *Tracer) GetPropagator() propagation.TextMapPropagator {
	return t.propagator
}

// GetProvider returns the current tracing provider.
func (t *Tracer) GetProvider() Provider {
	if !t.enabled {
		return ""
	}
	return t.provider
}

// ShouldSample reports the sampling decision for the next unit of work,
// using an atomic counter with a multiplicative hash for deterministic,
// uniformly distributed sampling at the configured rate.
func (t *Tracer) ShouldSample() bool {
	if t.sampleRate >= 1.0 {
		return true
	}
	if t.sampleRate <= 0.0 {
		return false
	}
	counter := t.samplingCounter.Add(1)
	return counter*samplingMultiplier <= t.samplingThreshold
}

// Extract decodes any trace-propagation state present on the carrier into a
// new context. A missing or malformed carrier never fails: the returned
// context simply has no remote span context, and the next span started from
// it begins a fresh trace.
func (t *Tracer) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if !t.enabled {
		return ctx
	}
	return t.propagator.Extract(ctx, carrier)
}

// Inject encodes the trace context active in ctx onto the carrier so the
// trace can continue across a process boundary.
// This is a no-op if tracing is disabled.
func (t *Tracer) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	if !t.enabled {
		return
	}
	t.propagator.Inject(ctx, carrier)
}

// StartSpan starts a new span with the given name and options.
// Returns a new context with the span attached and the span itself.
//
// If tracing is disabled or the context is already cancelled, returns the
// original context and the span it already carries (possibly non-recording).
//
// Example:
//
//	ctx, span := tracer.StartSpan(ctx, "database-query")
//	defer span.End()
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}

	select {
	case <-ctx.Done():
		return ctx, trace.SpanFromContext(ctx)
	default:
	}

	return t.tracer.Start(ctx, name, opts...)
}

// FinishSpan completes the span with the given HTTP-style status code.
// The span status follows the default server-side policy: 5xx is recorded
// as an error, everything else (including 4xx) as OK. Middleware packages
// apply their own, configurable classification; this helper is for manually
// managed spans.
//
// Always safe to call even if tracing is disabled, span is nil, or span is
// not recording.
func (t *Tracer) FinishSpan(span trace.Span, statusCode int) {
	if !t.enabled || span == nil || !span.IsRecording() {
		return
	}

	if statusCode >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// SetSpanAttribute adds an attribute to the span with type-safe handling.
//
// Supported types with native OpenTelemetry handling:
//   - string: attribute.String
//   - int: attribute.Int
//   - int64: attribute.Int64
//   - float64: attribute.Float64
//   - bool: attribute.Bool
//
// All other types are converted to string using fmt.Sprintf("%v", value).
// This is a no-op if tracing is disabled, span is nil, or span is not recording.
func (t *Tracer) SetSpanAttribute(span trace.Span, key string, value any) {
	if !t.enabled || span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(buildAttribute(key, value))
}

// AddSpanEvent adds an event to the span with optional attributes.
// Events represent important moments in a span's lifetime.
//
// This is a no-op if tracing is disabled, span is nil, or span is not recording.
func (t *Tracer) AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if !t.enabled || span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// ForceFlush immediately exports all spans that have ended but not yet been
// delivered to the exporter. It blocks until the export completes or ctx
// expires. Custom tracer providers are flushed when they expose a
// ForceFlush method.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if !t.enabled {
		return nil
	}
	if t.sdkProvider != nil {
		return t.sdkProvider.ForceFlush(ctx)
	}
	if fp, ok := t.tracerProvider.(interface{ ForceFlush(context.Context) error }); ok {
		return fp.ForceFlush(ctx)
	}
	return nil
}

// Shutdown gracefully shuts down the tracing system, flushing any pending
// spans. This should be called before the application exits to ensure all
// spans are exported. This method is idempotent: calling it multiple times
// is safe and will only perform shutdown once; all concurrent calls observe
// the same result.
//
// Custom tracer providers (WithTracerProvider) are not shut down; their
// lifecycle belongs to the caller.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled {
		return nil
	}

	t.shutdownOnce.Do(func() {
		if t.sdkProvider != nil && !t.customTracerProvider {
			t.emitDebug("Shutting down tracer provider")
			if err := t.sdkProvider.Shutdown(ctx); err != nil {
				t.emitError("Error shutting down tracer provider", "error", err)
				t.shutdownErr = fmt.Errorf("tracer provider shutdown: %w", err)
				return
			}
			t.emitDebug("Tracer provider shut down successfully")
		} else if t.customTracerProvider {
			t.emitDebug("Skipping shutdown of custom tracer provider (managed by user)")
		}
	})

	return t.shutdownErr
}

// emitError emits an error event if an event handler is configured.
func (t *Tracer) emitError(msg string, args ...any) {
	if t.eventHandler != nil {
		t.eventHandler(Event{Type: EventError, Message: msg, Args: args})
	}
}

// emitWarning emits a warning event if an event handler is configured.
func (t *Tracer) emitWarning(msg string, args ...any) {
	if t.eventHandler != nil {
		t.eventHandler(Event{Type: EventWarning, Message: msg, Args: args})
	}
}

// emitInfo emits an info event if an event handler is configured.
func (t *Tracer) emitInfo(msg string, args ...any) {
	if t.eventHandler != nil {
		t.eventHandler(Event{Type: EventInfo, Message: msg, Args: args})
	}
}

// emitDebug emits a debug event if an event handler is configured.
func (t *Tracer) emitDebug(msg string, args ...any) {
	if t.eventHandler != nil {
		t.eventHandler(Event{Type: EventDebug, Message: msg, Args: args})
	}
}

// buildAttribute creates an OpenTelemetry attribute from a key-value pair.
// Supports string, int, int64, float64, and bool types natively.
// Other types are converted to string using fmt.Sprintf.
func buildAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
