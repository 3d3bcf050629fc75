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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// flushCountingProvider counts ForceFlush calls on an otherwise no-op provider.
type flushCountingProvider struct {
	noop.TracerProvider
	flushes atomic.Int32
}

func (p *flushCountingProvider) ForceFlush(context.Context) error {
	p.flushes.Add(1)
	return nil
}

// blockingExporter never completes an export until the context expires.
type blockingExporter struct{}

func (blockingExporter) ExportSpans(ctx context.Context, _ []sdktrace.ReadOnlySpan) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingExporter) Shutdown(context.Context) error {
	return nil
}

// =============================================================================
// Guard Release Tests
// =============================================================================

func TestGuardReleaseIdempotent(t *testing.T) {
	t.Parallel()

	provider := &flushCountingProvider{}
	tracer := TestingTracer(t, WithTracerProvider(provider))

	guard := tracer.AcquireGuard()
	require.NoError(t, guard.Release())
	require.NoError(t, guard.Release())
	require.NoError(t, guard.Release())

	assert.Equal(t, int32(1), provider.flushes.Load(), "repeated Release must not re-flush")
}

func TestGuardReleaseConcurrent(t *testing.T) {
	t.Parallel()

	provider := &flushCountingProvider{}
	tracer := TestingTracer(t, WithTracerProvider(provider))
	guard := tracer.AcquireGuard()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, guard.Release())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.flushes.Load())
}

func TestTwoGuardsOneTracer(t *testing.T) {
	t.Parallel()

	tracer, err := New(WithNoop())
	require.NoError(t, err)

	g1 := tracer.AcquireGuard()
	g2 := tracer.AcquireGuard()

	require.NoError(t, g1.Release())
	require.NoError(t, g2.Release(), "second guard must observe the shared shutdown without error")
}

func TestGuardFlushTimeoutIsBounded(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(blockingExporter{}),
	)
	tracer, err := New(WithTracerProvider(tp))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	})

	// Leave a span pending so the flush has something to export.
	_, span := tracer.StartSpan(context.Background(), "pending")
	span.End()

	guard := tracer.AcquireGuard(WithFlushTimeout(100 * time.Millisecond))

	start := time.Now()
	err = guard.Release()
	elapsed := time.Since(start)

	assert.Error(t, err, "an export stuck past the timeout is reported")
	assert.Less(t, elapsed, 3*time.Second, "release must not block past its bound")
}

func TestWithFlushTimeoutIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	tracer := TestingTracer(t)

	guard := tracer.AcquireGuard(WithFlushTimeout(-1))
	assert.Equal(t, DefaultGuardTimeout, guard.timeout)

	guard = tracer.AcquireGuard(WithFlushTimeout(0))
	assert.Equal(t, DefaultGuardTimeout, guard.timeout)
}
