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

// Package tracing provides OpenTelemetry-based distributed tracing for Go
// services: tracer lifecycle management, W3C trace-context propagation, and
// a shutdown guard. Server and client instrumentation live in the httpmw
// and grpcmw subpackages.
//
// # Basic Usage
//
//	import (
//	    "context"
//	    "log"
//	    "github.com/otelware/tracing"
//	)
//
//	tracer, err := tracing.New(
//	    tracing.WithServiceName("my-service"),
//	    tracing.WithServiceVersion("v1.0.0"),
//	    tracing.WithOTLP("localhost:4317", tracing.OTLPInsecure()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	guard := tracer.AcquireGuard()
//	defer guard.Release()
//
// # Providers
//
// Four providers are supported:
//
//   - NoopProvider (default): No traces exported (safe default)
//   - StdoutProvider: Prints traces to stdout (for development/testing)
//   - OTLPProvider: Sends traces to an OTLP collector over gRPC
//   - OTLPHTTPProvider: Sends traces to an OTLP collector over HTTP
//
// # Context Propagation
//
// Trace context crosses process boundaries as W3C traceparent, tracestate,
// and baggage headers. Extraction never fails: a missing or malformed header
// simply starts a fresh trace.
//
//	ctx = tracer.Extract(ctx, propagation.HeaderCarrier(req.Header))
//	tracer.Inject(ctx, propagation.HeaderCarrier(out.Header))
//
// The propagator set is configurable by name, matching the OTEL_PROPAGATORS
// convention:
//
//	prop, err := tracing.NewPropagator("tracecontext", "baggage")
//
// # Custom Spans
//
// Create and manage spans using the provided methods:
//
//	ctx, span := tracer.StartSpan(ctx, "database-query")
//	defer tracer.FinishSpan(span, http.StatusOK)
//
//	tracer.SetSpanAttribute(span, "user.id", "123")
//	tracer.AddSpanEvent(span, "cache_hit",
//	    attribute.String("key", "user:123"),
//	)
//
// # Shutdown Guard
//
// AcquireGuard ties flushing to a scope. Release is idempotent, bounded by
// a configurable timeout, and safe to call from multiple guards on the same
// tracer.
//
// # Sampling
//
// Control which requests are traced using sampling:
//
//	tracer := tracing.MustNew(
//	    tracing.WithServiceName("my-service"),
//	    tracing.WithSampleRate(0.1), // Sample 10% of requests
//	)
//
// # Thread Safety
//
// All methods are thread-safe. The Tracer struct is immutable after creation.
// Span operations use OpenTelemetry's thread-safe primitives.
//
// # Global State
//
// By default, this package does NOT set the global OpenTelemetry tracer
// provider. Use WithGlobalTracerProvider() if you want the provider and
// propagator registered as the global defaults. This allows multiple tracing
// configurations to coexist in the same process.
package tracing
