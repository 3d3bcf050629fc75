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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// initializeProvider initializes the tracing provider based on configuration.
// The context is used by OTLP exporters for connection establishment.
func (t *Tracer) initializeProvider(ctx context.Context) error {
	// A custom tracer provider overrides any configured exporter.
	if t.customTracerProvider {
		t.emitDebug("Using custom user-provided tracer provider")
		if sdkTP, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
			t.sdkProvider = sdkTP
		}
		if t.tracer == nil {
			t.tracer = t.tracerProvider.Tracer(instrumentationName)
		}
		t.registerGlobalIfRequested()

		return nil
	}

	switch t.provider {
	case NoopProvider:
		return t.initNoopProvider()
	case StdoutProvider:
		return t.initStdoutProvider()
	case OTLPProvider:
		return t.initOTLPProvider(ctx)
	case OTLPHTTPProvider:
		return t.initOTLPHTTPProvider(ctx)
	default:
		return fmt.Errorf("unsupported tracing provider: %s", t.provider)
	}
}

// initNoopProvider creates a tracer provider with no exporter.
func (t *Tracer) initNoopProvider() error {
	res := createResource(t.serviceName, t.serviceVersion)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)

	t.adoptProvider(tp)

	return nil
}

// initStdoutProvider initializes the stdout trace exporter.
func (t *Tracer) initStdoutProvider() error {
	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	res := createResource(t.serviceName, t.serviceVersion)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	t.adoptProvider(tp)
	t.emitInfo("Tracing initialized", "provider", "stdout", "service", t.serviceName)

	return nil
}

// initOTLPProvider initializes the OTLP gRPC trace exporter.
// The context is used for connection establishment.
func (t *Tracer) initOTLPProvider(ctx context.Context) error {
	opts := []otlptracegrpc.Option{}

	if t.otlpEndpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(t.otlpEndpoint))
	}

	if t.otlpInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}

	res := createResource(t.serviceName, t.serviceVersion)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	t.adoptProvider(tp)
	t.emitInfo("Tracing initialized", "provider", "otlp", "endpoint", t.otlpEndpoint, "service", t.serviceName)

	return nil
}

// initOTLPHTTPProvider initializes the OTLP HTTP trace exporter.
// The context is used for connection establishment.
func (t *Tracer) initOTLPHTTPProvider(ctx context.Context) error {
	opts := []otlptracehttp.Option{}

	if t.otlpEndpoint != "" {
		// Parse endpoint to extract host:port and determine if HTTP or HTTPS
		endpoint := t.otlpEndpoint
		isHTTP := false

		// Remove protocol prefix if present
		if trimmed, ok := strings.CutPrefix(endpoint, "http://"); ok {
			endpoint = trimmed
			isHTTP = true
		} else if trimmedHTTPS, trimmedOk := strings.CutPrefix(endpoint, "https://"); trimmedOk {
			endpoint = trimmedHTTPS
		}

		// Remove trailing path if present
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}

		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		if isHTTP {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}

	res := createResource(t.serviceName, t.serviceVersion)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	t.adoptProvider(tp)
	t.emitInfo("Tracing initialized", "provider", "otlp-http", "endpoint", t.otlpEndpoint, "service", t.serviceName)

	return nil
}

// adoptProvider wires a freshly created SDK tracer provider into the Tracer.
func (t *Tracer) adoptProvider(tp *sdktrace.TracerProvider) {
	t.sdkProvider = tp
	t.tracerProvider = tp
	if t.tracer == nil {
		t.tracer = tp.Tracer(instrumentationName)
	}
	t.registerGlobalIfRequested()
}

// registerGlobalIfRequested sets the global OpenTelemetry tracer provider
// and propagator when WithGlobalTracerProvider was used.
func (t *Tracer) registerGlobalIfRequested() {
	if !t.registerGlobal {
		t.emitDebug("Skipping global tracer provider registration", "provider", string(t.provider))
		return
	}
	t.emitDebug("Setting global OpenTelemetry tracer provider", "provider", string(t.provider))
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(t.propagator)
}

// createResource creates an OpenTelemetry resource with service information.
func createResource(serviceName, serviceVersion string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}
