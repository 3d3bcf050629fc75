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

package grpcmw

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/otelware/tracing"
)

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that opens a
// SERVER span per RPC. Incoming trace context is extracted from the request
// metadata; a missing or malformed traceparent starts a fresh trace. The
// span closes exactly once: on handler return with gRPC status
// classification, or on a handler panic, which is recorded and re-raised
// unchanged.
//
// Example:
//
//	srv := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcmw.UnaryServerInterceptor(tracer,
//	        grpcmw.WithExcludeMethods("/grpc.health.v1.Health/Check"),
//	    )),
//	)
func UnaryServerInterceptor(tracer *tracing.Tracer, opts ...Option) grpc.UnaryServerInterceptor {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if !tracer.IsEnabled() || !cfg.traced(info.FullMethod) {
			return handler(ctx, req)
		}

		ctx = extractIncoming(tracer, ctx)

		if !tracer.ShouldSample() {
			return handler(ctx, req)
		}

		ctx, span := startServerSpan(tracer, ctx, info.FullMethod)
		defer func() {
			if rec := recover(); rec != nil {
				span.RecordError(fmt.Errorf("panic: %v", rec))
				span.SetStatus(otelcodes.Error, fmt.Sprintf("panic: %v", rec))
				span.End()
				panic(rec)
			}
			finishServerSpan(span, err)
		}()

		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor. The span covers the whole stream lifetime and the
// handler observes the span's context through the wrapped stream.
func StreamServerInterceptor(tracer *tracing.Tracer, opts ...Option) grpc.StreamServerInterceptor {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		if !tracer.IsEnabled() || !cfg.traced(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := extractIncoming(tracer, ss.Context())

		if !tracer.ShouldSample() {
			return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
		}

		ctx, span := startServerSpan(tracer, ctx, info.FullMethod)
		defer func() {
			if rec := recover(); rec != nil {
				span.RecordError(fmt.Errorf("panic: %v", rec))
				span.SetStatus(otelcodes.Error, fmt.Sprintf("panic: %v", rec))
				span.End()
				panic(rec)
			}
			finishServerSpan(span, err)
		}()

		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// extractIncoming decodes trace context from the incoming request metadata.
func extractIncoming(tracer *tracing.Tracer, ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return tracer.Extract(ctx, metadataCarrier(md))
}

// startServerSpan opens a SERVER span named after the full method.
func startServerSpan(tracer *tracing.Tracer, ctx context.Context, fullMethod string) (context.Context, trace.Span) {
	service, method := serviceAndMethod(fullMethod)

	ctx, span := tracer.GetTracer().Start(ctx, fullMethod,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	span.SetAttributes(
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	)

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		span.SetAttributes(attribute.String("net.sock.peer.addr", p.Addr.String()))
	}

	return ctx, span
}

// finishServerSpan classifies the handler outcome and ends the span.
// The server-side code table treats client-caused codes (NotFound,
// InvalidArgument, ...) as success.
func finishServerSpan(span trace.Span, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))

	if serverStatusIsError(code) {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(otelcodes.Error, code.String())
	} else {
		span.SetStatus(otelcodes.Ok, "")
	}

	span.End()
}

// wrappedServerStream overrides Context so the handler sees the span.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
