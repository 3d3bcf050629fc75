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
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/otelware/tracing"
)

// UnaryClientInterceptor returns a grpc.UnaryClientInterceptor that opens a
// CLIENT span per RPC under the caller's context and injects the trace
// context into the outgoing metadata. Any non-OK status marks the span as
// failed.
//
// Example:
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithUnaryInterceptor(grpcmw.UnaryClientInterceptor(tracer)),
//	)
func UnaryClientInterceptor(tracer *tracing.Tracer, opts ...Option) grpc.UnaryClientInterceptor {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		if !tracer.IsEnabled() || !cfg.traced(method) {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}

		ctx, span := startClientSpan(tracer, ctx, method)
		ctx = injectOutgoing(tracer, ctx)

		err := invoker(ctx, method, req, reply, cc, callOpts...)
		finishClientSpan(span, err)

		return err
	}
}

// StreamClientInterceptor is the streaming counterpart of
// UnaryClientInterceptor. The CLIENT span covers the whole stream and ends
// when the stream terminates: clean EOF, an RPC error, or send failure.
// Streams are commonly consumed on a different goroutine than the one that
// opened them; the span close is synchronized accordingly.
func StreamClientInterceptor(tracer *tracing.Tracer, opts ...Option) grpc.StreamClientInterceptor {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		if !tracer.IsEnabled() || !cfg.traced(method) {
			return streamer(ctx, desc, cc, method, callOpts...)
		}

		ctx, span := startClientSpan(tracer, ctx, method)
		ctx = injectOutgoing(tracer, ctx)

		stream, err := streamer(ctx, desc, cc, method, callOpts...)
		if err != nil {
			finishClientSpan(span, err)
			return nil, err
		}

		ts := &tracedClientStream{ClientStream: stream, span: span}

		// A caller may cancel the RPC context and abandon the stream without
		// another Recv. The stream context ends both then and on normal RPC
		// completion, so the span still closes; finish is once-guarded.
		go func() {
			<-stream.Context().Done()
			ts.finish(stream.Context().Err())
		}()

		return ts, nil
	}
}

// injectOutgoing copies the outgoing metadata and injects the trace context
// into it. The original metadata is never mutated.
func injectOutgoing(tracer *tracing.Tracer, ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	tracer.Inject(ctx, metadataCarrier(md))

	return metadata.NewOutgoingContext(ctx, md)
}

// startClientSpan opens a CLIENT span named after the full method.
func startClientSpan(tracer *tracing.Tracer, ctx context.Context, fullMethod string) (context.Context, trace.Span) {
	service, method := serviceAndMethod(fullMethod)

	ctx, span := tracer.GetTracer().Start(ctx, fullMethod,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	)

	return ctx, span
}

// finishClientSpan classifies the RPC outcome and ends the span.
// Any non-OK code is a failure from the caller's perspective.
func finishClientSpan(span trace.Span, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(code)))

	if clientStatusIsError(code) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, code.String())
	} else {
		span.SetStatus(otelcodes.Ok, "")
	}

	span.End()
}

// tracedClientStream ends the CLIENT span once the stream terminates.
// The terminating event may happen on any goroutine, so the close is
// once-guarded.
type tracedClientStream struct {
	grpc.ClientStream
	span trace.Span
	once sync.Once
}

func (s *tracedClientStream) SendMsg(m any) error {
	err := s.ClientStream.SendMsg(m)
	// io.EOF from SendMsg means the stream is done; the real status comes
	// from the following RecvMsg.
	if err != nil && err != io.EOF {
		s.finish(err)
	}

	return err
}

func (s *tracedClientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err == io.EOF {
		s.finish(nil)
	} else if err != nil {
		s.finish(err)
	}

	return err
}

func (s *tracedClientStream) finish(err error) {
	s.once.Do(func() {
		finishClientSpan(s.span, err)
	})
}
