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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/otelware/tracing"
)

// fakeClientStream is a minimal grpc.ClientStream whose RecvMsg returns a
// scripted sequence of errors.
type fakeClientStream struct {
	ctx      context.Context
	recvErrs []error
	sendErr  error
}

func (s *fakeClientStream) Header() (metadata.MD, error) { return nil, nil }
func (s *fakeClientStream) Trailer() metadata.MD         { return nil }
func (s *fakeClientStream) CloseSend() error             { return nil }

func (s *fakeClientStream) Context() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

func (s *fakeClientStream) SendMsg(any) error {
	return s.sendErr
}

func (s *fakeClientStream) RecvMsg(any) error {
	if len(s.recvErrs) == 0 {
		return nil
	}
	err := s.recvErrs[0]
	s.recvErrs = s.recvErrs[1:]
	return err
}

// =============================================================================
// Unary Client Interceptor Tests
// =============================================================================

func TestUnaryClientInterceptorInjectsMetadata(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := UnaryClientInterceptor(tracer)

	ctx, parent := tracer.StartSpan(context.Background(), "caller")

	var sentMD metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		sentMD, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := interceptor(ctx, "/users.v1.Users/Get", nil, nil, nil, invoker)
	require.NoError(t, err)
	parent.End()

	require.NotEmpty(t, sentMD.Get("traceparent"), "trace context must travel in the outgoing metadata")
	assert.Contains(t, sentMD.Get("traceparent")[0], parent.SpanContext().TraceID().String())

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	clientSpan := spans[0]
	assert.Equal(t, "/users.v1.Users/Get", clientSpan.Name())
	assert.Equal(t, trace.SpanKindClient, clientSpan.SpanKind())
	assert.Equal(t, parent.SpanContext().SpanID(), clientSpan.Parent().SpanID())
	assert.Equal(t, otelcodes.Ok, clientSpan.Status().Code)
}

func TestUnaryClientAnyNonOKIsError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus otelcodes.Code
	}{
		{name: "nil error is OK", err: nil, wantStatus: otelcodes.Ok},
		{name: "NotFound fails the caller", err: status.Error(codes.NotFound, "missing"), wantStatus: otelcodes.Error},
		{name: "InvalidArgument fails the caller", err: status.Error(codes.InvalidArgument, "bad"), wantStatus: otelcodes.Error},
		{name: "Internal fails the caller", err: status.Error(codes.Internal, "broken"), wantStatus: otelcodes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracer, recorder := tracing.TestingTracerWithRecorder(t)
			interceptor := UnaryClientInterceptor(tracer)

			invoker := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error {
				return tt.err
			}

			err := interceptor(context.Background(), "/svc.S/M", nil, nil, nil, invoker)
			assert.Equal(t, tt.err, err)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
		})
	}
}

func TestUnaryClientPreservesExistingMetadata(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)
	interceptor := UnaryClientInterceptor(tracer)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-tenant", "acme")

	var sentMD metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		sentMD, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	require.NoError(t, interceptor(ctx, "/svc.S/M", nil, nil, nil, invoker))
	assert.Equal(t, []string{"acme"}, sentMD.Get("x-tenant"))
	assert.NotEmpty(t, sentMD.Get("traceparent"))

	// The caller's own metadata context stays untouched.
	original, _ := metadata.FromOutgoingContext(ctx)
	assert.Empty(t, original.Get("traceparent"))
}

func TestUnaryClientMethodFiltering(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := UnaryClientInterceptor(tracer,
		WithExcludeMethods("/grpc.health.v1.Health/Check"),
	)

	invoker := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error {
		return nil
	}

	require.NoError(t, interceptor(context.Background(), "/grpc.health.v1.Health/Check", nil, nil, nil, invoker))
	assert.Empty(t, recorder.Started())
}

// =============================================================================
// Stream Client Interceptor Tests
// =============================================================================

func TestStreamClientSpanEndsOnEOF(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := StreamClientInterceptor(tracer)

	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		return &fakeClientStream{recvErrs: []error{nil, nil, io.EOF}}, nil
	}

	stream, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/feed.v1.Feed/Subscribe", streamer)
	require.NoError(t, err)

	// Two messages, then clean EOF.
	require.NoError(t, stream.RecvMsg(nil))
	assert.Empty(t, recorder.Ended(), "span must stay open while the stream is live")
	require.NoError(t, stream.RecvMsg(nil))
	require.ErrorIs(t, stream.RecvMsg(nil), io.EOF)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, otelcodes.Ok, spans[0].Status().Code, "clean EOF is a successful stream")
}

func TestStreamClientSpanEndsOnError(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := StreamClientInterceptor(tracer)

	recvErr := status.Error(codes.Unavailable, "lost")
	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		return &fakeClientStream{recvErrs: []error{recvErr}}, nil
	}

	stream, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/feed.v1.Feed/Subscribe", streamer)
	require.NoError(t, err)

	require.Error(t, stream.RecvMsg(nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, otelcodes.Error, spans[0].Status().Code)
}

func TestStreamClientSetupFailureEndsSpan(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := StreamClientInterceptor(tracer)

	setupErr := status.Error(codes.Unavailable, "cannot connect")
	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		return nil, setupErr
	}

	stream, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/feed.v1.Feed/Subscribe", streamer)
	require.Error(t, err)
	assert.Nil(t, stream)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, otelcodes.Error, spans[0].Status().Code)
}

func TestStreamClientSpanEndsOnCancelledAbandonedStream(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := StreamClientInterceptor(tracer)

	ctx, cancel := context.WithCancel(context.Background())

	// gRPC derives the stream context from the call context and cancels it
	// with the RPC; the fake mirrors that by returning the call context.
	streamer := func(ctx context.Context, _ *grpc.StreamDesc, _ *grpc.ClientConn, _ string, _ ...grpc.CallOption) (grpc.ClientStream, error) {
		return &fakeClientStream{ctx: ctx}, nil
	}

	_, err := interceptor(ctx, &grpc.StreamDesc{}, nil, "/feed.v1.Feed/Subscribe", streamer)
	require.NoError(t, err)

	// The caller cancels and walks away without another Recv.
	cancel()

	require.Eventually(t, func() bool {
		return len(recorder.Ended()) == 1
	}, 2*time.Second, 10*time.Millisecond, "an abandoned stream must still close its span")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, otelcodes.Error, spans[0].Status().Code)
}

func TestStreamClientCompletesOnAnotherGoroutine(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	interceptor := StreamClientInterceptor(tracer)

	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		return &fakeClientStream{recvErrs: []error{nil, io.EOF}}, nil
	}

	stream, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/feed.v1.Feed/Subscribe", streamer)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if recvErr := stream.RecvMsg(nil); recvErr != nil {
				return
			}
		}
	}()
	<-done

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, otelcodes.Ok, spans[0].Status().Code)
}
