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

package httpmw

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelware/tracing"
)

// =============================================================================
// Client Transport Tests
// =============================================================================

func TestTransportInjectsAndParents(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)

	var receivedTraceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedTraceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewTransport(tracer)}

	ctx, parent := tracer.StartSpan(context.Background(), "parent-op")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/items", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	parent.End()

	require.NotEmpty(t, receivedTraceparent, "trace context must reach the server")
	assert.Contains(t, receivedTraceparent, parent.SpanContext().TraceID().String())

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	clientSpan := spans[0]
	assert.Equal(t, trace.SpanKindClient, clientSpan.SpanKind())
	assert.Equal(t, parent.SpanContext().SpanID(), clientSpan.Parent().SpanID(),
		"client span must be a child of the ambient span")
	assert.Equal(t, codes.Ok, clientSpan.Status().Code)
}

func TestTransportStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantStatus codes.Code
	}{
		{name: "200 is OK", statusCode: http.StatusOK, wantStatus: codes.Ok},
		{name: "404 is an error for clients", statusCode: http.StatusNotFound, wantStatus: codes.Error},
		{name: "500 is an error", statusCode: http.StatusInternalServerError, wantStatus: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracer, recorder := tracing.TestingTracerWithRecorder(t)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			t.Cleanup(srv.Close)

			client := &http.Client{Transport: NewTransport(tracer)}

			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			_, _ = io.Copy(io.Discard, resp.Body)
			require.NoError(t, resp.Body.Close())

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
		})
	}
}

func TestTransportSpanEndsOnBodyClose(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("streamed payload"))
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewTransport(tracer)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)

	// The download is still in flight from the span's perspective.
	assert.Empty(t, recorder.Ended(), "span must stay open while the body is unconsumed")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "streamed payload", string(body))

	spans := recorder.Ended()
	require.Len(t, spans, 1, "span ends once the body is consumed")
	assert.Equal(t, "GET "+req2host(t, srv.URL), spans[0].Name())
}

func TestTransportErrorEndsSpanImmediately(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := srv.URL
	srv.Close() // connection refused from here on

	client := &http.Client{Transport: NewTransport(tracer)}

	_, err := client.Get(url) //nolint:bodyclose // the request fails before a body exists
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTransportFilterSkipsTracing(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewTransport(tracer,
		WithTransportFilter(func(r *http.Request) bool {
			return r.URL.Path != "/untraced"
		}),
	)}

	resp, err := client.Get(srv.URL + "/untraced")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Empty(t, recorder.Started())
}

func TestTransportDoesNotMutateRequest(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	transport := NewTransport(tracer)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Empty(t, req.Header.Get("traceparent"), "the caller's request must stay untouched")
}

// req2host extracts host:port from a test server URL.
func req2host(t *testing.T, rawURL string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)

	return req.URL.Host
}
