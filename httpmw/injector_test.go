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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otelware/tracing"
)

// =============================================================================
// Response Injection Tests
// =============================================================================

func TestResponseInjectorWritesTraceparent(t *testing.T) {
	t.Parallel()

	tracer, recorder := tracing.TestingTracerWithRecorder(t)
	mw := MustMiddleware(tracer)

	handler := mw(ResponseInjector(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	traceparent := w.Header().Get("traceparent")
	require.NotEmpty(t, traceparent, "successful responses carry the trace context back")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, traceparent, spans[0].SpanContext().TraceID().String(),
		"the response header must reference the server span's trace")
}

func TestResponseInjectorOnImplicitHeaderWrite(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)
	mw := MustMiddleware(tracer)

	// The handler never calls WriteHeader; the first body write flushes
	// headers implicitly.
	handler := mw(ResponseInjector(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, w.Header().Get("traceparent"))
	assert.Equal(t, "hello", w.Body.String())
}

func TestResponseInjectorNoopWithoutSpan(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)

	// Injector without the tracing middleware: no span in context.
	handler := ResponseInjector(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, w.Header().Get("traceparent"), "no span context means nothing to inject")
}

func TestResponseInjectorSkipsFilteredRequests(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)
	mw := MustMiddleware(tracer, WithExcludePaths("/health"))

	handler := mw(ResponseInjector(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, w.Header().Get("traceparent"))
}

func TestResponseInjectorPanicPathStaysUninjected(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)
	mw := MustMiddleware(tracer)

	handler := mw(ResponseInjector(tracer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("before any write")
	})))

	w := httptest.NewRecorder()
	assert.Panics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Empty(t, w.Header().Get("traceparent"), "panics propagate with the response uninjected")
}

func TestResponseInjectorInjectsOnce(t *testing.T) {
	t.Parallel()

	tracer, _ := tracing.TestingTracerWithRecorder(t)
	mw := MustMiddleware(tracer)

	handler := mw(ResponseInjector(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Multiple writes must not duplicate the header.
		_, _ = w.Write([]byte("a"))
		_, _ = w.Write([]byte("b"))
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	values := w.Header().Values("traceparent")
	require.Len(t, values, 1)
	assert.True(t, strings.HasPrefix(values[0], "00-"))
}
