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
	"bufio"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/propagation"

	"github.com/otelware/tracing"
)

// ResponseInjector returns middleware that writes the active trace context
// (traceparent, and tracestate/baggage when present) into the response
// headers, so clients can correlate their requests with server traces.
//
// Injection happens at the first header write on the normal completion path.
// If the handler panics before writing, the response goes out uninjected. If
// the request carries no span context (tracing disabled or the call was
// filtered), injection is a no-op.
//
// Compose it inside the tracing middleware so the request context carries
// the server span:
//
//	handler := mw(httpmw.ResponseInjector(tracer)(mux))
func ResponseInjector(tracer *tracing.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&injectorWriter{w: w, tracer: tracer, req: r}, r)
		})
	}
}

// injectorWriter injects trace context into the response headers immediately
// before they are flushed to the client. Headers written after the first
// body byte would be silently dropped by net/http, hence the write hooks.
type injectorWriter struct {
	w        http.ResponseWriter
	tracer   *tracing.Tracer
	req      *http.Request
	injected bool
}

func (iw *injectorWriter) inject() {
	if iw.injected {
		return
	}
	iw.injected = true
	// Injecting an invalid span context writes nothing, which covers the
	// filtered and tracing-disabled cases.
	iw.tracer.Inject(iw.req.Context(), propagation.HeaderCarrier(iw.w.Header()))
}

func (iw *injectorWriter) Header() http.Header {
	return iw.w.Header()
}

func (iw *injectorWriter) WriteHeader(code int) {
	iw.inject()
	iw.w.WriteHeader(code)
}

func (iw *injectorWriter) Write(b []byte) (int, error) {
	iw.inject()
	return iw.w.Write(b)
}

// Flush implements http.Flusher.
func (iw *injectorWriter) Flush() {
	if f, ok := iw.w.(http.Flusher); ok {
		iw.inject()
		f.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket support.
func (iw *injectorWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := iw.w.(http.Hijacker); ok {
		return h.Hijack()
	}

	return nil, nil, fmt.Errorf("underlying ResponseWriter doesn't support Hijack")
}

// Push implements http.Pusher for HTTP/2 server push.
func (iw *injectorWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := iw.w.(http.Pusher); ok {
		return p.Push(target, opts)
	}

	return http.ErrNotSupported
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController support.
func (iw *injectorWriter) Unwrap() http.ResponseWriter {
	return iw.w
}
