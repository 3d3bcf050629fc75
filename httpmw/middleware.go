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
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelware/tracing"
)

const (
	attrPrefixParam  = "http.request.param."
	attrPrefixHeader = "http.request.header."
)

// Middleware creates a tracing middleware for standard net/http handlers.
//
// For every request that passes the filters, it extracts incoming W3C trace
// context from the request headers (a missing or malformed traceparent starts
// a fresh trace), opens a SERVER span, and runs the handler with the span's
// context. The span is closed exactly once per request: on normal completion
// with status classification, on client cancellation as an error, or on a
// handler panic, which is recorded and re-raised unchanged. When the router
// resolved a route template (http.Request.Pattern) the span is renamed to it
// before it closes.
//
// Returns an error if any middleware option is invalid (e.g., invalid regex
// pattern).
//
// Example:
//
//	tracer := tracing.MustNew(
//	    tracing.WithOTLP("localhost:4317"),
//	    tracing.WithServiceName("my-api"),
//	)
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithExcludePaths("/health", "/metrics"),
//	    httpmw.WithHeaders("X-Request-ID"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.ListenAndServe(":8080", mw(mux))
func Middleware(tracer *tracing.Tracer, opts ...Option) (func(http.Handler) http.Handler, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tracer.IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			// Check if the request should be traced at all
			if cfg.pathFilter != nil && cfg.pathFilter.shouldExclude(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.filter != nil && !cfg.filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Extract trace context from headers. Extraction cannot fail:
			// malformed headers leave the context without a remote parent
			// and the span below starts a fresh trace.
			ctx := tracer.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			if !tracer.ShouldSample() {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx, span := startServerSpan(tracer, cfg, ctx, r)
			r = r.WithContext(ctx)

			// Check if already wrapped to prevent double-wrapping
			if tw, ok := w.(TraceWrappedWriter); ok {
				// Already wrapped, use as-is and read the status the outer
				// wrapper captures.
				serveAndFinish(cfg, span, next, w, r, tw.StatusCode)
				return
			}

			rw := newResponseWriter(w)
			serveAndFinish(cfg, span, next, rw, r, rw.StatusCode)
		})
	}

	return mw, nil
}

// MustMiddleware is like Middleware but panics if any option is invalid.
//
// Example:
//
//	handler := httpmw.MustMiddleware(tracer)(mux)
func MustMiddleware(tracer *tracing.Tracer, opts ...Option) func(http.Handler) http.Handler {
	mw, err := Middleware(tracer, opts...)
	if err != nil {
		panic(fmt.Sprintf("httpmw.Middleware: %v", err))
	}
	return mw
}

// serveAndFinish runs the handler and guarantees exactly one span close,
// whether the handler returns normally, the request is cancelled, or the
// handler panics. Panics are recorded on the span and re-raised unchanged.
func serveAndFinish(cfg *config, span trace.Span, next http.Handler, w http.ResponseWriter, r *http.Request, status func() int) {
	defer func() {
		rec := recover()
		finishServerSpan(cfg, span, r, status(), rec)
		if rec != nil {
			panic(rec)
		}
	}()

	next.ServeHTTP(w, r)
}

// startServerSpan starts a SERVER span for the request with the configured
// attribute recording. The span name is provisional (METHOD path); it is
// rewritten to the route template at close when the router resolved one.
func startServerSpan(t *tracing.Tracer, cfg *config, ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	var spanName string
	if cfg.spanNameFunc != nil {
		spanName = cfg.spanNameFunc(req)
	} else {
		spanName = req.Method + " " + req.URL.Path
	}

	ctx, span := t.GetTracer().Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))

	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}

	attrs := make([]attribute.KeyValue, 0, 8+len(cfg.recordHeaders))
	attrs = append(attrs,
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.scheme", scheme),
		attribute.String("http.host", req.Host),
		attribute.String("http.user_agent", req.UserAgent()),
		attribute.String("service.name", t.ServiceName()),
		attribute.String("service.version", t.ServiceVersion()),
	)

	if req.RemoteAddr != "" {
		attrs = append(attrs, attribute.String("net.sock.peer.addr", req.RemoteAddr))
	}

	// Record URL parameters if enabled
	if cfg.recordParams && req.URL.RawQuery != "" {
		queryParams := req.URL.Query()
		for key, values := range queryParams {
			if len(values) > 0 && shouldRecordParam(cfg, key) {
				attrs = append(attrs, attribute.StringSlice(attrPrefixParam+key, values))
			}
		}
	}

	// Record specific headers if configured
	for i, header := range cfg.recordHeaders {
		if value := req.Header.Get(header); value != "" {
			attrKey := attrPrefixHeader + cfg.recordHeadersLow[i]
			attrs = append(attrs, attribute.String(attrKey, value))
		}
	}

	span.SetAttributes(attrs...)

	if cfg.spanStartHook != nil {
		cfg.spanStartHook(ctx, span, req)
	}

	return ctx, span
}

// finishServerSpan closes the span exactly once. Precedence: panic, then
// request cancellation, then response status classification.
func finishServerSpan(cfg *config, span trace.Span, r *http.Request, statusCode int, recovered any) {
	// The router rewrites r.Pattern on the request while routing, so the
	// matched template is only known after the handler ran.
	route := r.URL.Path
	if r.Pattern != "" {
		span.SetName(r.Pattern)
		route = routeFromPattern(r.Pattern)
	}
	span.SetAttributes(attribute.String("http.route", route))

	switch {
	case recovered != nil:
		statusCode = http.StatusInternalServerError
		span.RecordError(fmt.Errorf("panic: %v", recovered))
		span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", recovered))
	case r.Context().Err() != nil:
		span.RecordError(r.Context().Err())
		span.SetStatus(codes.Error, fmt.Sprintf("request aborted: %v", r.Context().Err()))
	case cfg.statusClassifier(statusCode):
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(attribute.Int("http.status_code", statusCode))

	if cfg.spanFinishHook != nil {
		cfg.spanFinishHook(span, statusCode)
	}

	span.End()
}

// routeFromPattern strips the optional method prefix from a ServeMux pattern
// ("GET /users/{id}" -> "/users/{id}").
func routeFromPattern(pattern string) string {
	if idx := strings.IndexByte(pattern, ' '); idx >= 0 {
		return pattern[idx+1:]
	}
	return pattern
}

// shouldRecordParam determines if a query parameter should be recorded.
func shouldRecordParam(cfg *config, param string) bool {
	// Check blacklist first
	if cfg.excludeParams[param] {
		return false
	}

	// If whitelist is configured, param must be in the list
	if cfg.recordParamsList != nil {
		return slices.Contains(cfg.recordParamsList, param)
	}

	// No whitelist - record all params
	return true
}
