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
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Option configures the tracing middleware.
// These options are separate from Tracer options and only affect HTTP middleware behavior.
type Option func(*config)

// StatusClassifier decides whether an HTTP response status code marks the
// span as failed. The default treats 5xx as failures and everything else,
// including 4xx, as success: a well-formed 404 is correct server behavior.
type StatusClassifier func(statusCode int) bool

// SpanStartHook is called when a request span is started.
// It receives the context, span, and HTTP request.
// This can be used for custom attribute injection or integration with APM tools.
type SpanStartHook func(ctx context.Context, span trace.Span, req *http.Request)

// SpanFinishHook is called when a request span is finished.
// It receives the span and the HTTP status code.
// This can be used for custom metrics, logging, or post-processing.
type SpanFinishHook func(span trace.Span, statusCode int)

// config holds configuration for the middleware.
type config struct {
	pathFilter       *pathFilter
	filter           Filter
	statusClassifier StatusClassifier
	spanNameFunc     func(*http.Request) string
	spanStartHook    SpanStartHook
	spanFinishHook   SpanFinishHook
	recordHeaders    []string
	recordHeadersLow []string        // Pre-lowercased for efficient lookup
	recordParams     bool            // Whether to record URL params
	recordParamsList []string        // Whitelist of params to record (nil = all)
	excludeParams    map[string]bool // Blacklist of params to exclude
	validationErrors []error         // Errors collected during option application
}

// newConfig creates a default middleware configuration.
func newConfig() *config {
	return &config{
		pathFilter:       newPathFilter(),
		statusClassifier: serverErrorsAsFailures,
		recordParams:     true, // Default: record all params
		excludeParams:    make(map[string]bool),
	}
}

// validate checks the middleware configuration and returns any collected errors.
func (c *config) validate() error {
	if len(c.validationErrors) == 0 {
		return nil
	}

	var errMsgs []string
	for _, err := range c.validationErrors {
		errMsgs = append(errMsgs, err.Error())
	}

	return fmt.Errorf("middleware validation errors: %s", strings.Join(errMsgs, "; "))
}

// serverErrorsAsFailures is the default status classification: 5xx only.
func serverErrorsAsFailures(statusCode int) bool {
	return statusCode >= 500
}

// MaxExcludedPaths is the maximum number of paths that can be excluded from tracing.
const MaxExcludedPaths = 1000

// WithExcludePaths excludes specific paths from tracing.
// Excluded paths will not create spans or record any tracing data.
// This is useful for health checks, metrics endpoints, etc.
//
// Maximum of 1000 paths can be excluded to prevent unbounded growth.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithExcludePaths("/health", "/metrics"),
//	)
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		if c.pathFilter == nil {
			c.pathFilter = newPathFilter()
		}
		for i, path := range paths {
			if i >= MaxExcludedPaths {
				break
			}
			c.pathFilter.addPaths(path)
		}
	}
}

// WithExcludePrefixes excludes paths with the given prefixes from tracing.
// This is useful for excluding entire path hierarchies like /debug/, /internal/, etc.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithExcludePrefixes("/debug/", "/internal/"),
//	)
func WithExcludePrefixes(prefixes ...string) Option {
	return func(c *config) {
		if c.pathFilter == nil {
			c.pathFilter = newPathFilter()
		}
		c.pathFilter.addPrefixes(prefixes...)
	}
}

// WithExcludePatterns excludes paths matching the given regex patterns from tracing.
// The patterns are compiled once during configuration.
// Returns a validation error if any pattern fails to compile.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithExcludePatterns(`^/v[0-9]+/internal/.*`, `^/debug/.*`),
//	)
func WithExcludePatterns(patterns ...string) Option {
	return func(c *config) {
		if c.pathFilter == nil {
			c.pathFilter = newPathFilter()
		}
		for _, pattern := range patterns {
			compiled, err := regexp.Compile(pattern)
			if err != nil {
				c.validationErrors = append(c.validationErrors,
					fmt.Errorf("excludePatterns: invalid regex %q: %w", pattern, err))

				continue
			}
			c.pathFilter.addPatterns(compiled)
		}
	}
}

// WithFilter sets a custom predicate deciding whether a request is traced.
// It is evaluated after the path exclusions: a request is traced only when
// no exclusion matches AND the filter returns true.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithFilter(func(r *http.Request) bool {
//	        return r.Header.Get("X-Internal-Probe") == ""
//	    }),
//	)
func WithFilter(filter Filter) Option {
	return func(c *config) {
		c.filter = filter
	}
}

// WithStatusClassifier overrides how response status codes map to span status.
// The classifier returns true when the code should mark the span as failed.
//
// Example (treat 429 as a failure too):
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithStatusClassifier(func(code int) bool {
//	        return code >= 500 || code == http.StatusTooManyRequests
//	    }),
//	)
func WithStatusClassifier(classifier StatusClassifier) Option {
	return func(c *config) {
		if classifier == nil {
			c.validationErrors = append(c.validationErrors,
				fmt.Errorf("statusClassifier: cannot be nil"))
			return
		}
		c.statusClassifier = classifier
	}
}

// WithClientErrorsAsFailures marks 4xx responses as span failures in addition
// to 5xx. The default treats 4xx as success.
func WithClientErrorsAsFailures() Option {
	return WithStatusClassifier(func(statusCode int) bool {
		return statusCode >= 400
	})
}

// WithSpanNameFormatter overrides the provisional span name computed at
// request start. When the router resolves a route template during handling
// (http.Request.Pattern), the span is still renamed to the template at close.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithSpanNameFormatter(func(r *http.Request) string {
//	        return "HTTP " + r.Method
//	    }),
//	)
func WithSpanNameFormatter(f func(*http.Request) string) Option {
	return func(c *config) {
		c.spanNameFunc = f
	}
}

// WithSpanStartHook sets a callback that is invoked when a request span is started.
// The hook receives the context, span, and HTTP request, allowing custom attribute
// injection or integration with APM tools.
//
// Example:
//
//	hook := func(ctx context.Context, span trace.Span, req *http.Request) {
//	    if tenantID := req.Header.Get("X-Tenant-ID"); tenantID != "" {
//	        span.SetAttributes(attribute.String("tenant.id", tenantID))
//	    }
//	}
//	mw, err := httpmw.Middleware(tracer, httpmw.WithSpanStartHook(hook))
func WithSpanStartHook(hook SpanStartHook) Option {
	return func(c *config) {
		c.spanStartHook = hook
	}
}

// WithSpanFinishHook sets a callback that is invoked when a request span is finished.
// The hook receives the span and HTTP status code, allowing custom metrics recording,
// logging, or post-processing.
//
// Example:
//
//	hook := func(span trace.Span, statusCode int) {
//	    if statusCode >= 500 {
//	        metrics.IncrementServerErrors()
//	    }
//	}
//	mw, err := httpmw.Middleware(tracer, httpmw.WithSpanFinishHook(hook))
func WithSpanFinishHook(hook SpanFinishHook) Option {
	return func(c *config) {
		c.spanFinishHook = hook
	}
}

// sensitiveHeaders contains header names that should never be recorded in traces.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
	"www-authenticate":    true,
}

// WithHeaders records specific request headers as span attributes.
// Header names are case-insensitive. Recorded as 'http.request.header.{name}'.
//
// Security: Sensitive headers (Authorization, Cookie, etc.) are automatically
// filtered out to prevent accidental exposure of credentials in traces.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithHeaders("X-Request-ID", "X-Correlation-ID"),
//	)
func WithHeaders(headers ...string) Option {
	return func(c *config) {
		// Filter out sensitive headers
		filtered := make([]string, 0, len(headers))
		for _, h := range headers {
			if !sensitiveHeaders[strings.ToLower(h)] {
				filtered = append(filtered, h)
			}
		}
		c.recordHeaders = filtered
		// Pre-compute lowercased header names
		c.recordHeadersLow = make([]string, 0, len(filtered))
		for _, h := range filtered {
			c.recordHeadersLow = append(c.recordHeadersLow, strings.ToLower(h))
		}
	}
}

// WithRecordParams specifies which URL query parameters to record as span attributes.
// Only parameters in this list will be recorded. This provides fine-grained control
// over which parameters are traced.
//
// If this option is not used, all query parameters are recorded by default
// (unless WithoutParams is used).
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithRecordParams("user_id", "request_id", "page"),
//	)
func WithRecordParams(params ...string) Option {
	return func(c *config) {
		if len(params) > 0 {
			c.recordParamsList = make([]string, 0, len(params))
			c.recordParamsList = append(c.recordParamsList, params...)
			c.recordParams = true
		}
	}
}

// WithExcludeParams specifies which URL query parameters to exclude from tracing.
// This is useful for blacklisting sensitive parameters while recording all others.
//
// Parameters in this list will never be recorded, even if WithRecordParams includes them.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithExcludeParams("password", "token", "api_key", "secret"),
//	)
func WithExcludeParams(params ...string) Option {
	return func(c *config) {
		if len(params) > 0 {
			if c.excludeParams == nil {
				c.excludeParams = make(map[string]bool, len(params))
			}
			for _, param := range params {
				c.excludeParams[param] = true
			}
		}
	}
}

// WithoutParams disables recording URL query parameters as span attributes.
// By default, all query parameters are recorded. Use this option if parameters
// may contain sensitive data.
//
// Example:
//
//	mw, err := httpmw.Middleware(tracer,
//	    httpmw.WithoutParams(),
//	)
func WithoutParams() Option {
	return func(c *config) {
		c.recordParams = false
	}
}
