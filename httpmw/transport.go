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
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelware/tracing"
)

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBaseTransport sets the underlying RoundTripper.
// Defaults to http.DefaultTransport.
func WithBaseTransport(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithTransportFilter sets a predicate deciding whether an outgoing request
// is traced. Untraced requests pass straight to the base transport.
func WithTransportFilter(filter Filter) TransportOption {
	return func(t *Transport) {
		t.filter = filter
	}
}

// WithTransportSpanNameFormatter overrides the client span name.
// The default is "METHOD host".
func WithTransportSpanNameFormatter(f func(*http.Request) string) TransportOption {
	return func(t *Transport) {
		t.spanNameFunc = f
	}
}

// WithTransportStatusClassifier overrides how response status codes map to
// client span status. The default treats any code >= 400 as a failure: on
// the client side a 404 means the call did not get what it asked for.
func WithTransportStatusClassifier(classifier StatusClassifier) TransportOption {
	return func(t *Transport) {
		if classifier != nil {
			t.classifier = classifier
		}
	}
}

// Transport is an http.RoundTripper that opens a CLIENT span for each
// outgoing request and injects the trace context into the request headers.
//
// The span stays open while the caller streams the response body and ends
// when the body is closed or read to EOF, so long downloads are attributed
// to the request that caused them. Transport errors end the span
// immediately.
//
// Example:
//
//	client := &http.Client{
//	    Transport: httpmw.NewTransport(tracer),
//	}
//	resp, err := client.Do(req.WithContext(ctx)) // ctx carries the parent span
type Transport struct {
	base         http.RoundTripper
	tracer       *tracing.Tracer
	filter       Filter
	spanNameFunc func(*http.Request) string
	classifier   StatusClassifier
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport creates a tracing Transport wrapping http.DefaultTransport
// unless WithBaseTransport overrides it.
func NewTransport(tracer *tracing.Tracer, opts ...TransportOption) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		tracer:     tracer,
		classifier: func(statusCode int) bool { return statusCode >= 400 },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.tracer.IsEnabled() {
		return t.base.RoundTrip(req)
	}
	if t.filter != nil && !t.filter(req) {
		return t.base.RoundTrip(req)
	}

	var spanName string
	if t.spanNameFunc != nil {
		spanName = t.spanNameFunc(req)
	} else {
		spanName = req.Method + " " + req.URL.Host
	}

	ctx, span := t.tracer.GetTracer().Start(req.Context(), spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("net.peer.name", req.URL.Hostname()),
	)

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(ctx)
	t.tracer.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if t.classifier(resp.StatusCode) {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	// The span ends when the caller finishes with the body, not here.
	resp.Body = &spanClosingBody{body: resp.Body, span: span}

	return resp, nil
}

// spanClosingBody ends the span once the response body is consumed (EOF),
// fails, or is closed, whichever comes first.
type spanClosingBody struct {
	body io.ReadCloser
	span trace.Span
	once sync.Once
}

func (b *spanClosingBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil {
		if err != io.EOF {
			b.span.RecordError(err)
		}
		b.end()
	}

	return n, err
}

func (b *spanClosingBody) Close() error {
	err := b.body.Close()
	b.end()

	return err
}

func (b *spanClosingBody) end() {
	b.once.Do(func() { b.span.End() })
}
