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

// Package httpmw instruments net/http servers and clients with
// OpenTelemetry spans and W3C trace-context propagation.
//
// Server side, [Middleware] opens a SERVER span per request and
// [ResponseInjector] reflects the trace context back in the response
// headers:
//
//	mw := httpmw.MustMiddleware(tracer,
//	    httpmw.WithExcludePaths("/health"),
//	)
//	handler := mw(httpmw.ResponseInjector(tracer)(mux))
//
// Client side, [Transport] wraps an http.RoundTripper:
//
//	client := &http.Client{Transport: httpmw.NewTransport(tracer)}
//
// Both directions share the tracer's propagator, so a service using the two
// together produces connected traces across process boundaries.
package httpmw
