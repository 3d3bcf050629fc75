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

// Package collectortest provides an in-process fake OTLP gRPC collector.
// It accepts trace exports on a loopback listener and keeps the received
// spans in memory, so integration tests can assert on what a real OTLP
// exporter actually sent.
package collectortest

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Collector is a fake OTLP trace collector backed by an in-memory store.
// All methods are safe for concurrent use.
type Collector struct {
	coltracepb.UnimplementedTraceServiceServer

	mu    sync.Mutex
	spans []*tracepb.Span

	server *grpc.Server
	addr   string
}

// New creates a Collector. Call Start to begin listening.
func New() *Collector {
	return &Collector{}
}

// Start begins serving OTLP trace exports on a random loopback port.
// The endpoint is available via Addr once Start returns.
func (c *Collector) Start() error {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	c.server = grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(c.server, c)
	c.addr = lis.Addr().String()

	go func() {
		// Serve returns on Stop; listener errors after that are expected.
		_ = c.server.Serve(lis)
	}()

	return nil
}

// Stop shuts the collector down gracefully.
func (c *Collector) Stop() {
	if c.server != nil {
		c.server.GracefulStop()
	}
}

// Addr returns the "host:port" endpoint the collector listens on.
// Valid after Start.
func (c *Collector) Addr() string {
	return c.addr
}

// Export implements the OTLP trace service. Received spans are cloned into
// the in-memory store.
func (c *Collector) Export(_ context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				c.spans = append(c.spans, proto.Clone(span).(*tracepb.Span))
			}
		}
	}

	return &coltracepb.ExportTraceServiceResponse{}, nil
}

// Spans returns a snapshot of all spans received so far.
func (c *Collector) Spans() []*tracepb.Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*tracepb.Span, len(c.spans))
	copy(out, c.spans)

	return out
}

// SpanNames returns the names of all received spans, in arrival order.
func (c *Collector) SpanNames() []string {
	spans := c.Spans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.GetName())
	}

	return names
}

// Reset discards all received spans.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = nil
}

// WaitForSpans polls until at least n spans arrived or the timeout expires.
// Returns the spans seen at that point.
func (c *Collector) WaitForSpans(n int, timeout time.Duration) []*tracepb.Span {
	deadline := time.Now().Add(timeout)
	for {
		spans := c.Spans()
		if len(spans) >= n || time.Now().After(deadline) {
			return spans
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// StartTesting starts a Collector for the duration of a test.
// The collector is stopped via t.Cleanup.
//
// Example:
//
//	collector := collectortest.StartTesting(t)
//	tracer := tracing.MustNew(
//	    tracing.WithOTLP(collector.Addr(), tracing.OTLPInsecure()),
//	)
func StartTesting(t testing.TB) *Collector {
	t.Helper()

	c := New()
	if err := c.Start(); err != nil {
		t.Fatalf("collectortest: failed to start collector: %v", err)
	}
	t.Cleanup(c.Stop)

	return c
}
