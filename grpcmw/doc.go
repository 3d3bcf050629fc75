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

// Package grpcmw instruments gRPC servers and clients with OpenTelemetry
// spans. Trace context crosses the wire as W3C traceparent/tracestate/
// baggage metadata entries.
//
// Server:
//
//	srv := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcmw.UnaryServerInterceptor(tracer)),
//	    grpc.StreamInterceptor(grpcmw.StreamServerInterceptor(tracer)),
//	)
//
// Client:
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithUnaryInterceptor(grpcmw.UnaryClientInterceptor(tracer)),
//	    grpc.WithStreamInterceptor(grpcmw.StreamClientInterceptor(tracer)),
//	)
//
// Status classification differs by side: server spans fail only on codes
// that indicate a server problem (Unknown, DeadlineExceeded, Unimplemented,
// Internal, Unavailable, DataLoss), while client spans fail on any non-OK
// code.
package grpcmw
