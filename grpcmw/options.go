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
	"strings"

	"google.golang.org/grpc/codes"
)

// MethodFilter decides whether an RPC is traced, given its full method name
// ("/package.Service/Method"). Returning false skips span creation entirely.
type MethodFilter func(fullMethod string) bool

// Option configures the gRPC interceptors.
type Option func(*config)

// config holds configuration shared by the server and client interceptors.
type config struct {
	excludeMethods  map[string]bool
	excludeServices []string
	filter          MethodFilter
}

func newConfig() *config {
	return &config{
		excludeMethods: make(map[string]bool),
	}
}

// traced reports whether the RPC passes all configured filters.
func (c *config) traced(fullMethod string) bool {
	if c.excludeMethods[fullMethod] {
		return false
	}
	for _, svc := range c.excludeServices {
		if strings.HasPrefix(fullMethod, "/"+svc+"/") {
			return false
		}
	}
	if c.filter != nil && !c.filter(fullMethod) {
		return false
	}
	return true
}

// WithExcludeMethods excludes specific RPCs from tracing by full method name.
//
// Example:
//
//	grpcmw.UnaryServerInterceptor(tracer,
//	    grpcmw.WithExcludeMethods("/grpc.health.v1.Health/Check"),
//	)
func WithExcludeMethods(methods ...string) Option {
	return func(c *config) {
		for _, m := range methods {
			c.excludeMethods[m] = true
		}
	}
}

// WithExcludeServices excludes all RPCs of the named services from tracing.
// Service names are fully qualified ("grpc.health.v1.Health").
func WithExcludeServices(services ...string) Option {
	return func(c *config) {
		c.excludeServices = append(c.excludeServices, services...)
	}
}

// WithMethodFilter sets a custom predicate deciding whether an RPC is traced.
// It is evaluated after the method and service exclusions.
func WithMethodFilter(filter MethodFilter) Option {
	return func(c *config) {
		c.filter = filter
	}
}

// serverStatusIsError reports whether a server span should be marked failed
// for the given status code. Codes that signal client-side problems
// (NotFound, InvalidArgument, PermissionDenied, ...) are not server
// failures; only codes indicating the server misbehaved or could not serve
// are.
func serverStatusIsError(code codes.Code) bool {
	switch code {
	case codes.Unknown,
		codes.DeadlineExceeded,
		codes.Unimplemented,
		codes.Internal,
		codes.Unavailable,
		codes.DataLoss:
		return true
	default:
		return false
	}
}

// clientStatusIsError reports whether a client span should be marked failed.
// Any non-OK outcome is a failure from the caller's perspective.
func clientStatusIsError(code codes.Code) bool {
	return code != codes.OK
}

// serviceAndMethod splits "/package.Service/Method" into its parts.
func serviceAndMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
