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

package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultGuardTimeout bounds the flush performed by Guard.Release when no
// timeout is configured.
const DefaultGuardTimeout = 5 * time.Second

// Guard ties the tracer's flush-and-shutdown to a scope, typically main:
//
//	guard := tracer.AcquireGuard()
//	defer guard.Release()
//
// Release flushes pending spans and shuts the provider down, bounded by the
// guard's timeout. Release is idempotent; every call returns the result of
// the first. Multiple guards may be acquired from one tracer: the underlying
// flush and shutdown still run exactly once, on whichever Release gets there
// first, and the other guards release without error.
type Guard struct {
	tracer  *Tracer
	timeout time.Duration
	once    sync.Once
	err     error
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithFlushTimeout bounds the flush performed on Release.
// Non-positive values fall back to DefaultGuardTimeout.
func WithFlushTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// AcquireGuard returns a Guard whose Release flushes and shuts down this
// tracer. Acquiring never blocks and never fails.
func (t *Tracer) AcquireGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		tracer:  t,
		timeout: DefaultGuardTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Release flushes pending spans and shuts down the tracer provider, bounded
// by the guard's timeout. A timeout is reported as a non-fatal error value;
// the provider shutdown still proceeds and process exit is never blocked
// beyond the bound.
func (g *Guard) Release() error {
	g.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := g.tracer.ForceFlush(ctx); err != nil {
			g.tracer.emitError("Flush on guard release failed", "error", err)
			g.err = fmt.Errorf("flush on release: %w", err)
		}

		// Shutdown is once-guarded on the tracer, so guards from the same
		// tracer race a single shutdown and observe the same result.
		if err := g.tracer.Shutdown(ctx); err != nil && g.err == nil {
			g.err = err
		}
	})

	return g.err
}
