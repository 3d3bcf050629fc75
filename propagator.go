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
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// PropagatorsEnvVar is the environment variable listing the propagators to
// install, as a comma-separated list (e.g. "tracecontext,baggage").
const PropagatorsEnvVar = "OTEL_PROPAGATORS"

// defaultPropagator returns the W3C Trace Context + Baggage composite used
// when no propagator is configured explicitly.
func defaultPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// NewPropagator builds a composite TextMapPropagator from propagator names.
//
// Supported names:
//   - "tracecontext": W3C traceparent/tracestate headers
//   - "baggage": W3C baggage header
//   - "none": no propagation (ignored when combined with others)
//
// With no names, the default "tracecontext,baggage" composite is returned.
// Unknown names are an error; a malformed incoming header at runtime is not
// (extraction degrades to an empty context and a fresh trace is started).
func NewPropagator(names ...string) (propagation.TextMapPropagator, error) {
	if len(names) == 0 {
		return defaultPropagator(), nil
	}

	var propagators []propagation.TextMapPropagator
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "tracecontext":
			propagators = append(propagators, propagation.TraceContext{})
		case "baggage":
			propagators = append(propagators, propagation.Baggage{})
		case "none", "":
			// explicit opt-out, contributes nothing
		default:
			return nil, fmt.Errorf("unsupported propagator %q (supported: tracecontext, baggage, none)", name)
		}
	}

	if len(propagators) == 0 {
		// "none" alone yields a propagator that reads and writes nothing.
		return propagation.NewCompositeTextMapPropagator(), nil
	}

	return propagation.NewCompositeTextMapPropagator(propagators...), nil
}

// NewPropagatorFromEnv builds a propagator from the OTEL_PROPAGATORS
// environment variable. An unset or empty variable yields the default
// "tracecontext,baggage" composite.
func NewPropagatorFromEnv() (propagation.TextMapPropagator, error) {
	value := strings.TrimSpace(os.Getenv(PropagatorsEnvVar))
	if value == "" {
		return defaultPropagator(), nil
	}
	return NewPropagator(strings.Split(value, ",")...)
}
