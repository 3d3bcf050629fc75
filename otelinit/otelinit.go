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

// Package otelinit builds a tracer from the standard OTEL_* environment
// variables, for services that configure observability through the
// environment rather than code.
//
//	tracer, guard, err := otelinit.Init()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer guard.Release()
//
// Recognized variables: OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION,
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_PROTOCOL,
// OTEL_EXPORTER_OTLP_INSECURE, OTEL_TRACES_SAMPLER_ARG, OTEL_PROPAGATORS,
// and OTEL_SDK_DISABLED.
package otelinit

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/otelware/tracing"
)

// envPrefix is the envconfig prefix; fields resolve as OTEL_<name>.
const envPrefix = "otel"

// Config mirrors the OTEL_* environment variables.
type Config struct {
	ServiceName      string   `envconfig:"SERVICE_NAME" default:"unknown-service"`
	ServiceVersion   string   `envconfig:"SERVICE_VERSION" default:"0.0.0"`
	ExporterEndpoint string   `envconfig:"EXPORTER_OTLP_ENDPOINT"`
	ExporterProtocol string   `envconfig:"EXPORTER_OTLP_PROTOCOL" default:"grpc"`
	ExporterInsecure bool     `envconfig:"EXPORTER_OTLP_INSECURE" default:"false"`
	SampleRate       float64  `envconfig:"TRACES_SAMPLER_ARG" default:"1.0"`
	Propagators      []string `envconfig:"PROPAGATORS" default:"tracecontext,baggage"`
	SDKDisabled      bool     `envconfig:"SDK_DISABLED" default:"false"`
}

// Load reads the OTEL_* environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read OTEL environment: %w", err)
	}

	return cfg, nil
}

// Options converts the Config into tracer options.
func (c Config) Options() ([]tracing.Option, error) {
	propagator, err := tracing.NewPropagator(c.Propagators...)
	if err != nil {
		return nil, err
	}

	opts := []tracing.Option{
		tracing.WithServiceName(c.ServiceName),
		tracing.WithServiceVersion(c.ServiceVersion),
		tracing.WithSampleRate(c.SampleRate),
		tracing.WithPropagator(propagator),
	}

	switch {
	case c.SDKDisabled:
		opts = append(opts, tracing.WithNoop())
	case strings.HasPrefix(c.ExporterProtocol, "http"):
		opts = append(opts, tracing.WithOTLPHTTP(c.ExporterEndpoint))
	case c.ExporterProtocol == "grpc":
		otlpOpts := []tracing.OTLPOption{}
		if c.ExporterInsecure {
			otlpOpts = append(otlpOpts, tracing.OTLPInsecure())
		}
		opts = append(opts, tracing.WithOTLP(c.ExporterEndpoint, otlpOpts...))
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (supported: grpc, http/protobuf)", c.ExporterProtocol)
	}

	return opts, nil
}

// Init constructs a tracer from the environment and acquires its shutdown
// guard. Additional options are applied after the environment-derived ones,
// so code-level configuration wins over the environment.
func Init(extra ...tracing.Option) (*tracing.Tracer, *tracing.Guard, error) {
	cfg, err := Load()
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}

	tracer, err := tracing.New(append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}

	return tracer, tracer.AcquireGuard(), nil
}
