// Package otel configures OpenTelemetry tracing for the asset API from the
// standard OTEL_* environment variables.
package otel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultServiceName is reported when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "assetapi"

// Settings is the subset of the OTEL_* environment the service honours.
type Settings struct {
	Disabled    bool
	ServiceName string
	// Protocol is "grpc" or "http/protobuf".
	Protocol   string
	Endpoint   string
	Sampler    string
	SamplerArg string
}

// SettingsFromEnv reads Settings with the SDK's documented defaults.
func SettingsFromEnv() Settings {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return Settings{
		Disabled:    os.Getenv("OTEL_SDK_DISABLED") == "true",
		ServiceName: getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		Protocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Endpoint:    endpoint,
		Sampler:     getEnv("OTEL_TRACES_SAMPLER", "parentbased_always_on"),
		SamplerArg:  getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0"),
	}
}

// Init installs a tracer provider exporting over OTLP and returns its shutdown
// function. Exporter setup errors leave the no-op provider in place instead of
// failing startup. The W3C propagators are installed in every case.
func Init(ctx context.Context, s Settings, log *slog.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = slog.Default()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	noop := func(context.Context) error { return nil }

	if s.Disabled {
		log.Info("tracing_configured", slog.Bool("tracing_enabled", false))
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, s.Protocol)
	if err != nil {
		log.Error("tracing_init_failed", slog.String("otlp_protocol", s.Protocol), slog.Any("error", err))
		return noop, nil
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(s.sampler()),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing_configured",
		slog.Bool("tracing_enabled", true),
		slog.String("service", s.ServiceName),
		slog.String("otlp_protocol", s.Protocol),
		slog.String("otlp_endpoint", s.Endpoint),
		slog.String("sampler", s.Sampler),
		slog.String("sampler_arg", s.SamplerArg),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, protocol string) (*otlptrace.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func (s Settings) sampler() trace.Sampler {
	ratio := parseRatio(s.SamplerArg)
	switch s.Sampler {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio)
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// parseRatio reads a sampling ratio, falling back to 1 for empty or invalid input.
func parseRatio(arg string) float64 {
	r, err := strconv.ParseFloat(arg, 64)
	if err != nil || r < 0 || r > 1 {
		return 1.0
	}
	return r
}
