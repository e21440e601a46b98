// Package telemetry wires OpenTelemetry tracing for inbound requests and
// outbound backend calls.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"storefront/internal/config"
	"storefront/internal/middleware"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Exporters accepted by TracingConfig.Exporter
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const defaultOTLPEndpoint = "localhost:4317"

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

// Setup installs the global tracer provider and W3C propagators. With the
// none exporter only propagation is enabled.
func Setup(ctx context.Context, cfg config.TracingConfig, logger *zap.Logger) (ShutdownFunc, error) {
	return setup(ctx, cfg, os.Stdout, logger)
}

func setup(ctx context.Context, cfg config.TracingConfig, stdout io.Writer, logger *zap.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch cfg.Exporter {
	case "", ExporterNone:
		logger.Info("Tracing disabled")
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdout))
	case ExporterOTLP:
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("Tracing enabled",
		zap.String("exporter", cfg.Exporter),
		zap.String("service", cfg.ServiceName),
	)
	return tp.Shutdown, nil
}

// Middleware traces every inbound request except health checks. Spans are
// named after the method and path.
func Middleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return "HTTP " + r.Method + " " + r.URL.Path
			}),
		)
	}
}

// SessionAttributes tags the active span with the browser session and, once
// known, the signed in user
func SessionAttributes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		if id, ok := middleware.GetSessionID(r.Context()); ok {
			span.SetAttributes(attribute.String("session.id", id))
		}
		if sess, ok := middleware.GetSession(r.Context()); ok {
			if user := sess.User(); user != nil {
				span.SetAttributes(
					attribute.String("enduser.id", user.ID),
					attribute.String("enduser.role", string(user.Role)),
				)
			}
		}
		next.ServeHTTP(w, r)
	})
}
