// Package otelx installs the process-wide tracer provider and propagators.
package otelx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
)

type Options struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Sample      float64
	Service     string
	Component   string
	Version     string
	Environment string
	// Logger receives exporter and SDK errors. Nil discards them.
	Logger log.Logger
}

// ServiceName is the resource service.name for o.
func (o Options) ServiceName() string {
	if o.Component == "" {
		return o.Service
	}
	return o.Service + "." + o.Component
}

func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	)
}

// Init sets the global tracer provider. Disabled tracing still installs an
// SDK provider with no exporter so spans, trace ids and log correlation keep
// working locally. The returned func flushes and shuts the provider down.
func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	L := o.Logger
	if L == nil {
		L = log.Nop()
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		L.Error(context.Background(), err, "opentelemetry error")
	}))

	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		otel.SetTextMapPropagator(propagator())
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(o.ServiceName() + "/" + o.Version)),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	// exporter creation blocks without a deadline; the collector is local
	dialCtx, dialCancel := context.WithTimeout(ctx, 3*time.Second)
	defer dialCancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, apperr.Wrapf(err, "create otlp exporter for %s", o.Endpoint)
	}

	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(o.ServiceName()),
			semconv.ServiceVersionKey.String(o.Version),
		),
	}
	if o.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentKey.String(o.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		// partial resources are still usable
		L.Warn(ctx, "otel resource detection incomplete", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(o.Sample),
		)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator())

	L.Info(ctx, "tracing enabled", "otlp_endpoint", o.Endpoint, "sample", o.Sample, "service", o.ServiceName())
	return tp.Shutdown, nil
}
