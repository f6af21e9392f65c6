package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/metric"
	mnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tnoop "go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "seqledger"

type (
	/*
		Observability bundles the tracer, meter and logger providers handed
		to the store components. Consumer packages declare the subset they
		need as a local interface.
	*/
	Observability struct {
		mp       metric.MeterProvider
		tp       trace.TracerProvider
		log      *slog.Logger
		promReg  *prometheus.Registry
		shutdown []func(context.Context) error
	}
)

/*
NOPObservability creates an implementation where everything is no-op.
Use it when it absolutely doesn't make sense to create any logs, traces
or metrics.
*/
func NOPObservability() *Observability {
	return &Observability{
		mp:  mnoop.NewMeterProvider(),
		tp:  tnoop.NewTracerProvider(),
		log: slog.New(nopHandler{}),
	}
}

/*
New creates an Observability implementation with the given exporters.
Supported metrics exporters: "" (none) and "prometheus". Supported trace
exporters: "" (none), "stdout", "otlptracehttp" and "zipkin".
*/
func New(metricsExp, tracesExp string, log *slog.Logger) (*Observability, error) {
	initPropagator()

	obs := &Observability{
		mp:  mnoop.NewMeterProvider(),
		tp:  tnoop.NewTracerProvider(),
		log: log,
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))

	switch metricsExp {
	case "":
	case "prometheus":
		obs.promReg = prometheus.NewRegistry()
		exp, err := promexporter.New(promexporter.WithRegisterer(obs.promReg))
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
		obs.mp = mp
		obs.shutdown = append(obs.shutdown, mp.Shutdown)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", metricsExp)
	}

	if tracesExp != "" {
		tp, err := newTraceProvider(tracesExp, res)
		if err != nil {
			return nil, fmt.Errorf("initializing trace provider: %w", err)
		}
		obs.tp = tp
		obs.shutdown = append(obs.shutdown, tp.Shutdown)
	}

	return obs, nil
}

func (o *Observability) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return o.tp.Tracer(name, options...)
}

func (o *Observability) TracerProvider() trace.TracerProvider { return o.tp }

func (o *Observability) Meter(name string, options ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, options...)
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	if o.promReg == nil {
		return nil
	}
	return o.promReg
}

// MetricsHandler returns the scrape endpoint handler, nil when the
// prometheus exporter is not enabled.
func (o *Observability) MetricsHandler() http.Handler {
	if o.promReg == nil {
		return nil
	}
	return promhttp.HandlerFor(o.promReg, promhttp.HandlerOpts{})
}

func (o *Observability) Shutdown() (err error) {
	for _, f := range o.shutdown {
		if e := f(context.Background()); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func newTraceProvider(exporter string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var err error
	var exp sdktrace.SpanExporter

	switch exporter {
	case "stdout":
		exp, err = stdouttrace.New()
	case "otlptracehttp":
		exp, err = otlptracehttp.New(context.Background(), otlptracehttp.WithInsecure())
	case "zipkin":
		exp, err = zipkin.New("")
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %q exporter: %w", exporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

var initPropagator = sync.OnceFunc(func() {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
})

// nopHandler discards everything logged to it.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
