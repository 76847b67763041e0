package observability

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("restclient")
	if cfg.ServiceName != "restclient" {
		t.Errorf("expected service name 'restclient', got %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("restclient")
	if cfg.ServiceName != "restclient" {
		t.Errorf("expected service name 'restclient', got %q", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected 15s interval, got %s", cfg.Interval)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestStartSpanAndInject(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	Install(tp)

	ctx, span := StartSpan(context.Background(), SpanHTTPRequest)
	h := http.Header{}
	InjectHeaders(ctx, h)
	span.End()

	if h.Get("traceparent") == "" {
		t.Error("expected traceparent header to be injected")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanHTTPRequest {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].SpanKind != trace.SpanKindClient {
		t.Errorf("span kind = %v", spans[0].SpanKind)
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "api.example.com", "GET", 200, time.Millisecond)
	m.RecordError(ctx, "not_found", "logic")
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "api.example.com", "POST", 201, 5*time.Millisecond)
	m.RecordError(ctx, "server", "runtime")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	for _, want := range []string{
		"rest.client.request.total",
		"rest.client.request.duration",
		"rest.client.request.active",
		"rest.client.error.total",
	} {
		if !names[want] {
			t.Errorf("metric %q not collected", want)
		}
	}
}
