package telemetry

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/watonomous/watcloud-utils-go/env"
	"github.com/watonomous/watcloud-utils-go/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.Config{Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func remoteParent(sampled bool) context.Context {
	flags := trace.TraceFlags(0)
	if sampled {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: flags,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(context.Background(), sc)
}

func TestHealthAwareSampler(t *testing.T) {
	traceID := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	tests := []struct {
		name   string
		rate   float64
		params sdktrace.SamplingParameters
		want   sdktrace.SamplingDecision
	}{
		{
			name: "sampled parent is inherited on health path",
			rate: 0,
			params: sdktrace.SamplingParameters{
				ParentContext: remoteParent(true),
				TraceID:       traceID,
				Name:          "GET /health",
			},
			want: sdktrace.RecordAndSample,
		},
		{
			name: "unsampled parent is inherited",
			rate: 1,
			params: sdktrace.SamplingParameters{
				ParentContext: remoteParent(false),
				TraceID:       traceID,
				Name:          "GET /api",
			},
			want: sdktrace.Drop,
		},
		{
			name: "health path from url.path attribute",
			rate: 1,
			params: sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       traceID,
				Name:          "watcloud",
				Attributes:    []attribute.KeyValue{attribute.String("url.path", "/health")},
			},
			want: sdktrace.Drop,
		},
		{
			name: "health path from http.target attribute",
			rate: 1,
			params: sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       traceID,
				Attributes:    []attribute.KeyValue{attribute.String("http.target", "/health?verbose=1")},
			},
			want: sdktrace.Drop,
		},
		{
			name: "health path from span name",
			rate: 1,
			params: sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       traceID,
				Name:          "GET /health",
			},
			want: sdktrace.Drop,
		},
		{
			name: "everything else at full rate",
			rate: 1,
			params: sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       traceID,
				Name:          "GET /build-info",
			},
			want: sdktrace.RecordAndSample,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthAwareSampler(tt.rate).ShouldSample(tt.params)
			if got.Decision != tt.want {
				t.Errorf("ShouldSample() = %v, want %v", got.Decision, tt.want)
			}
		})
	}
}

func TestSamplerDescription(t *testing.T) {
	if got := HealthAwareSampler(0.5).Description(); got != "HealthAwareSampler{0.5}" {
		t.Errorf("Description() = %q", got)
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	config := Config{}
	config.SetDefaults()

	if config.ServiceName != "unknown_image" {
		t.Errorf("ServiceName = %v", config.ServiceName)
	}
	if config.Environment != "unknown" {
		t.Errorf("Environment = %v", config.Environment)
	}
	if config.TraceRatio != 1.0 {
		t.Errorf("TraceRatio = %v, want 1.0", config.TraceRatio)
	}
	if config.MaxBatchSize != 512 || config.MaxQueueSize != 2048 {
		t.Errorf("unexpected batch defaults %d/%d", config.MaxBatchSize, config.MaxQueueSize)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: Config{}},
		{name: "ratio too high", config: Config{TraceRatio: 1.5}, wantErr: true},
		{name: "negative ratio", config: Config{TraceRatio: -0.1}, wantErr: true},
		{name: "negative batch", config: Config{MaxBatchSize: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			config.SetDefaults()
			if err := config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromSnapshot(t *testing.T) {
	snap := env.Snapshot{
		DeploymentEnvironment: "prod",
		GoogleCloudProject:    "watcloud",
		BuildInfo: env.NewBuildInfo(map[string]any{
			"labels": map[string]any{
				env.LabelImageTitle:   "repo-ingestion",
				env.LabelImageVersion: "main",
			},
		}),
	}

	config := ConfigFromSnapshot(snap)

	if config.ServiceName != "repo-ingestion" || config.ServiceVersion != "main" {
		t.Errorf("unexpected service identity %q %q", config.ServiceName, config.ServiceVersion)
	}
	if config.Environment != "prod" || config.ProjectID != "watcloud" {
		t.Errorf("unexpected environment %q project %q", config.Environment, config.ProjectID)
	}
	if config.Attributes["vcs.revision"] != "unknown_rev" {
		t.Errorf("vcs.revision = %q", config.Attributes["vcs.revision"])
	}
}

func TestNewProviderSkipsHealthSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	p, err := NewProvider(ctx, Config{ServiceName: "test", Exporter: exporter}, testLogger(t))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Shutdown(ctx)

	if !p.Exporting() {
		t.Error("provider with an exporter should report exporting")
	}

	_, health := p.Tracer().Start(ctx, "GET /health")
	health.End()

	spanCtx, api := StartSpan(ctx, "GET /api")
	if TraceID(spanCtx) == "" {
		t.Error("TraceID() should be set inside a sampled span")
	}
	RecordError(api, context.Canceled, "cancelled")
	api.End()

	if err := p.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "GET /api" {
		t.Errorf("exported span %q, want GET /api", spans[0].Name)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected the recorded error event, got %v", spans[0].Events)
	}
}

func TestNewProviderWithoutExporter(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Config{}, testLogger(t))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer p.Shutdown(ctx)

	if p.Exporting() {
		t.Error("provider without project or exporter should not export")
	}
	if p.TracerProvider() == nil {
		t.Error("TracerProvider() should not be nil")
	}
}

func TestTraceIDWithoutSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
}
