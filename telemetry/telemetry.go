// Package telemetry sets up OpenTelemetry tracing with the health-aware
// sampler and, on Google Cloud, Cloud Trace export.
package telemetry

import (
	"context"
	"fmt"
	"time"

	gcptrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/watonomous/watcloud-utils-go/env"
	"github.com/watonomous/watcloud-utils-go/logger"
)

// Config holds telemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// ProjectID enables Cloud Trace export and GCP resource detection.
	ProjectID  string
	TraceRatio float64

	// Exporter overrides the Cloud Trace exporter.
	Exporter sdktrace.SpanExporter

	ExportTimeout time.Duration
	BatchTimeout  time.Duration
	MaxBatchSize  int
	MaxQueueSize  int

	Attributes map[string]string
}

// ConfigFromSnapshot derives service identity from the build info and the
// deployment environment.
func ConfigFromSnapshot(snap env.Snapshot) Config {
	return Config{
		ServiceName:    snap.BuildInfo.ImageTitle(),
		ServiceVersion: snap.BuildInfo.ImageVersion(),
		Environment:    snap.DeploymentEnvironment,
		ProjectID:      snap.GoogleCloudProject,
		Attributes: map[string]string{
			"vcs.revision": snap.BuildInfo.ImageRevision(),
		},
	}
}

// SetDefaults sets reasonable defaults for the configuration
func (c *Config) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "unknown_image"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "unknown_version"
	}
	if c.Environment == "" {
		c.Environment = "unknown"
	}
	if c.TraceRatio == 0 {
		c.TraceRatio = 1.0
	}
	if c.ExportTimeout == 0 {
		c.ExportTimeout = 30 * time.Second
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 512
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = 2048
	}
}

// Validate validates telemetry configuration
func (c *Config) Validate() error {
	if c.TraceRatio < 0 || c.TraceRatio > 1 {
		return fmt.Errorf("TraceRatio must be between 0.0 and 1.0")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MaxBatchSize must be positive")
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MaxQueueSize must be positive")
	}
	return nil
}

// Provider owns the tracer provider installed as the otel global.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	config         Config
	tracer         trace.Tracer
	exporting      bool
}

// NewProvider builds and installs the tracer provider. Without a project ID
// or exporter spans are sampled and correlated in logs but not exported.
func NewProvider(ctx context.Context, config Config, log *logger.Logger) (*Provider, error) {
	if log == nil {
		log = logger.Global()
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	otel.SetLogger(log.Logr("otel"))
	otelLog := log.Named("otel")
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		otelLog.Warn("OpenTelemetry error", "error", err)
	}))

	p := &Provider{config: config}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(p.createResource(ctx, otelLog)),
		sdktrace.WithSampler(HealthAwareSampler(config.TraceRatio)),
	}

	exporter := config.Exporter
	if exporter == nil && config.ProjectID != "" {
		var err error
		exporter, err = gcptrace.New(
			gcptrace.WithProjectID(config.ProjectID),
			gcptrace.WithTimeout(config.ExportTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Cloud Trace exporter: %w", err)
		}
	}
	if exporter != nil {
		p.exporting = true
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxBatchSize),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracer = p.tracerProvider.Tracer(config.ServiceName)

	log.Info("Tracing configured",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"trace_ratio", config.TraceRatio,
		"exporting", p.exporting,
	)

	return p, nil
}

// createResource merges service attributes with the detected GCP resource.
func (p *Provider) createResource(ctx context.Context, log *logger.Logger) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(p.config.ServiceName),
		semconv.ServiceVersion(p.config.ServiceVersion),
		semconv.DeploymentEnvironment(p.config.Environment),
	}
	for k, v := range p.config.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	base := resource.NewWithAttributes(semconv.SchemaURL, attrs...)
	if p.config.ProjectID == "" {
		return base
	}

	gcpRes, err := gcp.NewDetector().Detect(ctx)
	if err != nil {
		log.Debug("GCP resource detection failed", "error", err)
		return base
	}

	merged, err := resource.Merge(base, gcpRes)
	if err != nil {
		log.Debug("Failed to merge GCP resource", "error", err)
		return base
	}
	return merged
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tracerProvider.Shutdown(ctx)
}

// ForceFlush exports all ended spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tracerProvider.ForceFlush(ctx)
}

// Tracer returns the service tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// TracerProvider returns the underlying tracer provider
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// Exporting reports whether spans leave the process.
func (p *Provider) Exporting() bool {
	return p.exporting
}

// Config returns the effective configuration.
func (p *Provider) Config() Config {
	return p.config
}
