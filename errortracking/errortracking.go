// Package errortracking configures the Sentry SDK from the environment.
//
// Setup is skipped, not failed, when SENTRY_DSN is absent.
package errortracking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/watonomous/watcloud-utils-go/env"
	"github.com/watonomous/watcloud-utils-go/logger"
	"github.com/watonomous/watcloud-utils-go/sampling"
)

// UnknownEnvironment is reported when DEPLOYMENT_ENVIRONMENT is empty.
const UnknownEnvironment = "unknown"

// Config holds the SDK settings that do not come from the environment.
type Config struct {
	// TracesSampleRate applies to requests without a parent decision.
	TracesSampleRate float64
	// BreadcrumbLevel is the minimum level recorded as a breadcrumb.
	BreadcrumbLevel slog.Level
	// EventLevel is the minimum level sent as an event.
	EventLevel slog.Level
	// Debug routes SDK debug output through the "sentry" logger.
	Debug bool
}

// SetDefaults sets reasonable defaults for the configuration
func (c *Config) SetDefaults() {
	if c.TracesSampleRate == 0 {
		c.TracesSampleRate = 1.0
	}
	if c.EventLevel == 0 {
		c.EventLevel = slog.LevelError
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("TracesSampleRate must be between 0.0 and 1.0")
	}
	if c.EventLevel < c.BreadcrumbLevel {
		return fmt.Errorf("EventLevel must not be below BreadcrumbLevel")
	}
	return nil
}

// ClientOptions builds the SDK options for snap. Release falls back to the
// build info, environment to "unknown".
func ClientOptions(snap env.Snapshot, cfg Config) sentry.ClientOptions {
	environment := snap.DeploymentEnvironment
	if environment == "" {
		environment = UnknownEnvironment
	}

	release := snap.SentryRelease
	if release == "" {
		release = snap.BuildInfo.Release()
	}

	return sentry.ClientOptions{
		Dsn:           snap.SentryDSN,
		Environment:   environment,
		Release:       release,
		EnableTracing: true,
		TracesSampler: TracesSampler(cfg.TracesSampleRate),
		Debug:         cfg.Debug,
	}
}

// Init sets up the global Sentry hub. It returns false without error when no
// DSN is configured.
func Init(snap env.Snapshot, cfg Config, log *logger.Logger) (bool, error) {
	if log == nil {
		log = logger.Global()
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("invalid sentry config: %w", err)
	}

	if snap.SentryDSN == "" {
		log.Warn("SENTRY_DSN not found. Skipping Sentry setup.")
		return false, nil
	}

	opts := ClientOptions(snap, cfg)

	log.Info("Setting up Sentry",
		"dsn", opts.Dsn,
		"environment", opts.Environment,
		"release", opts.Release,
	)
	log.Info("Sentry SDK version", "version", SDKVersion())

	if cfg.Debug {
		opts.DebugWriter = log.StdLogger("sentry", logger.LevelDebug).Writer()
	}

	if err := sentry.Init(opts); err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return true, nil
}

// SDKVersion returns the sentry-go version.
func SDKVersion() string {
	return sentry.SDKVersion
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// TracesSampler returns a sampler that inherits the parent decision, drops
// health checks and samples everything else at rate.
func TracesSampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		return sampling.Rate(samplingContext(ctx), rate)
	}
}

func samplingContext(ctx sentry.SamplingContext) sampling.Context {
	var c sampling.Context

	// A local parent wins. Otherwise a decision continued from an incoming
	// sentry-trace header has already been stored on the span.
	switch {
	case ctx.Parent != nil && ctx.Parent.Sampled != sentry.SampledUndefined:
		c.Parent = sampling.FromBool(ctx.Parent.Sampled.Bool())
	case ctx.Span != nil && ctx.Span.Sampled != sentry.SampledUndefined:
		c.Parent = sampling.FromBool(ctx.Span.Sampled.Bool())
	}

	if ctx.Span != nil {
		c.Path = sampling.PathFromName(ctx.Span.Name)
	}

	return c
}
