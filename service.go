package watcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"go.opentelemetry.io/otel/attribute"

	"github.com/watonomous/watcloud-utils-go/env"
	"github.com/watonomous/watcloud-utils-go/errortracking"
	"github.com/watonomous/watcloud-utils-go/logger"
	"github.com/watonomous/watcloud-utils-go/telemetry"
)

// Route paths of the built-in endpoints.
const (
	PathHealth      = "/health"
	PathBuildInfo   = "/build-info"
	PathRuntimeInfo = "/runtime-info"
	PathMetrics     = "/metrics"
)

// SentryFlushTimeout bounds how long Shutdown waits for buffered events.
const SentryFlushTimeout = 2 * time.Second

// HealthFunc is one readiness check. A non-nil error fails /health.
type HealthFunc func(ctx context.Context, s *Service) error

// Config holds the service configuration
type Config struct {
	// Name is the operation name of the HTTP spans. Defaults to the image
	// title from the build info.
	Name string

	// CORSAllowOrigins lists the allowed origins. Nil means ["*"] when
	// DEPLOYMENT_ENVIRONMENT is set and no CORS otherwise.
	CORSAllowOrigins []string

	ExposeMetrics      bool
	ExposeBuildInfo    bool
	ExposeHealth       bool
	HealthFuncs        []HealthFunc
	ExposeRuntimeInfo  bool
	InitialRuntimeInfo map[string]any

	EnableSentry bool
	Sentry       errortracking.Config

	EnableTracing bool
	// TraceSampleRate applies to both Sentry and OpenTelemetry unless
	// Sentry.TracesSampleRate is set.
	TraceSampleRate float64
	// Telemetry carries exporter and batching overrides. Service identity
	// and sample rate are always taken from the environment and
	// TraceSampleRate.
	Telemetry telemetry.Config

	Logger *logger.Logger
	Env    *env.Source
}

// DefaultConfig enables every endpoint and integration
func DefaultConfig() Config {
	return Config{
		ExposeMetrics:     true,
		ExposeBuildInfo:   true,
		ExposeHealth:      true,
		ExposeRuntimeInfo: true,
		EnableSentry:      true,
		EnableTracing:     true,
		TraceSampleRate:   1.0,
	}
}

// SetDefaults sets reasonable defaults for the configuration
func (c *Config) SetDefaults() {
	if c.Logger == nil {
		c.Logger = logger.Global()
	}
	if c.Env == nil {
		c.Env = env.New(c.Logger.Named("env").Slog())
	}
	if c.TraceSampleRate == 0 {
		c.TraceSampleRate = 1.0
	}
	if c.Sentry.TracesSampleRate == 0 {
		c.Sentry.TracesSampleRate = c.TraceSampleRate
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TraceSampleRate must be between 0.0 and 1.0")
	}
	return c.Sentry.Validate()
}

// Service is an HTTP router preloaded with the WATcloud endpoints and
// middleware. Callers add their own routes to it. Middleware is already
// installed, so further Use calls panic; wrap routes with With or Group.
type Service struct {
	chi.Router

	config      Config
	log         *logger.Logger
	snapshot    env.Snapshot
	runtimeInfo *RuntimeInfo
	metrics     *Metrics
	telemetry   *telemetry.Provider
	sentry      bool
}

// New builds the service. Environment variables are read once here.
func New(ctx context.Context, config Config) (*Service, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Service{
		Router:   chi.NewRouter(),
		config:   config,
		log:      config.Logger,
		snapshot: config.Env.Load(),
	}
	if config.Name == "" {
		s.config.Name = s.snapshot.BuildInfo.ImageTitle()
	}
	if config.ExposeRuntimeInfo {
		s.runtimeInfo = NewRuntimeInfo(config.InitialRuntimeInfo)
	}

	if config.EnableTracing {
		tc := config.Telemetry
		base := telemetry.ConfigFromSnapshot(s.snapshot)
		tc.ServiceName = base.ServiceName
		tc.ServiceVersion = base.ServiceVersion
		tc.Environment = base.Environment
		if tc.ProjectID == "" {
			tc.ProjectID = base.ProjectID
		}
		if tc.Attributes == nil {
			tc.Attributes = base.Attributes
		}
		tc.TraceRatio = config.TraceSampleRate

		provider, err := telemetry.NewProvider(ctx, tc, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		s.telemetry = provider
		s.Use(OTelHTTP(s.config.Name))
	}

	s.Use(RequestID(s.log))

	if config.ExposeMetrics {
		s.metrics = newMetrics()
		s.Use(s.metrics.Middleware)
	}

	s.Use(Logging(s.log), Recovery(s.log))

	if config.EnableSentry {
		if err := s.setUpSentry(); err != nil {
			return nil, err
		}
	}

	if origins := s.corsOrigins(); len(origins) > 0 {
		s.log.Warn("Adding CORS middleware. This should only be used for local development. Please handle CORS at the reverse proxy in production.",
			"allow_origins", origins)
		s.Use(CORS(origins))
	}

	s.mountEndpoints()

	s.log.InfoContext(ctx, "Service initialized",
		"name", s.config.Name,
		"environment", s.snapshot.DeploymentEnvironment,
		"sentry_enabled", s.sentry,
		"tracing_enabled", s.telemetry != nil,
	)

	return s, nil
}

func (s *Service) setUpSentry() error {
	hasDSN, err := errortracking.Init(s.snapshot, s.config.Sentry, s.log)
	if err != nil {
		return err
	}
	s.sentry = hasDSN

	if s.runtimeInfo != nil {
		s.runtimeInfo.Set("sentry_has_dsn", hasDSN)
		s.runtimeInfo.Set("sentry_sdk_version", errortracking.SDKVersion())
	}

	if hasDSN {
		cfg := s.config.Sentry
		cfg.SetDefaults()
		s.log.AddHandler(errortracking.LogHandler(cfg.BreadcrumbLevel, cfg.EventLevel))
		s.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	return nil
}

func (s *Service) corsOrigins() []string {
	if s.config.CORSAllowOrigins != nil {
		return s.config.CORSAllowOrigins
	}
	if s.snapshot.DeploymentEnvironment != "" {
		return []string{"*"}
	}
	return nil
}

func (s *Service) mountEndpoints() {
	if s.config.ExposeMetrics {
		s.Method(http.MethodGet, PathMetrics, s.metrics.Handler(s.log))
	}
	if s.config.ExposeBuildInfo {
		s.Get(PathBuildInfo, s.readBuildInfo)
	}
	if s.config.ExposeHealth {
		s.Get(PathHealth, s.readHealth)
	}
	if s.config.ExposeRuntimeInfo {
		s.Get(PathRuntimeInfo, s.readRuntimeInfo)
	}
}

func (s *Service) readBuildInfo(w http.ResponseWriter, r *http.Request) {
	raw := s.snapshot.BuildInfo.Raw
	if raw == nil {
		raw = map[string]any{}
	}
	render.JSON(w, r, raw)
}

func (s *Service) readHealth(w http.ResponseWriter, r *http.Request) {
	for i, check := range s.config.HealthFuncs {
		ctx, span := telemetry.StartSpan(r.Context(), "health.check",
			attribute.Int("health.check.index", i))
		err := check(ctx, s)
		if err != nil {
			telemetry.RecordError(span, err, "health check failed")
		}
		span.End()

		if err != nil {
			s.log.WarnContext(ctx, "Health check failed", "index", i, "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "error", "error": err.Error()})
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Service) readRuntimeInfo(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.runtimeInfo.Snapshot())
}

// RuntimeInfo returns the runtime info, or nil when it is not exposed.
func (s *Service) RuntimeInfo() *RuntimeInfo {
	return s.runtimeInfo
}

// Snapshot returns the environment read at construction.
func (s *Service) Snapshot() env.Snapshot {
	return s.snapshot
}

// Metrics returns the metrics registry owner, or nil when metrics are off.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Telemetry returns the tracer provider, or nil when tracing is off.
func (s *Service) Telemetry() *telemetry.Provider {
	return s.telemetry
}

// Logger returns the service logger.
func (s *Service) Logger() *logger.Logger {
	return s.log
}

// HTTPServer returns a server for the service whose error log goes through
// the "http.server" logger.
func (s *Service) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.log.StdLogger("http.server", logger.LevelError),
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	srv := s.HTTPServer(addr)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if serr := s.Shutdown(shutdownCtx); err == nil {
		err = serr
	}
	return err
}

// Shutdown flushes Sentry and shuts the tracer provider down.
func (s *Service) Shutdown(ctx context.Context) error {
	s.log.InfoContext(ctx, "Shutting down service")

	if s.sentry {
		errortracking.Flush(SentryFlushTimeout)
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.log.ErrorContext(ctx, "Failed to shutdown telemetry", "error", err)
			return fmt.Errorf("failed to shutdown telemetry: %w", err)
		}
	}
	return nil
}
