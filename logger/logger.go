package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/gcp"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/watonomous/watcloud-utils-go/env"
)

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// NameKey is the attribute carrying the logger name.
const NameKey = "logger"

// RootName is the name of the unnamed logger.
const RootName = "root"

// Level represents logging levels
type Level slog.Level

// Log levels
const (
	LevelDebug    = Level(slog.LevelDebug)
	LevelInfo     = Level(slog.LevelInfo)
	LevelWarn     = Level(slog.LevelWarn)
	LevelError    = Level(slog.LevelError)
	LevelCritical = Level(gcp.LevelCritical)
)

// ParseLevel parses a level name. WARNING and CRITICAL are accepted next to
// the slog names, FATAL maps to CRITICAL.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= LevelError:
		return "ERROR"
	case l >= LevelWarn:
		return "WARNING"
	case l >= LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Format selects the record encoding.
type Format string

const (
	// FormatText is "time - name - LEVEL - message key=value".
	FormatText Format = "text"
	FormatJSON Format = "json"
	// FormatGCP writes Cloud Logging structured JSON to stderr.
	FormatGCP Format = "gcp"
)

// DefaultQuietLoggers are third-party loggers that are too chatty below
// warning level.
var DefaultQuietLoggers = []string{"sentry", "otel", "http.server", "promhttp", "viper"}

// Config holds logger configuration
type Config struct {
	Level  Level
	Format Format
	// Output for the text and json formats. Defaults to stderr.
	Output io.Writer

	// ProjectID enables Cloud Logging trace correlation.
	ProjectID string

	// QuietLoggers are suppressed below QuietLevel.
	QuietLoggers []string
	QuietLevel   Level
}

// SetDefaults sets reasonable defaults for the config
func (c *Config) SetDefaults() {
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.QuietLoggers == nil {
		c.QuietLoggers = DefaultQuietLoggers
	}
	if c.QuietLevel == 0 {
		c.QuietLevel = LevelWarn
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, FormatGCP:
		return nil
	}
	return fmt.Errorf("unknown log format %q", c.Format)
}

// ConfigFromEnv reads APP_LOG_LEVEL. An invalid level is logged and ignored.
func ConfigFromEnv(src *env.Source) Config {
	cfg := Config{Level: LevelInfo}

	raw, ok := src.Lookup(env.AppLogLevel)
	if !ok {
		return cfg
	}

	level, err := ParseLevel(raw.(string))
	if err != nil {
		slog.Warn("Invalid APP_LOG_LEVEL, using INFO", "error", err)
		return cfg
	}
	cfg.Level = level
	return cfg
}

// Logger wraps slog with a fixed text format, noise suppression and trace
// correlation.
type Logger struct {
	logger *slog.Logger
	config Config
	level  *slog.LevelVar
	extra  []slog.Handler
	attrs  []any
	mu     sync.RWMutex
}

// NewLogger creates a new logger instance with the provided config
func NewLogger(config Config) (*Logger, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l := &Logger{
		config: config,
		level:  new(slog.LevelVar),
	}
	l.level.Set(slog.Level(config.Level))
	l.rebuild()

	return l, nil
}

// rebuild must be called with mu held for writing, or before l is shared.
func (l *Logger) rebuild() {
	l.config.SetDefaults()

	var h slog.Handler
	switch l.config.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(l.config.Output, &slog.HandlerOptions{Level: l.level})
	case FormatGCP:
		h = gcp.NewHandler(l.level.Level())
	default:
		h = newTextHandler(l.config.Output, l.level)
	}

	if len(l.extra) > 0 {
		h = &multiHandler{handlers: append([]slog.Handler{h}, l.extra...)}
	}

	h = newQuietHandler(h, l.config.QuietLoggers, slog.Level(l.config.QuietLevel))

	l.logger = slog.New(h)
	if len(l.attrs) > 0 {
		l.logger = l.logger.With(l.attrs...)
	}
}

// AddHandler fans records out to h as well. Loggers derived with With or
// Named before the call do not see h.
func (l *Logger) AddHandler(h slog.Handler) {
	l.mu.Lock()
	l.extra = append(l.extra, h)
	l.rebuild()
	l.mu.Unlock()

	if l == Global() {
		slog.SetDefault(l.Slog())
	}
}

// multiHandler writes to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, rec.Level) {
			if err := h.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// SetUp creates the process logger, installs it as the global logger and as
// the slog default.
func SetUp(config Config) (*Logger, error) {
	l, err := NewLogger(config)
	if err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()

	slog.SetDefault(l.Slog())
	return l, nil
}

// Global returns the global logger instance. Before SetUp it wraps
// slog.Default.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return &Logger{logger: slog.Default(), level: new(slog.LevelVar)}
	}
	return globalLogger
}

// addTraceContext adds trace information from context to log attributes
func addTraceContext(ctx context.Context, projectID string, attrs []any) []any {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return attrs
	}

	sc := span.SpanContext()
	traceID := sc.TraceID().String()

	attrs = append(attrs,
		"trace_id", traceID,
		"span_id", sc.SpanID().String(),
		"trace_sampled", sc.TraceFlags().IsSampled(),
	)

	if projectID != "" {
		attrs = append(attrs,
			"logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", projectID, traceID),
			"logging.googleapis.com/spanId", sc.SpanID().String(),
		)
	}

	return attrs
}

// enrichContext adds trace information to context for clog/gcp
func (l *Logger) enrichContext(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || l.config.ProjectID == "" {
		return ctx
	}
	return gcp.WithTrace(ctx, fmt.Sprintf("projects/%s/traces/%s", l.config.ProjectID, sc.TraceID().String()))
}

func (l *Logger) slogger() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}

func (l *Logger) log(ctx context.Context, level Level, msg string, args ...any) {
	args = addTraceContext(ctx, l.config.ProjectID, args)
	ctx = l.enrichContext(ctx)
	l.slogger().Log(ctx, slog.Level(level), msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.slogger().Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.slogger().Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.slogger().Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.slogger().Error(msg, args...)
}

// Critical logs at critical level
func (l *Logger) Critical(msg string, args ...any) {
	l.slogger().Log(context.Background(), slog.Level(LevelCritical), msg, args...)
}

// DebugContext logs at debug level with trace correlation
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelDebug, msg, args...)
}

// InfoContext logs at info level with trace correlation
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelInfo, msg, args...)
}

// WarnContext logs at warn level with trace correlation
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelWarn, msg, args...)
}

// ErrorContext logs at error level with trace correlation
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelError, msg, args...)
}

// CriticalContext logs at critical level with trace correlation
func (l *Logger) CriticalContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelCritical, msg, args...)
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return &Logger{
		logger: l.logger.With(args...),
		config: l.config,
		level:  l.level,
		attrs:  append(append([]any{}, l.attrs...), args...),
	}
}

// Named returns a logger whose records carry the given name.
func (l *Logger) Named(name string) *Logger {
	return l.With(NameKey, name)
}

// Slog returns the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger()
}

// Clog returns the logger as a clog logger, for use with clog.WithLogger.
func (l *Logger) Clog() *clog.Logger {
	return clog.NewLogger(l.slogger())
}

// StdLogger returns a *log.Logger that writes through the named logger at
// the given level.
func (l *Logger) StdLogger(name string, level Level) *log.Logger {
	return slog.NewLogLogger(l.Named(name).slogger().Handler(), slog.Level(level))
}

// Logr returns a logr.Logger backed by the named logger.
func (l *Logger) Logr(name string) logr.Logger {
	return logr.FromSlogHandler(l.Named(name).slogger().Handler())
}

// LogHTTPRequest logs HTTP request details with structured fields
func (l *Logger) LogHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, args ...any) {
	level := LevelInfo
	msg := "HTTP request completed"

	if statusCode >= 500 {
		level = LevelError
		msg = "HTTP request failed"
	} else if statusCode >= 400 {
		level = LevelWarn
		msg = "HTTP request client error"
	}

	logArgs := []any{
		"http.method", method,
		"http.path", path,
		"http.status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}

	if l.config.Format == FormatGCP {
		logArgs = append(logArgs, "httpRequest", map[string]any{
			"requestMethod": method,
			"requestUrl":    path,
			"status":        statusCode,
			"latency":       fmt.Sprintf("%fs", duration.Seconds()),
		})
	}

	logArgs = append(logArgs, args...)
	l.log(ctx, level, msg, logArgs...)
}

// LogError logs an error and records it on the current span
func (l *Logger) LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		l.ErrorContext(ctx, msg, args...)
		return
	}

	errorArgs := append([]any{
		"error", err.Error(),
		"error.type", fmt.Sprintf("%T", err),
	}, args...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(
			attribute.String("error.type", fmt.Sprintf("%T", err)),
		))
		span.SetStatus(codes.Error, msg)
	}

	l.log(ctx, LevelError, msg, errorArgs...)
}

// LogPanic logs a recovered panic value with its stack trace.
func (l *Logger) LogPanic(ctx context.Context, recovered any, stack []byte) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetStatus(codes.Error, "panic recovered")
		span.RecordError(fmt.Errorf("panic: %v", recovered))
	}

	l.log(ctx, LevelCritical, "Panic recovered",
		"panic.value", fmt.Sprintf("%v", recovered),
		"panic.stack_trace", string(stack),
	)
}

// SetLevel sets the log level. Derived loggers share the level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.config.Level = level
	l.level.Set(slog.Level(level))
	if l.config.Format == FormatGCP {
		l.rebuild()
	}
}

// Level returns the current log level.
func (l *Logger) Level() Level {
	return Level(l.level.Level())
}

// Global function shortcuts using the global logger
func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	Global().InfoContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Global().ErrorContext(ctx, msg, args...)
}
