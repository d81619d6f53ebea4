package watcloud

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/watonomous/watcloud-utils-go/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID propagates X-Request-ID. Without the header the trace ID is
// used, then a random UUID. A request-scoped clog logger carrying the ID is
// attached to the context.
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			span := trace.SpanFromContext(r.Context())
			if requestID == "" {
				if sc := span.SpanContext(); sc.IsValid() {
					requestID = sc.TraceID().String()
				}
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}

			span.SetAttributes(attribute.String("http.request_id", requestID))

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			ctx = clog.WithLogger(ctx, log.Clog().With("request_id", requestID))

			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging writes one line per request. 5xx responses log at ERROR and 4xx
// at WARNING.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			if status >= http.StatusInternalServerError {
				trace.SpanFromContext(r.Context()).SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			}

			log.LogHTTPRequest(r.Context(), r.Method, r.URL.RequestURI(), status, time.Since(start),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// Recovery turns a panic into a logged CRITICAL record and a JSON 500.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.LogPanic(r.Context(), rec, debug.Stack())

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]any{
					"error": "Internal server error",
					"code":  http.StatusInternalServerError,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the given origins with credentials and any method or header.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

// OTelHTTP wraps a handler with OpenTelemetry HTTP instrumentation. Spans
// are named "METHOD /path" so the health-aware sampler can see the path.
func OTelHTTP(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
