// Package watcloud provides the shared service plumbing for WATcloud Go
// services.
//
// A Service is a chi router preloaded with the endpoints every WATcloud
// service exposes and the middleware they all run:
//
//   - GET /health runs the configured HealthFuncs in order
//   - GET /build-info returns DOCKER_METADATA_OUTPUT_JSON
//   - GET /runtime-info returns the mutable RuntimeInfo map
//   - GET /metrics serves a private Prometheus registry
//
// # Quick Start
//
//	log, err := logger.SetUp(logger.ConfigFromEnv(env.New(nil)))
//	if err != nil {
//	    panic(err)
//	}
//
//	config := watcloud.DefaultConfig()
//	config.Logger = log
//	config.HealthFuncs = []watcloud.HealthFunc{checkDatabase}
//
//	svc, err := watcloud.New(ctx, config)
//	if err != nil {
//	    log.Error("Failed to start", "error", err)
//	    os.Exit(1)
//	}
//	svc.Get("/jobs/{id}", getJob)
//
//	err = svc.ListenAndServe(ctx, ":8080")
//
// # Middleware
//
// From outermost to innermost:
//
//   - OTelHTTP: spans named "METHOD /path", sampled by the health-aware sampler
//   - RequestID: X-Request-ID propagation and a request-scoped clog logger
//   - Metrics: http_requests_total and http_request_duration_seconds by route
//   - Logging: one line per request
//   - Recovery: panics become a CRITICAL log record and a JSON 500
//   - Sentry: transactions and panic capture when SENTRY_DSN is set
//   - CORS: only when origins are configured or DEPLOYMENT_ENVIRONMENT is set
//
// The exported middleware can also be used on their own.
//
// # Environment
//
// Configuration comes from the environment through package env:
// DEPLOYMENT_ENVIRONMENT, DOCKER_METADATA_OUTPUT_JSON, SENTRY_DSN,
// SENTRY_RELEASE, APP_LOG_LEVEL and GOOGLE_CLOUD_PROJECT. A missing variable
// logs a warning and is treated as empty.
package watcloud
