// Package env resolves the environment variables shared by WATcloud services.
//
// Resolution fails soft: a missing variable logs a warning and yields an
// empty value, a malformed JSON variable logs a warning and yields an empty
// object. Absent configuration is a valid state.
package env

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/viper"
)

// Kind is the declared type of a variable.
type Kind int

const (
	KindString Kind = iota
	KindJSON
)

// Var is a named environment variable with a declared type.
type Var struct {
	Name string
	Kind Kind
}

var (
	DeploymentEnvironment = Var{Name: "DEPLOYMENT_ENVIRONMENT", Kind: KindString}
	// BuildInfo is generated by the build pipeline (docker/metadata-action).
	BuildInfo          = Var{Name: "DOCKER_METADATA_OUTPUT_JSON", Kind: KindJSON}
	SentryDSN          = Var{Name: "SENTRY_DSN", Kind: KindString}
	SentryRelease      = Var{Name: "SENTRY_RELEASE", Kind: KindString}
	AppLogLevel        = Var{Name: "APP_LOG_LEVEL", Kind: KindString}
	GoogleCloudProject = Var{Name: "GOOGLE_CLOUD_PROJECT", Kind: KindString}
)

// Source reads variables from the process environment.
type Source struct {
	v   *viper.Viper
	log *slog.Logger
}

// New creates a Source. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}

	// Empty variables are treated as unset.
	v := viper.NewWithOptions(viper.WithLogger(log.With("logger", "viper")))
	v.AutomaticEnv()

	return &Source{v: v, log: log}
}

// Lookup resolves v according to its kind. The boolean reports whether the
// variable was set.
func (s *Source) Lookup(v Var) (any, bool) {
	if !s.v.IsSet(v.Name) {
		s.log.Warn("Environment variable not set", "name", v.Name)
		if v.Kind == KindJSON {
			return map[string]any{}, false
		}
		return "", false
	}

	raw := s.v.GetString(v.Name)
	if v.Kind != KindJSON {
		return raw, true
	}

	obj := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		s.log.Warn("Failed to parse environment variable as JSON", "name", v.Name, "error", err)
		return map[string]any{}, true
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, true
}

// String returns v as a string, or "" when unset.
func (s *Source) String(v Var) string {
	val, _ := s.Lookup(Var{Name: v.Name, Kind: KindString})
	return val.(string)
}

// JSON returns v decoded as a JSON object. It never returns nil.
func (s *Source) JSON(v Var) map[string]any {
	val, _ := s.Lookup(Var{Name: v.Name, Kind: KindJSON})
	return val.(map[string]any)
}

// Snapshot is the configuration read from the environment at startup. It is
// not refreshed.
type Snapshot struct {
	DeploymentEnvironment string
	BuildInfo             ImageBuildInfo
	SentryDSN             string
	SentryRelease         string
	LogLevel              string
	GoogleCloudProject    string
}

// Load reads every known variable once.
func (s *Source) Load() Snapshot {
	return Snapshot{
		DeploymentEnvironment: s.String(DeploymentEnvironment),
		BuildInfo:             NewBuildInfo(s.JSON(BuildInfo)),
		SentryDSN:             s.String(SentryDSN),
		SentryRelease:         s.String(SentryRelease),
		LogLevel:              s.String(AppLogLevel),
		GoogleCloudProject:    s.String(GoogleCloudProject),
	}
}
