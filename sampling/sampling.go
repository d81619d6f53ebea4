// Package sampling holds the trace sampling rule shared by the Sentry and
// OpenTelemetry integrations.
package sampling

import "strings"

// HealthPathPrefix marks requests that are never sampled.
const HealthPathPrefix = "/health"

// Decision is an upstream sampling decision.
type Decision int8

const (
	// Undecided means no parent decision is available.
	Undecided Decision = iota
	// Sampled means the parent was sampled.
	Sampled
	// NotSampled means the parent was explicitly not sampled.
	NotSampled
)

// FromBool converts a known decision.
func FromBool(sampled bool) Decision {
	if sampled {
		return Sampled
	}
	return NotSampled
}

func (d Decision) String() string {
	switch d {
	case Sampled:
		return "sampled"
	case NotSampled:
		return "not_sampled"
	default:
		return "undecided"
	}
}

// Context is what a sampler knows about the span being started.
type Context struct {
	Parent Decision
	Path   string
}

// Rate returns the sample rate for c. A parent decision wins, health checks
// are dropped, everything else gets rate.
func Rate(c Context, rate float64) float64 {
	switch c.Parent {
	case Sampled:
		return 1
	case NotSampled:
		return 0
	}

	if strings.HasPrefix(c.Path, HealthPathPrefix) {
		return 0
	}

	return rate
}

// PathFromName extracts the path from a "METHOD /path" span or transaction
// name. Names without a method are returned as is.
func PathFromName(name string) string {
	if _, path, ok := strings.Cut(name, " "); ok {
		name = path
	}
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name
}
