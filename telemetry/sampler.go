package telemetry

import (
	"fmt"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/watonomous/watcloud-utils-go/sampling"
)

type healthAwareSampler struct {
	rate float64
}

// HealthAwareSampler inherits the parent decision, drops health checks and
// samples the rest by trace ID at rate.
func HealthAwareSampler(rate float64) sdktrace.Sampler {
	return healthAwareSampler{rate: rate}
}

func (s healthAwareSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	c := sampling.Context{Path: pathFromParameters(p)}
	if psc := trace.SpanContextFromContext(p.ParentContext); psc.IsValid() {
		c.Parent = sampling.FromBool(psc.IsSampled())
	}

	rate := sampling.Rate(c, s.rate)
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample().ShouldSample(p)
	case rate <= 0:
		return sdktrace.NeverSample().ShouldSample(p)
	default:
		return sdktrace.TraceIDRatioBased(rate).ShouldSample(p)
	}
}

func (s healthAwareSampler) Description() string {
	return fmt.Sprintf("HealthAwareSampler{%g}", s.rate)
}

func pathFromParameters(p sdktrace.SamplingParameters) string {
	for _, kv := range p.Attributes {
		switch kv.Key {
		case "url.path":
			return kv.Value.AsString()
		case "http.target":
			target, _, _ := strings.Cut(kv.Value.AsString(), "?")
			return target
		}
	}
	return sampling.PathFromName(p.Name)
}
