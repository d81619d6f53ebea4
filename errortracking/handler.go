package errortracking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/watonomous/watcloud-utils-go/logger"
)

// logHandler records slog records as Sentry breadcrumbs and events.
type logHandler struct {
	breadcrumbLevel slog.Level
	eventLevel      slog.Level
	name            string
	attrs           []slog.Attr
	group           string
}

// LogHandler returns a slog.Handler that adds a breadcrumb for records at or
// above breadcrumbLevel and captures an event for records at or above
// eventLevel. Attach it with logger.Logger.AddHandler.
func LogHandler(breadcrumbLevel, eventLevel slog.Level) slog.Handler {
	return &logHandler{
		breadcrumbLevel: breadcrumbLevel,
		eventLevel:      eventLevel,
		name:            logger.RootName,
	}
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.breadcrumbLevel && h.name != "sentry"
}

func (h *logHandler) Handle(ctx context.Context, r slog.Record) error {
	name := h.name
	data := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group == "" && a.Key == logger.NameKey {
			name = a.Value.String()
			return true
		}
		data[h.group+a.Key] = a.Value.Resolve().Any()
		return true
	})
	if name == "sentry" {
		return nil
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	level := sentryLevel(r.Level)

	if r.Level >= h.eventLevel {
		event := sentry.NewEvent()
		event.Level = level
		event.Logger = name
		event.Message = r.Message
		event.Timestamp = r.Time
		for k, v := range data {
			event.Extra[k] = fmt.Sprint(v)
		}
		hub.CaptureEvent(event)
		return nil
	}

	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "log",
		Category:  name,
		Message:   r.Message,
		Level:     level,
		Data:      data,
		Timestamp: r.Time,
	}, nil)
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.group == "" && a.Key == logger.NameKey {
			h2.name = a.Value.String()
			continue
		}
		a.Key = h.group + a.Key
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func sentryLevel(l slog.Level) sentry.Level {
	switch {
	case l >= slog.Level(logger.LevelCritical):
		return sentry.LevelFatal
	case l >= slog.LevelError:
		return sentry.LevelError
	case l >= slog.LevelWarn:
		return sentry.LevelWarning
	case l >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
