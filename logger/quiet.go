package logger

import (
	"context"
	"log/slog"
)

// quietHandler drops records below min from loggers named in names.
type quietHandler struct {
	next  slog.Handler
	names map[string]bool
	min   slog.Level
	quiet bool
}

func newQuietHandler(next slog.Handler, names []string, min slog.Level) slog.Handler {
	if len(names) == 0 {
		return next
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &quietHandler{next: next, names: set, min: min}
}

func (h *quietHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.quiet && level < h.min {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *quietHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.min {
		quiet := h.quiet
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == NameKey {
				quiet = h.names[a.Value.String()]
				return false
			}
			return true
		})
		if quiet {
			return nil
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *quietHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	for _, a := range attrs {
		if a.Key == NameKey {
			h2.quiet = h.names[a.Value.String()]
		}
	}
	h2.next = h.next.WithAttrs(attrs)
	return &h2
}

func (h *quietHandler) WithGroup(name string) slog.Handler {
	h2 := *h
	h2.next = h.next.WithGroup(name)
	return &h2
}
