// Package logging sets up slog for a process whose terminal belongs to the
// TUI: records go to a file, and warnings can also be forwarded to the
// status bar.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// ParseLevel maps a config level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// OpenFile opens path for appending, creating its directory
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// New returns a text logger writing to w at level, teeing records at
// Warn and above into status when it is non-nil.
func New(w io.Writer, level slog.Level, status *StatusHandler) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if status != nil {
		h = tee{h, status}
	}
	return slog.New(h)
}

// StatusHandler forwards records to a sink once one is attached. Records
// that arrive earlier are dropped. Derived handlers share the sink.
type StatusHandler struct {
	level slog.Level
	sink  *atomic.Pointer[func(level slog.Level, summary string)]
	attrs []slog.Attr
}

func NewStatusHandler(level slog.Level) *StatusHandler {
	return &StatusHandler{level: level, sink: &atomic.Pointer[func(slog.Level, string)]{}}
}

// Attach sets the function receiving one-line summaries
func (h *StatusHandler) Attach(fn func(level slog.Level, summary string)) {
	h.sink.Store(&fn)
}

func (h *StatusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *StatusHandler) Handle(_ context.Context, r slog.Record) error {
	fn := h.sink.Load()
	if fn == nil {
		return nil
	}
	var parts []string
	for _, a := range h.attrs {
		parts = append(parts, a.Key+"="+a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})
	summary := r.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	(*fn)(r.Level, summary)
	return nil
}

func (h *StatusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op; summaries are flat
func (h *StatusHandler) WithGroup(string) slog.Handler { return h }

type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
