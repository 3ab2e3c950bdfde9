package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogHandler is a slog.Handler that renders leveled, colorized log lines for
// the terminal. It is synchronous; log volume from the client is low.
type LogHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	attrs    []slog.Attr
	logLevel slog.Level
}

// NewLogHandler creates a LogHandler writing to w at the given level.
func NewLogHandler(w io.Writer, level slog.Level) *LogHandler {
	return &LogHandler{
		mu:       &sync.Mutex{},
		w:        w,
		logLevel: level,
	}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	line := fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format(time.TimeOnly)),
		level,
		r.Message,
	)

	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
	}

	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
		return true
	})

	line += "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &LogHandler{
		mu:       h.mu,
		w:        h.w,
		attrs:    newAttrs,
		logLevel: h.logLevel,
	}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; attribute keys stay unqualified.
	return h
}
