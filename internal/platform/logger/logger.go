// Package logger provides structured logging with colored output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Options configures NewWithOptions.
type Options struct {
	Level string // debug, info, warn, error
	JSON  bool
	Color bool
}

// New creates a structured logger writing to stdout at the given level.
// LOG_FORMAT=json selects JSON output; NO_COLOR or LOG_COLOR=false disables
// colors in the text format.
func New(level string) *slog.Logger {
	return NewWithOptions(os.Stdout, Options{
		Level: level,
		JSON:  strings.ToLower(os.Getenv("LOG_FORMAT")) == "json",
		Color: shouldUseColor(),
	})
}

// NewWithOptions creates a logger writing to w.
func NewWithOptions(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&coloredTextHandler{
		out:      &lockedWriter{w: w},
		level:    level,
		useColor: opts.Color,
	})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// shouldUseColor respects NO_COLOR (https://no-color.org/) and LOG_COLOR.
func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if logColor := strings.ToLower(os.Getenv("LOG_COLOR")); logColor == "false" || logColor == "0" {
		return false
	}
	return true
}

// lockedWriter serializes writes from handlers derived via WithAttrs, which
// share one underlying writer across concurrent fetch workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// coloredTextHandler renders "time LEVEL message key=value ..." lines.
type coloredTextHandler struct {
	out      *lockedWriter
	level    slog.Level
	useColor bool
	attrs    []slog.Attr // already prefixed with their groups
	groups   []string
}

func (h *coloredTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *coloredTextHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	h.paint(&buf, colorGray, r.Time.Format("2006-01-02 15:04:05"))
	buf.WriteString(" ")
	h.writeLevel(&buf, r.Level)
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	prefix := groupPrefix(h.groups)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, prefix, a)
		return true
	})

	buf.WriteString("\n")
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *coloredTextHandler) writeLevel(buf *strings.Builder, level slog.Level) {
	if !h.useColor {
		buf.WriteString(level.String())
		return
	}
	switch {
	case level >= slog.LevelError:
		h.paint(buf, colorRed+colorBold, "ERROR")
	case level >= slog.LevelWarn:
		h.paint(buf, colorYellow, "WARN ")
	case level >= slog.LevelInfo:
		h.paint(buf, colorBlue, "INFO ")
	default:
		h.paint(buf, colorCyan, "DEBUG")
	}
}

func (h *coloredTextHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		nested := prefix
		if a.Key != "" {
			nested += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, nested, ga)
		}
		return
	}
	buf.WriteString(" ")
	h.paint(buf, colorGray, prefix+a.Key+"="+a.Value.String())
}

func (h *coloredTextHandler) paint(buf *strings.Builder, color, s string) {
	if h.useColor {
		buf.WriteString(color)
		buf.WriteString(s)
		buf.WriteString(colorReset)
		return
	}
	buf.WriteString(s)
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	prefix := groupPrefix(h.groups)
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		newAttrs = append(newAttrs, a)
	}
	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, ".") + "."
}
