// Package log provides structured logging (slog) for plugins running inside
// the simulator process. Output goes to stderr by default, since stdout
// usually carries the simulated console.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// PluginHandler implements slog.Handler. It tags every record with the SDK
// component name and the host process id, then hands it to a text or JSON
// handler.
type PluginHandler struct {
	inner slog.Handler
	opts  handlerConfig
}

// HandlerOption configures the PluginHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Level
	addSource bool
	format    string
	w         io.Writer
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level:  slog.LevelInfo,
		format: FormatText,
		w:      os.Stderr,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithFormat selects FormatText or FormatJSON. Unknown formats fall back to text.
func WithFormat(format string) HandlerOption {
	return func(c *handlerConfig) {
		c.format = format
	}
}

// WithWriter redirects output, mostly for tests.
func WithWriter(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.w = w
	}
}

// NewHandler creates a new PluginHandler with the given options.
func NewHandler(opts ...HandlerOption) *PluginHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	var inner slog.Handler
	if strings.EqualFold(cfg.format, FormatJSON) {
		inner = slog.NewJSONHandler(cfg.w, hopts)
	} else {
		inner = slog.NewTextHandler(cfg.w, hopts)
	}

	inner = inner.WithAttrs([]slog.Attr{
		slog.String("component", "mmio"),
		slog.Int("pid", os.Getpid()),
	})
	return &PluginHandler{inner: inner, opts: cfg}
}

// New returns a logger backed by a PluginHandler.
func New(opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// Enabled reports whether the handler handles records at the given level.
func (h *PluginHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// Handle writes the record.
func (h *PluginHandler) Handle(ctx context.Context, record slog.Record) error {
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.inner.Handle(ctx, record)
}

// WithAttrs returns a new PluginHandler that includes the given attributes.
func (h *PluginHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PluginHandler{inner: h.inner.WithAttrs(attrs), opts: h.opts}
}

// WithGroup returns a new PluginHandler with the given group name.
func (h *PluginHandler) WithGroup(name string) slog.Handler {
	return &PluginHandler{inner: h.inner.WithGroup(name), opts: h.opts}
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Anything else yields info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
