package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MaxAttrLen is the longest string attribute value TrimHandler passes
// through unmodified. Longer values are cut and suffixed with a marker
// noting the original length.
const MaxAttrLen = 256

// TrimHandler wraps an slog.Handler and truncates oversized string
// attribute values before passing records on.
//
// Design decision: We wrap a handler rather than pre-trimming at call
// sites so every logger in the pipeline gets the guarantee, including
// loggers handed to third-party code.
type TrimHandler struct {
	handler slog.Handler
	maxLen  int
}

// NewTrimHandler creates a TrimHandler wrapping the given handler.
// A nil handler falls back to slog.Default().Handler().
func NewTrimHandler(handler slog.Handler) *TrimHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &TrimHandler{handler: handler, maxLen: MaxAttrLen}
}

// Enabled delegates to the underlying handler.
func (h *TrimHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle trims the record's attributes and passes it on.
func (h *TrimHandler) Handle(ctx context.Context, r slog.Record) error {
	trimmed := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		trimmed.AddAttrs(h.trimAttr(a))
		return true
	})
	return h.handler.Handle(ctx, trimmed)
}

// WithAttrs returns a new handler with the given attributes added,
// trimmed first.
func (h *TrimHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.trimAttr(a)
	}
	return &TrimHandler{handler: h.handler.WithAttrs(out), maxLen: h.maxLen}
}

// WithGroup returns a new handler with the given group name.
func (h *TrimHandler) WithGroup(name string) slog.Handler {
	return &TrimHandler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// trimAttr truncates string values, recursing into groups.
func (h *TrimHandler) trimAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = h.trimAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	val := a.Value.String()
	if len(val) <= h.maxLen {
		return a
	}

	cut := h.maxLen
	// Never cut in the middle of a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(val[cut]) {
		cut--
	}
	var b strings.Builder
	b.WriteString(val[:cut])
	b.WriteString("… (truncated)")
	return slog.String(a.Key, b.String())
}

// NewLogger creates a logger writing text output to w with trimming
// applied. Verbose enables debug level; otherwise warnings and errors
// only.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewTrimHandler(base))
}
