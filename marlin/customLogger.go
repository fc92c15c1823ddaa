package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Handler prints records as "[time] [level] [value]... message", without
// attribute keys, so the module name reads as a prefix.
type Handler struct {
	level slog.Leveler
	attrs []slog.Attr
	mu    *sync.Mutex
	out   io.Writer
}

func NewHandler(o io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		out:   o,
		level: level,
		mu:    &sync.Mutex{},
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{level: h.level, attrs: merged, out: h.out, mu: h.mu}
}

// Groups only qualify keys, which are not printed
func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	strs := []string{
		r.Time.Format("[2006/01/02 15:04:05]"),
		fmt.Sprintf("[%s]", r.Level.String()),
	}
	for _, a := range h.attrs {
		strs = append(strs, fmt.Sprintf("[%s]", a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, fmt.Sprintf("[%s]", a.Value.String()))
		return true
	})
	strs = append(strs, r.Message)

	line := strings.Join(strs, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line)
	return err
}
