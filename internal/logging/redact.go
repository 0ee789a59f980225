// Package logging provides a secrets-redacting [slog.Handler] decorator.
// The bot token, the LLM API key, and each recording's access key must never
// reach a log sink in cleartext — this package wraps any handler so that
// configured secret values are masked regardless of which attribute or log
// level they appear under.
package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// redactedPlaceholder replaces a matched secret value wholesale; partial
// masking would still leak enough of the value to be useful to an attacker.
const redactedPlaceholder = "[REDACTED]"

// RedactingHandler wraps a base [slog.Handler], replacing every occurrence of
// a configured secret in the message and in attribute values (strings, the
// formatted text of other values such as errors, and attributes nested in
// groups) with a placeholder. New secrets can be registered at runtime via
// Add — cmd/minutes does this for each panel-triggered recording's access
// key before starting its pipeline.
type RedactingHandler struct {
	base slog.Handler

	mu      sync.RWMutex
	secrets []string
}

// NewRedactingHandler wraps base, masking any of the given initial secrets.
// Empty strings are ignored so that an unset config field never causes every
// attribute to be redacted.
func NewRedactingHandler(base slog.Handler, secrets ...string) *RedactingHandler {
	h := &RedactingHandler{base: base}
	h.Add(secrets...)
	return h
}

// Add registers additional secret values to mask in all subsequent records.
// Safe to call concurrently with logging.
func (h *RedactingHandler) Add(secrets ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			h.secrets = append(h.secrets, s)
		}
	}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RedactingHandler{base: h.base.WithAttrs(h.redactAttrs(attrs)), secrets: h.snapshot()}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{base: h.base.WithGroup(name), secrets: h.snapshot()}
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	secrets := h.snapshot()
	if len(secrets) == 0 {
		return h.base.Handle(ctx, r)
	}

	out := slog.NewRecord(r.Time, r.Level, h.redactString(r.Message, secrets), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a, secrets))
		return true
	})
	return h.base.Handle(ctx, out)
}

func (h *RedactingHandler) snapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.secrets))
	copy(out, h.secrets)
	return out
}

func (h *RedactingHandler) redactAttrs(attrs []slog.Attr) []slog.Attr {
	secrets := h.snapshot()
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.redactAttr(a, secrets)
	}
	return out
}

func (h *RedactingHandler) redactAttr(a slog.Attr, secrets []string) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactString(a.Value.String(), secrets))
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = h.redactAttr(g, secrets)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		if s := a.Value.String(); h.redactString(s, secrets) != s {
			return slog.String(a.Key, h.redactString(s, secrets))
		}
	}
	return a
}

func (h *RedactingHandler) redactString(s string, secrets []string) string {
	for _, secret := range secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, redactedPlaceholder)
		}
	}
	return s
}

var _ slog.Handler = (*RedactingHandler)(nil)
