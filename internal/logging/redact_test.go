package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newHandler(buf *bytes.Buffer, secrets ...string) *RedactingHandler {
	base := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewRedactingHandler(base, secrets...)
}

func TestRedactingHandler_MasksAttributeValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "super-secret-token"))

	logger.Info("bot connected", "token", "super-secret-token")

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Errorf("log output leaked the secret: %q", out)
	}
	if !strings.Contains(out, redactedPlaceholder) {
		t.Errorf("log output missing placeholder: %q", out)
	}
}

func TestRedactingHandler_MasksSecretWithinMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "sk-abc123"))

	logger.Error("request failed with key sk-abc123 in URL")

	out := buf.String()
	if strings.Contains(out, "sk-abc123") {
		t.Errorf("log output leaked the secret embedded in the message: %q", out)
	}
}

func TestRedactingHandler_NoSecretsIsPassthrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf))

	logger.Info("normal message", "field", "value")

	out := buf.String()
	if !strings.Contains(out, "value") {
		t.Errorf("expected untouched output, got %q", out)
	}
}

func TestRedactingHandler_AddRegistersNewSecretAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf)
	logger := slog.New(h)

	h.Add("recording-access-key-42")
	logger.Info("acquired recording", "access_key", "recording-access-key-42")

	out := buf.String()
	if strings.Contains(out, "recording-access-key-42") {
		t.Errorf("log output leaked a secret added after construction: %q", out)
	}
}

func TestRedactingHandler_EmptySecretIgnored(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, ""))

	logger.Info("message", "field", "")

	// Should not panic and should not redact everything.
	if strings.Contains(buf.String(), redactedPlaceholder) {
		t.Errorf("empty secret should not cause redaction: %q", buf.String())
	}
}

func TestRedactingHandler_WithAttrsPreservesSecrets(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, "carried-secret")
	logger := slog.New(h).With("component", "pipeline")

	logger.Info("status", "value", "carried-secret")

	if strings.Contains(buf.String(), "carried-secret") {
		t.Errorf("secret leaked after WithAttrs: %q", buf.String())
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf)

	if h.Enabled(context.Background(), slog.LevelDebug) != true {
		t.Error("expected debug level to be enabled for a debug-configured base handler")
	}
}
