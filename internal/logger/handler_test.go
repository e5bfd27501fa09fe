package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandlerRedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Info("tokens stored", "access_token", "eyJhbGciOiJIUzI1NiJ9.payload.sig", "user_id", "u1")

	out := buf.String()
	assert.Contains(t, out, "tokens stored")
	assert.Contains(t, out, "eyJhbG***")
	assert.NotContains(t, out, "payload.sig")
	assert.Contains(t, out, "u1")
}

func TestPrettyHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrettyHandlerRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.InfoContext(WithRequestID(context.Background(), "req-42"), "handled")

	assert.Contains(t, buf.String(), "req-42")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "***", Redact("abc"))
	assert.Equal(t, "abcdef***", Redact("abcdefghij"))
}
