package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(DefaultConfig, &buf)

	log.Info("document created", "collection", "clients", "id", "abc")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "document created", entries[0]["msg"])
	assert.Equal(t, "clients", entries[0]["collection"])
	assert.Equal(t, "abc", entries[0]["id"])
	assert.Equal(t, "info", entries[0]["level"])
}

func TestStructuredLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig
	cfg.Level = LevelWarn
	log := NewLoggerWithWriter(cfg, &buf)

	log.Info("dropped")
	log.Warn("kept")
	assert.Len(t, decodeLines(t, &buf), 1)

	log.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, log.GetLevel())
	log.Debug("now visible")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(DefaultConfig, &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	log.WithContext(ctx).WithField("component", "gateway").Error("boom")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, "user-1", entries[0]["user_id"])
	assert.Equal(t, "gateway", entries[0]["component"])
}

func TestLogHTTPRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	previous := GetGlobalLogger()
	SetGlobalLogger(NewLoggerWithWriter(DefaultConfig, &buf))
	defer SetGlobalLogger(previous)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusServiceUnavailable} {
		LogHTTPRequest(HTTPRequestInfo{
			Method:     http.MethodGet,
			Path:       "/api/v1/clients/",
			StatusCode: status,
			Latency:    5 * time.Millisecond,
			RequestID:  "req-2",
		})
	}

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "warning", entries[1]["level"])
	assert.Equal(t, "error", entries[2]["level"])
	assert.Equal(t, "req-2", entries[2]["request_id"])
	assert.Equal(t, "GET /api/v1/clients/ - 503", entries[2]["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
