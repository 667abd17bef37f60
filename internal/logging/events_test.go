package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	return entry
}

func TestNewEventLogger(t *testing.T) {
	el := NewEventLogger(zerolog.New(&bytes.Buffer{}))
	require.NotNil(t, el)
}

func TestEventLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	el.Debug("test message", "key1", "value1", "key2", 42)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(42), entry["key2"]) // JSON numbers are float64
}

func TestEventLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf))

	el.Info("info message", "status", "ok")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ok", entry["status"])
}

func TestEventLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf))

	el.Error("handler panicked", "event", "pan", "panic", "boom")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "pan", entry["event"])
}

func TestEventLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	el.Debug("hidden")

	assert.Empty(t, buf.String())
}

func TestNewEventLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerTo(&buf, "WARN")

	el.Info("dropped")
	assert.Empty(t, buf.String())

	el.Error("kept")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "events", entry["component"])
	assert.Contains(t, entry, "time")
}

func TestNewEventLoggerTo_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerTo(&buf, "chatty")

	el.Debug("hidden")
	assert.Empty(t, buf.String())
	el.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestToFields_OddAndNonStringKeys(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "b", "dangling"})

	assert.Equal(t, map[string]any{"a": 1}, fields)
}
