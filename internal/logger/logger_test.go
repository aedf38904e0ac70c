package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestJSONFormatWritesStructuredRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, Config{Level: slog.LevelInfo, Format: "json"})
	log.Info("sync finished", "added", 2)
	log.Debug("dropped")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sync finished", record["msg"])
	assert.EqualValues(t, 2, record["added"])
}

func TestTextFormatRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, Config{Level: slog.LevelWarn, Format: "text"})
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
