package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"cblcrawl/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "crawl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	base, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	child := base.WithField("entity", "bans").WithFields(map[string]interface{}{"page": 3})
	child.Info("child line")
	base.Info("parent line")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "bans", lines[0]["entity"])
	assert.Equal(t, float64(3), lines[0]["page"])
	assert.NotContains(t, lines[1], "entity")
}

func TestWithErrorAndPointerCursor(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	cursor := "abc"
	l.WithError(errors.New("boom")).WithField("cursor", &cursor).Error("failed")
	l.WithField("cursor", (*string)(nil)).Warn("no cursor")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "abc", lines[0]["cursor"])
	assert.Nil(t, lines[1]["cursor"])
}

func TestLevelFiltering(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestTestLoggerCapturesDerivedFields(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("entity", "users").WithError(errors.New("x")).WarnWithFields("retrying", map[string]interface{}{"attempt": 2})
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "users", msgs[0].Fields["entity"])
	assert.Equal(t, 2, msgs[0].Fields["attempt"])
	assert.EqualError(t, msgs[0].Error, "x")
	assert.True(t, tl.HasMessage("plain"))
	assert.True(t, tl.HasMessageContaining("retry"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("e")).Info("ignored")
		LogCheckpoint(l, "bans", nil, 0)
		LogRequest(l, "http://example.invalid", 500, 0)
	})
	assert.NotNil(t, l.GetZerolog())
}
