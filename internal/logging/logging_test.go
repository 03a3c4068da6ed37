package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, nil)
	log.Debug("hidden")
	log.Info("loaded", "fetch", "tasks")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=loaded")
	assert.Contains(t, out, "fetch=tasks")
}

func TestStatusHandlerForwardsWarnings(t *testing.T) {
	var buf bytes.Buffer
	status := NewStatusHandler(slog.LevelWarn)
	log := New(&buf, slog.LevelDebug, status).With("screen", "board")

	log.Warn("before attach")

	var got []string
	status.Attach(func(_ slog.Level, summary string) { got = append(got, summary) })

	log.Info("not forwarded")
	log.Warn("response was not json", "path", "/api/create_sprint")

	assert.Equal(t, []string{"response was not json (screen=board, path=/api/create_sprint)"}, got)
	assert.Contains(t, buf.String(), "not forwarded")
	assert.Contains(t, buf.String(), "before attach")
}

func TestOpenFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "todosky.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("x")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
