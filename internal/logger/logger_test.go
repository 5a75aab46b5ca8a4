package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "svc"})

	l.WithField(FieldTenderID, "T-001").Debug("fetched")

	line := lastLine(t, &buf)
	assert.Equal(t, "fetched", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "svc", line["service"])
	assert.Equal(t, "T-001", line[FieldTenderID])
	assert.Contains(t, line, "timestamp")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Output: &buf})
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "info", Output: &buf})

	ctx := l.WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetTenderID(ctx, "T-002")

	assert.Equal(t, "job-1", GetJobID(ctx))
	assert.Equal(t, "T-002", GetTenderID(ctx))
	assert.Empty(t, GetFieldString(ctx, FieldRequestID))

	With(Fields{FieldCount: 3}).WithDuration(12).Info(ctx, "committed %d units", 3)
	line := lastLine(t, &buf)
	assert.Equal(t, "committed 3 units", line["message"])
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 12, line[FieldDurationMs])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_MAX_SIZE", "not-a-number")
	t.Setenv("LOG_COMPRESS", "false")

	cfg := LoadFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.False(t, cfg.Compress)
}

func TestNewFromEnvWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	l := NewFromEnv(&EnvConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "svc",
		Environment: "production",
		LogFile:     path,
		LogFileOnly: true,
		MaxSize:     1,
	})
	l.Info("to file")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}
