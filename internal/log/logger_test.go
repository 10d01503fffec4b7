package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	logger = nil
	once = *new(sync.Once)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestSetupWriter(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var buf bytes.Buffer
	SetupWriter("WARN", &buf)
	require.NotNil(t, logger)

	Info("dropped")
	assert.Zero(t, buf.Len())

	Warn("kept", "k", "v")
	out := decodeLine(t, &buf)
	assert.Equal(t, "kept", out["msg"])
	assert.Equal(t, "v", out["k"])
}

func TestSetupOnlyOnce(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var first, second bytes.Buffer
	SetupWriter("INFO", &first)
	SetupWriter("DEBUG", &second)

	Info("hello")
	assert.NotZero(t, first.Len())
	assert.Zero(t, second.Len())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestContextHelpers(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent("test-comp").Info("hello")
	out := decodeLine(t, &buf)
	assert.Equal(t, "test-comp", out["component"])
	assert.Equal(t, "hello", out["msg"])

	buf.Reset()
	WithTask("t1").Info("task")
	out = decodeLine(t, &buf)
	assert.Equal(t, "t1", out["task_id"])
}
