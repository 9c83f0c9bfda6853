package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coilforge/coilforge/internal/config"
)

func observedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Defaults(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(config.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_TextFormat(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestLogger_Levels(t *testing.T) {
	t.Parallel()

	l, logs := observedLogger(zapcore.DebugLevel)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	require.Equal(t, 4, logs.Len())
	entries := logs.All()
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "info msg", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	l, logs := observedLogger(zapcore.WarnLevel)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	assert.Equal(t, 1, logs.Len())
}

func TestLogger_SetLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger(config.LogConfig{Level: "info", Output: path})
	require.NoError(t, err)

	l.Debug("below threshold")

	ls, ok := l.(LevelSetter)
	require.True(t, ok)
	ls.SetLevel("debug")

	// Children created before or after the change share the level.
	l.Named("child").Debug("after reload")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "after reload")
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()

	l, logs := observedLogger(zapcore.InfoLevel)

	l.Info("msg",
		String("study", "run-1"),
		Int("designs", 42),
		Float64("obj", 1.5),
		Bool("valid", true),
		Duration("elapsed", time.Second),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", ctx["study"])
	assert.EqualValues(t, 42, ctx["designs"])
	assert.Equal(t, 1.5, ctx["obj"])
	assert.Equal(t, true, ctx["valid"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLogger_ErrNil(t *testing.T) {
	t.Parallel()

	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	l, logs := observedLogger(zapcore.InfoLevel)

	child := l.With(String("component", "generator"))
	child.Info("msg")
	l.Info("parent msg")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "generator", logs.All()[0].ContextMap()["component"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "component")
}

func TestLogger_Named(t *testing.T) {
	t.Parallel()

	l, logs := observedLogger(zapcore.InfoLevel)

	l.Named("dataset").Named("collector").Info("msg")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "dataset.collector", logs.All()[0].LoggerName)
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.With(String("k", "v")).Named("n").Info("x")
	})
}

func TestDefault_SetAndGet(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := observedLogger(zapcore.InfoLevel)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default(), "nil is ignored")
}
