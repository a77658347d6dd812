package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewAppliesDefaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("started", String("component", "test"))
	assert.NoError(t, l.Sync())
}

func TestNewConsoleEncoding(t *testing.T) {
	l, err := New(Config{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	l.Debug("visible at debug level")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestWithAttachesFields(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)

	child := l.With(Int64("job_id", 42))
	require.NotNil(t, child)
	child.Info("claimed")
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.Error("discarded too", Error(assert.AnError))
	assert.Same(t, l, l.With(String("k", "v")))
	assert.NoError(t, l.Sync())
}
