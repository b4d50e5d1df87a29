package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("DEBUG").Level())
	assert.Equal(t, zapcore.WarnLevel, Level("warning").Level())
	assert.Equal(t, zapcore.ErrorLevel, Level("error").Level())
	assert.Equal(t, zapcore.InfoLevel, Level("verbose").Level())
	assert.Equal(t, zapcore.InfoLevel, Level("").Level())
}

func TestNew(t *testing.T) {
	l, err := New(Config{ServiceName: "labelcheck", LogLevel: "warn", Environment: "production"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
