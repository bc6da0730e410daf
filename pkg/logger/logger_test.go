package logger_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealport/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestLogFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port.log")
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger.LogFile)

	templogger.Info("written")
	require.NoError(t, templogger.Close())
}

func TestLogLevels(t *testing.T) {
	t.Run("DebugSuppressedByDefault", func(t *testing.T) {
		buff := bytes.NewBuffer([]byte{})
		l, err := logger.New().FromBuffer(buff).Make()
		require.NoError(t, err)

		l.Debug("hidden", "key", "value")
		require.Equal(t, 0, buff.Len())
	})

	t.Run("VerboseWritesDebug", func(t *testing.T) {
		buff := bytes.NewBuffer([]byte{})
		l, err := logger.New().FromBuffer(buff).Verbose(true).Make()
		require.NoError(t, err)

		l.Debug("shown", "key", "value")
		require.Contains(t, buff.String(), `"key":"value"`)
		require.Contains(t, buff.String(), `"level":"debug"`)
	})

	t.Run("ExplicitLevel", func(t *testing.T) {
		buff := bytes.NewBuffer([]byte{})
		l, err := logger.New().FromBuffer(buff).Level(zerolog.ErrorLevel).Make()
		require.NoError(t, err)

		l.Warn("hidden")
		require.Equal(t, 0, buff.Len())
		l.Error("shown", "type", "posts")
		require.Contains(t, buff.String(), `"type":"posts"`)
	})
}

func TestNop(t *testing.T) {
	l := logger.Nop()
	require.NotPanics(t, func() {
		l.Error("nothing")
		l.Info("nothing", "k", 1)
	})
}
