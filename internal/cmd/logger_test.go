package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	t.Run("known levels", func(t *testing.T) {
		t.Parallel()

		for name, want := range logLevels {
			parsed, err := parseLevel(name)
			require.NoError(t, err)
			require.Equal(t, want, parsed)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		t.Parallel()

		_, err := parseLevel("loud")
		require.ErrorIs(t, err, ErrInvalidLogLevel)
	})
}

func TestInitLogger(t *testing.T) { //nolint:paralleltest // swaps the default logger
	t.Run("level applies off a terminal", func(t *testing.T) {
		require.NoError(t, initLogger("warn"))

		logger := slog.Default()
		require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	})

	t.Run("invalid level", func(t *testing.T) {
		require.ErrorIs(t, initLogger("loud"), ErrInvalidLogLevel)
	})
}
