package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhin/revgate/internal/util"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json", LogConfig{Level: "info", Format: "json"}, false},
		{"console", LogConfig{Level: "debug", Format: "console"}, false},
		{"stderr output", LogConfig{Level: "warn", Format: "json", Output: "stderr"}, false},
		{"invalid level", LogConfig{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	child := logger.With(String("component", "test"))
	assert.NotNil(t, child)

	// Logging through the child must not panic.
	child.Info("message", Int("n", 1))
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	ctx := util.ContextWithRequestID(context.Background(), "req-1")
	ctx = util.ContextWithRouteName(ctx, "api")

	enriched := logger.WithContext(ctx)
	assert.NotNil(t, enriched)
	enriched.Info("message")

	// A bare context yields the logger unchanged, not a panic.
	logger.WithContext(context.Background()).Info("message")
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	logger.Debug("ignored")
	logger.Info("ignored", String("k", "v"))
	logger.Warn("ignored")
	logger.Error("ignored")
	assert.NoError(t, logger.Sync())
	assert.NotNil(t, logger.With(String("k", "v")))
	assert.NotNil(t, logger.WithContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	logger, err := NewLogger(DefaultLogConfig())
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}
