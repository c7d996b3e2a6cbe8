package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	ctx := logger.WithContext(context.Background(), nop)

	assert.Same(t, nop, logger.FromContext(ctx))
}

func TestFromContext_FallbackIsSingleton(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(context.Background())

	require.NotNil(t, a)
	assert.Same(t, a, b)

	// warn-level fallback filters debug but must not panic
	a.Debug("debug message")
	a.Warn("warn message", logger.String("key", "value"))
}

func TestWith_CarriesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core).With(logger.String("service", "learningsong"))

	log.Info("lyrics generated", logger.Int("words", 42))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "lyrics generated", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "learningsong", fields["service"])
	assert.Equal(t, int64(42), fields["words"])
}

func TestNew_DefaultsToInfo(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)
}
