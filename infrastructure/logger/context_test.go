package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	base := mustTestLogger(t)
	fallback := logger.NewNop()

	assert.Same(t, base, logger.FromContext(logger.WithContext(context.Background(), base), fallback))
	assert.Equal(t, fallback, logger.FromContext(context.Background(), fallback))
	assert.NotNil(t, logger.FromContext(context.Background(), nil))
}

func TestWithContext_OverwritesPrevious(t *testing.T) {
	t.Parallel()

	first := mustTestLogger(t)
	second := mustTestLogger(t).With(logger.Producer("record"), logger.RunID("run-1"))

	ctx := logger.WithContext(context.Background(), first)
	ctx = logger.WithContext(ctx, second)

	assert.Same(t, second, logger.FromContext(ctx, nil))
}

func TestNewNop_WithReturnsNop(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	assert.Equal(t, nop, nop.With(logger.SitemapContext("default")))
	assert.NoError(t, nop.Sync())
}

func mustTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	return l
}
