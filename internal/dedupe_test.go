package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduplicator(t *testing.T) {
	ctx := context.Background()
	dedupe := NewMemoryDeduplicator(time.Minute)

	seen, err := dedupe.CheckAndAdd(ctx, "MC:1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = dedupe.CheckAndAdd(ctx, "MC:1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = dedupe.CheckAndAdd(ctx, "MC:2")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.Equal(t, 2, dedupe.Len())
}

func TestMemoryDeduplicatorEject(t *testing.T) {
	ctx := context.Background()
	dedupe := NewMemoryDeduplicator(time.Minute)

	_, _ = dedupe.CheckAndAdd(ctx, "MC:1")

	assert.Equal(t, 0, dedupe.Eject(time.Now()))
	assert.Equal(t, 1, dedupe.Eject(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, dedupe.Len())

	seen, err := dedupe.CheckAndAdd(ctx, "MC:1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNewDeduplicator(t *testing.T) {
	ctx := context.Background()

	dedupe, err := NewDeduplicator(ctx, DedupeConfiguration{Type: "Memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDeduplicator{}, dedupe)

	dedupe, err = NewDeduplicator(ctx, DedupeConfiguration{Type: DedupeTypeNone})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		seen, err := dedupe.CheckAndAdd(ctx, "MC:1")
		require.NoError(t, err)
		assert.False(t, seen)
	}

	_, err = NewDeduplicator(ctx, DedupeConfiguration{Type: "memcached"})
	assert.ErrorIs(t, err, ErrConfigurationValidateDedupe)
}
