package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "checkout", "o-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "checkout", "o-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 別キーは独立
	r2, ok, _ := l.TryLock(ctx, "checkout", "o-2")
	assert.True(t, ok)
	r2()

	release()
	release()

	_, ok, _ = l.TryLock(ctx, "checkout", "o-1")
	assert.True(t, ok)
}
