package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLockIsExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "landed:processor:q1", "proc_a")
	require.NoError(t, holder.Lock(ctx, time.Minute))

	contender := NewLocker(client, "landed:processor:q1", "proc_b")
	err := contender.Lock(ctx, time.Minute)
	assert.True(t, errors.Is(err, ErrNotHeld))

	require.NoError(t, holder.Unlock(ctx))
	assert.NoError(t, contender.Lock(ctx, time.Minute))
}

func TestUnlockOnlyByHolder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "landed:processor:q1", "proc_a")
	require.NoError(t, holder.Lock(ctx, time.Minute))

	impostor := NewLocker(client, "landed:processor:q1", "proc_b")
	assert.True(t, errors.Is(impostor.Unlock(ctx), ErrNotHeld))
	assert.NoError(t, holder.Unlock(ctx))
}

func TestQueueLocksDoNotCollideAcrossShards(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := NewQueueLock(client, "landed:allocation_1")
	second := NewQueueLock(client, "landed:allocation_2")
	require.NoError(t, first.Lock(ctx, time.Minute))
	assert.NoError(t, second.Lock(ctx, time.Minute))
}

func TestExtendLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "landed:processor:q1", "proc_a")
	require.NoError(t, holder.Lock(ctx, time.Minute))
	assert.NoError(t, holder.ExtendLock(ctx, 2*time.Minute))

	other := NewLocker(client, "landed:processor:q1", "proc_b")
	assert.Error(t, other.ExtendLock(ctx, time.Minute))
}
