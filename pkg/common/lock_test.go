package common

import (
	"context"
	"testing"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockExclusive(t *testing.T) {
	s := miniredis.RunT(t)
	rdb, err := NewRedisClient(types.RedisConfig{Addrs: []string{s.Addr()}, Mode: types.RedisModeSingle})
	require.NoError(t, err)

	a := NewRedisLock(rdb)
	b := NewRedisLock(rdb)
	ctx := context.Background()
	key := Keys.CredentialRefreshLock("user-1", "gmail")

	require.NoError(t, a.Acquire(ctx, key, RedisLockOptions{TtlS: 5}))
	assert.ErrorIs(t, b.Acquire(ctx, key, RedisLockOptions{TtlS: 5}), ErrLockNotObtained)

	require.NoError(t, a.Release(key))
	assert.NoError(t, b.Acquire(ctx, key, RedisLockOptions{TtlS: 5}))
	assert.NoError(t, b.Release(key))
	assert.NoError(t, b.Release(key))
}
