package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis lock test")
	}
	c, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewRedisLocker(c, 2*time.Second)
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l := redisLocker(t)
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	release, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release())
	assert.ErrorIs(t, release(), ErrNotHeld)

	r2, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, r2())
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
