package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/internal/log"
)

func TestMemoryScoreCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryScoreCache(time.Hour)

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	c.Set(ctx, scoring.Score{ServiceID: 1, Value: 0.8})
	got, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, 0.8, got.Value)

	c.Delete(ctx, 1)
	_, ok = c.Get(ctx, 1)
	assert.False(t, ok)
}

func TestMemoryScoreCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryScoreCache(10 * time.Millisecond)

	c.Set(ctx, scoring.Score{ServiceID: 2, Value: 0.5})
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, 2)
	assert.False(t, ok)
}

func TestRedisScoreCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisScoreCacheWithClient(client, time.Hour, log.Discard())
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	c.Set(ctx, scoring.Score{ServiceID: 3, Value: 0.4})
	_, ok := c.Get(ctx, 3)

	assert.False(t, ok)
}

func TestNewRedisScoreCache_BadURL(t *testing.T) {
	_, err := NewRedisScoreCache(context.Background(), "://nope", time.Hour, nil)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "yukpo:score:42", key(42))
}
