package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutAddrDisablesCache(t *testing.T) {
	c, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCacheIsANoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.Nil(t, c.Client())

	var dest map[string]int
	assert.False(t, c.GetJSON(ctx, "products:list", &dest))
	assert.NoError(t, c.SetJSON(ctx, "products:list", map[string]int{"a": 1}))
	assert.NoError(t, c.DeletePrefix(ctx, "products:"))
	assert.NoError(t, c.Close())
}

// offlineHook answers every command locally and keeps its arguments.
type offlineHook struct {
	commands [][]any
}

func (h *offlineHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *offlineHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.commands = append(h.commands, cmd.Args())
		return nil
	}
}

func (h *offlineHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestDeletePrefixScansNamespacedKeys(t *testing.T) {
	hook := &offlineHook{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	c := NewFromClient(client, time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	require.True(t, c.Enabled())
	require.NoError(t, c.DeletePrefix(context.Background(), "products:"))

	require.Len(t, hook.commands, 1)
	assert.Equal(t, "scan", hook.commands[0][0])
	assert.Contains(t, hook.commands[0], "autoparts:products:*")
}
