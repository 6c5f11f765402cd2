package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/scriptflow/types"
)

func newRedisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	s := newRedisStoreForTest(t)

	require.NoError(t, s.AddMessage(ctx, "c1", types.NewUserMessage("hello")))
	require.NoError(t, s.AddMessage(ctx, "c1", types.NewAssistantMessage("world")))

	msgs, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)

	empty, err := s.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisStore_MessagesForContext(t *testing.T) {
	ctx := context.Background()
	s := newRedisStoreForTest(t)

	for _, content := range []string{"oldest", "middle", "newest"} {
		msg := types.NewUserMessage(content)
		msg.Tokens = 10
		require.NoError(t, s.AddMessage(ctx, "c1", msg))
	}

	msgs, err := s.MessagesForContext(ctx, "c1", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "middle", msgs[0].Content)
	assert.Equal(t, "newest", msgs[1].Content)
}

func TestRedisStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newRedisStoreForTest(t)

	require.NoError(t, s.AddMessage(ctx, "c1", types.NewUserMessage("bye")))
	require.NoError(t, s.Clear(ctx, "c1"))

	msgs, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr(), TTL: time.Minute}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddMessage(ctx, "c1", types.NewUserMessage("expiring")))

	mr.FastForward(2 * time.Minute)
	msgs, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs, "idle conversations expire")
}

func TestNewRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
