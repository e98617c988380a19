package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name string `json:"name"`
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetJSON(ctx, s, "ai_log:2", doc{Name: "second"}))
	require.NoError(t, SetJSON(ctx, s, "ai_log:1", doc{Name: "first"}))
	require.NoError(t, SetJSON(ctx, s, "grievance:1", doc{Name: "other"}))

	var loaded doc
	require.NoError(t, GetJSON(ctx, s, "ai_log:1", &loaded))
	assert.Equal(t, "first", loaded.Name)

	values, err := s.ScanPrefix(ctx, "ai_log:")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.JSONEq(t, `{"name":"first"}`, string(values[0]))
	assert.JSONEq(t, `{"name":"second"}`, string(values[1]))

	empty, err := s.ScanPrefix(ctx, "nothing:")
	require.NoError(t, err)
	assert.Empty(t, empty)

	members, err := s.Members(ctx, "all_grievances")
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, s.PushFront(ctx, "all_grievances", "a"))
	require.NoError(t, s.PushFront(ctx, "all_grievances", "b"))
	members, err = s.Members(ctx, "all_grievances")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, members)

	require.NoError(t, s.Delete(ctx, "ai_log:1"))
	_, err = s.Get(ctx, "ai_log:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	payload := []byte(`{"name":"x"}`)
	require.NoError(t, s.Set(ctx, "k", payload))
	payload[2] = 'X'

	raw, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"x"}`, string(raw))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "test:")
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
	assert.True(t, mr.Exists("test:ai_log:2"))
	assert.False(t, mr.Exists("ai_log:2"))
}
