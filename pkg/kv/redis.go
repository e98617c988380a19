package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore maps documents to Redis strings and id lists to Redis lists.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Every key is namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// ScanPrefix walks the keyspace with SCAN and loads the matches in one MGET.
func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	pattern := s.key(prefix) + "*"
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return [][]byte{}, nil
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", pattern, err)
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

func (s *RedisStore) PushFront(ctx context.Context, key, member string) error {
	if err := s.client.LPush(ctx, s.key(key), member).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	return members, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
