// Package kv provides the string-keyed document store backing grievances, departments,
// users and classification logs. Values are JSON documents; ordered id lists are kept
// newest-first under their own keys.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal contract every backend implements.
//
// List keys are only ever touched through PushFront, Members and Delete; document keys
// through Get, Set, Delete and ScanPrefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ScanPrefix(ctx context.Context, prefix string) ([][]byte, error)
	PushFront(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)
	Close() error
}

// GetJSON loads key and decodes it into dest.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
