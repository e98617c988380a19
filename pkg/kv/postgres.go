package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT NOT NULL PRIMARY KEY,
	value JSONB NOT NULL
)`

// PostgresStore keeps every entry as a JSONB row in kv_store. Lists are JSONB arrays
// prepended in a single upsert so concurrent pushes never drop members.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the kv_store table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, kvSchema); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_store WHERE key = $1`
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return raw, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO kv_store (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) ScanPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	const query = `SELECT value FROM kv_store WHERE key LIKE $1 ORDER BY key`
	var rows [][]byte
	if err := s.db.SelectContext(ctx, &rows, query, escapeLike(prefix)+"%"); err != nil {
		return nil, fmt.Errorf("kv scan %s: %w", prefix, err)
	}
	if rows == nil {
		rows = [][]byte{}
	}
	return rows, nil
}

func (s *PostgresStore) PushFront(ctx context.Context, key, member string) error {
	const query = `INSERT INTO kv_store (key, value) VALUES ($1, jsonb_build_array($2::text))
ON CONFLICT (key) DO UPDATE SET value = jsonb_build_array($2::text) || kv_store.value`
	if _, err := s.db.ExecContext(ctx, query, key, member); err != nil {
		return fmt.Errorf("kv push %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Members(ctx context.Context, key string) ([]string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", key, err)
	}
	return members, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func escapeLike(raw string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(raw)
}
