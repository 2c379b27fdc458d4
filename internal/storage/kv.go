package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
)

// DefaultMaxValueBytes caps a single stored value.
const DefaultMaxValueBytes = 16 << 20

// Store is a write-once key/value store. A key, once associated, keeps its
// value.
type Store struct {
	db            *sql.DB
	maxValueBytes int
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, maxValueBytes: DefaultMaxValueBytes}
}

// Put associates key with value, failing with ErrKeyExists if key is taken.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("key is empty")
	}
	if len(value) > s.maxValueBytes {
		return fmt.Errorf("value exceeds max size (%d bytes)", s.maxValueBytes)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, "INSERT INTO kv(key, value, created_at) VALUES(?, ?, ?);", key, value, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyExists
		}
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

// Get returns the value for key or ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?;", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Has reports whether key is associated.
func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM kv WHERE key = ?;", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check key: %w", err)
	}
	return true, nil
}

// Count returns the number of stored keys.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}
