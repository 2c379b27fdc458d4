package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "pumpkin.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv';").Scan(&name); err != nil {
		t.Fatalf("table kv missing: %v", err)
	}
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestStorePutGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(db)

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))

	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	err = s.Put(ctx, []byte("k"), []byte("other"))
	assert.True(t, errors.Is(err, ErrKeyExists))

	_, err = s.Get(ctx, []byte("missing"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	ok, err := s.Has(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, s.Put(ctx, nil, []byte("v")))
}

func TestStoreEmptyValue(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(db)

	require.NoError(t, s.Put(ctx, []byte("empty"), []byte{}))
	got, err := s.Get(ctx, []byte("empty"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}
