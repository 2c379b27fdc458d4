package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRecordsPID(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "data", "pumpkin.db")
	l, err := Acquire(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	assert.Equal(t, dbPath+".lock", l.Path())
	pid, err := Holder(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestSecondAcquireFails(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "pumpkin.db")
	first, err := Acquire(dbPath)
	require.NoError(t, err)

	_, err = Acquire(dbPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	again, err := Acquire(dbPath)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireEmptyPath(t *testing.T) {
	_, err := Acquire("")
	assert.Error(t, err)
}
