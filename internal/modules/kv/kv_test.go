package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/script"
	"github.com/mattjoyce/pumpkin/internal/storage"
)

func newModule(t *testing.T) *script.Module {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(storage.NewStore(db))
}

func newEnv(t *testing.T) *script.Env {
	t.Helper()
	env := script.NewEnv(context.Background())
	t.Cleanup(env.Release)
	return env
}

func run(t *testing.T, m *script.Module, env *script.Env, instruction []byte) error {
	t.Helper()
	outcome, err := m.Handle(env, instruction)
	require.Equal(t, script.Handled, outcome)
	return err
}

func TestAssocRetr(t *testing.T) {
	m := newModule(t)
	env := newEnv(t)

	env.Push([]byte("key"))
	env.Push([]byte("value"))
	require.NoError(t, run(t, m, env, ASSOC))
	assert.Equal(t, 0, env.Depth())

	env.Push([]byte("key"))
	require.NoError(t, run(t, m, env, RETR))
	assert.Equal(t, [][]byte{[]byte("value")}, env.Stack())
}

func TestAssocDuplicate(t *testing.T) {
	m := newModule(t)
	env := newEnv(t)

	env.Push([]byte("key"))
	env.Push([]byte("one"))
	require.NoError(t, run(t, m, env, ASSOC))

	env.Push([]byte("key"))
	env.Push([]byte("two"))
	err := run(t, m, env, ASSOC)
	require.True(t, errors.Is(err, script.ErrDuplicateKey))
	assert.Equal(t, []byte("key"), script.AsError(err).Value)
}

func TestRetrUnknown(t *testing.T) {
	m := newModule(t)
	env := newEnv(t)

	env.Push([]byte("missing"))
	err := run(t, m, env, RETR)
	assert.True(t, errors.Is(err, script.ErrUnknownKey))
}

func TestAssocQuery(t *testing.T) {
	m := newModule(t)
	env := newEnv(t)

	env.Push([]byte("k"))
	require.NoError(t, run(t, m, env, ASSOCQ))
	assert.Equal(t, [][]byte{{0}}, env.Stack())

	env.Truncate(0)
	env.Push([]byte("k"))
	env.Push([]byte("v"))
	require.NoError(t, run(t, m, env, ASSOC))
	env.Push([]byte("k"))
	require.NoError(t, run(t, m, env, ASSOCQ))
	assert.Equal(t, [][]byte{{1}}, env.Stack())
}

type failingStore struct{ err error }

func (f failingStore) Put(context.Context, []byte, []byte) error   { return f.err }
func (f failingStore) Get(context.Context, []byte) ([]byte, error) { return nil, f.err }
func (f failingStore) Has(context.Context, []byte) (bool, error)   { return false, f.err }

func TestStoreFailureIsInternal(t *testing.T) {
	m := New(failingStore{err: errors.New("disk gone")})
	env := newEnv(t)

	env.Push([]byte("k"))
	err := run(t, m, env, RETR)
	require.Error(t, err)
	assert.Equal(t, script.Internal, script.AsError(err).Kind)
}

func TestAssocEmptyKey(t *testing.T) {
	m := newModule(t)
	env := newEnv(t)

	env.Push([]byte{})
	env.Push([]byte("v"))
	assert.True(t, errors.Is(run(t, m, env, ASSOC), script.ErrInvalidValue))
}
