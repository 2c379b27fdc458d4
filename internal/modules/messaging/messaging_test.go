package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/script"
)

func run(t *testing.T, m *script.Module, env *script.Env, instruction []byte) error {
	t.Helper()
	outcome, err := m.Handle(env, instruction)
	require.Equal(t, script.Handled, outcome)
	return err
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	box := events.NewMailbox()
	m := New(bus)

	env := script.NewEnv(context.Background(), script.WithReceiver(box))
	defer env.Release()

	env.Push([]byte("topic"))
	require.NoError(t, run(t, m, env, SUBSCRIBE))
	require.Equal(t, 1, env.Depth())
	id := append([]byte{}, env.Stack()[0]...)
	assert.Len(t, id, 16)
	assert.Equal(t, 1, bus.Len())

	env.Push([]byte("hello"))
	env.Push([]byte("topic"))
	require.NoError(t, run(t, m, env, PUBLISH))
	assert.Equal(t, 1, env.Depth())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := box.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("topic"), d.Topic)
	assert.Equal(t, []byte("hello"), d.Message)

	require.NoError(t, run(t, m, env, UNSUBSCRIBE))
	assert.Equal(t, 0, bus.Len())
	assert.Equal(t, 0, env.Depth())

	env.Push([]byte("again"))
	env.Push([]byte("topic"))
	require.NoError(t, run(t, m, env, PUBLISH))
	assert.Equal(t, 0, box.Len())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	m := New(events.NewBus())
	env := script.NewEnv(context.Background())
	defer env.Release()

	env.Push([]byte("msg"))
	env.Push([]byte("nobody"))
	assert.NoError(t, run(t, m, env, PUBLISH))
	assert.Equal(t, 0, env.Depth())
}

func TestSubscribeWithoutReceiver(t *testing.T) {
	m := New(events.NewBus())
	env := script.NewEnv(context.Background())
	defer env.Release()

	env.Push([]byte("topic"))
	err := run(t, m, env, SUBSCRIBE)
	assert.True(t, errors.Is(err, script.ErrInvalidValue))
}

func TestUnsubscribeInvalidID(t *testing.T) {
	m := New(events.NewBus())
	env := script.NewEnv(context.Background())
	defer env.Release()

	env.Push([]byte("short"))
	err := run(t, m, env, UNSUBSCRIBE)
	assert.True(t, errors.Is(err, script.ErrInvalidValue))
}

func TestPublishUnderflow(t *testing.T) {
	m := New(events.NewBus())
	env := script.NewEnv(context.Background())
	defer env.Release()

	env.Push([]byte("topic"))
	err := run(t, m, env, PUBLISH)
	assert.True(t, errors.Is(err, script.ErrEmptyStack))
	assert.Equal(t, 1, env.Depth())
}
