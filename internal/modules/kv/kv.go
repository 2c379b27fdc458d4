// Package kv implements write-once key/value instructions over a Store.
package kv

import (
	"context"
	"errors"

	"github.com/mattjoyce/pumpkin/internal/script"
	"github.com/mattjoyce/pumpkin/internal/storage"
)

var (
	ASSOC  = script.MustInstruction("ASSOC")
	RETR   = script.MustInstruction("RETR")
	ASSOCQ = script.MustInstruction("ASSOC?")
)

// Store is the persistence the instructions run against.
type Store interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, error)
	Has(ctx context.Context, key []byte) (bool, error)
}

func New(store Store) *script.Module {
	m := &kv{store: store}
	return script.NewModule("kv",
		script.Op{Instruction: ASSOC, Exec: m.assoc},
		script.Op{Instruction: RETR, Exec: m.retr},
		script.Op{Instruction: ASSOCQ, Exec: m.assocq},
	)
}

type kv struct {
	store Store
}

// key value --
func (m *kv) assoc(env *script.Env) error {
	if env.Depth() < 2 {
		return script.ErrEmptyStack
	}
	value, _ := env.Pop()
	key, _ := env.Pop()
	if len(key) == 0 {
		return script.NewInvalidValue(key, errors.New("key is empty"))
	}
	err := m.store.Put(env.Context(), key, value)
	if errors.Is(err, storage.ErrKeyExists) {
		return &script.Error{Kind: script.DuplicateKey, Value: append([]byte{}, key...)}
	}
	return err
}

// key -- value
func (m *kv) retr(env *script.Env) error {
	key, err := env.Pop()
	if err != nil {
		return err
	}
	value, err := m.store.Get(env.Context(), key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &script.Error{Kind: script.UnknownKey, Value: append([]byte{}, key...)}
	}
	if err != nil {
		return err
	}
	env.Push(env.AllocWrite(value))
	return nil
}

// key -- flag
func (m *kv) assocq(env *script.Env) error {
	key, err := env.Pop()
	if err != nil {
		return err
	}
	ok, err := m.store.Has(env.Context(), key)
	if err != nil {
		return err
	}
	flag := env.Alloc(1)
	if ok {
		flag[0] = 1
	}
	env.Push(flag)
	return nil
}
