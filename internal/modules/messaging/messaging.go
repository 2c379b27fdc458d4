// Package messaging implements the publish/subscribe instructions used by
// the trace side-channel.
package messaging

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	SUBSCRIBE   = script.MustInstruction("SUBSCRIBE")
	UNSUBSCRIBE = script.MustInstruction("UNSUBSCRIBE")
	PUBLISH     = script.MustInstruction("PUBLISH")
)

// New returns the messaging module bound to bus.
func New(bus *events.Bus) *script.Module {
	m := &messaging{bus: bus}
	return script.NewModule("messaging",
		script.Op{Instruction: SUBSCRIBE, Exec: m.subscribe},
		script.Op{Instruction: UNSUBSCRIBE, Exec: m.unsubscribe},
		script.Op{Instruction: PUBLISH, Exec: m.publish},
	)
}

type messaging struct {
	bus *events.Bus
}

// topic -- subscription
//
// The subscription belongs to the program's session receiver, so it
// outlives the program until UNSUBSCRIBE or session close.
func (m *messaging) subscribe(env *script.Env) error {
	topic, err := env.Pop()
	if err != nil {
		return err
	}
	r := env.Receiver()
	if r == nil {
		return script.NewInvalidValue(topic, fmt.Errorf("program has no session to deliver to"))
	}
	id := m.bus.Subscribe(append([]byte{}, topic...), r)
	env.Push(env.AllocWrite(id[:]))
	return nil
}

// subscription --
func (m *messaging) unsubscribe(env *script.Env) error {
	v, err := env.Pop()
	if err != nil {
		return err
	}
	id, err := uuid.FromBytes(v)
	if err != nil {
		return script.NewInvalidValue(v, err)
	}
	m.bus.Unsubscribe(id)
	return nil
}

// message topic --
func (m *messaging) publish(env *script.Env) error {
	if env.Depth() < 2 {
		return script.ErrEmptyStack
	}
	topic, _ := env.Pop()
	message, _ := env.Pop()
	// Deliveries outlive the Env, so they must not reference its arena.
	m.bus.Publish(append([]byte{}, topic...), append([]byte{}, message...))
	return nil
}
