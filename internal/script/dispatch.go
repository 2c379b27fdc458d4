package script

import (
	"bytes"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/pumpkin/internal/script Handler

// Outcome is the result of offering an instruction to a Handler.
type Outcome uint8

const (
	// Pass means the instruction is not one the handler owns. The Env has not
	// been touched.
	Pass Outcome = iota
	// Handled means the handler executed the instruction; the accompanying
	// error, if any, is the execution failure.
	Handled
)

func (o Outcome) String() string {
	if o == Handled {
		return "handled"
	}
	return "pass"
}

// Handler owns a fixed set of opcodes. Handle must decide Pass without
// mutating env, and once it claims an instruction it either completes it or
// fails it.
type Handler interface {
	Handle(env *Env, instruction []byte) (Outcome, error)
}

// Op binds one encoded instruction to its implementation.
type Op struct {
	Instruction []byte
	Exec        func(env *Env) error
}

// Module is a Handler backed by a table of Ops.
type Module struct {
	name string
	ops  []Op
}

// NewModule builds a module from ops.
func NewModule(name string, ops ...Op) *Module {
	return &Module{name: name, ops: ops}
}

func (m *Module) Name() string { return m.name }

// Instructions lists the encoded opcodes the module claims.
func (m *Module) Instructions() [][]byte {
	out := make([][]byte, len(m.ops))
	for i, op := range m.ops {
		out[i] = op.Instruction
	}
	return out
}

func (m *Module) Handle(env *Env, instruction []byte) (Outcome, error) {
	for _, op := range m.ops {
		if bytes.Equal(op.Instruction, instruction) {
			return Handled, op.Exec(env)
		}
	}
	return Pass, nil
}

// Chain offers instructions to its handlers in order; the first to claim an
// instruction wins.
type Chain struct {
	handlers []Handler
}

type instructionLister interface {
	Name() string
	Instructions() [][]byte
}

// NewChain assembles handlers in the given order. Handlers that list their
// instructions are checked for overlapping claims.
func NewChain(handlers ...Handler) (*Chain, error) {
	owners := make(map[string]string)
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("handler %d is nil", i)
		}
		l, ok := h.(instructionLister)
		if !ok {
			continue
		}
		for _, instr := range l.Instructions() {
			if prev, dup := owners[string(instr)]; dup {
				return nil, fmt.Errorf("instruction %q claimed by both %s and %s", Name(instr), prev, l.Name())
			}
			owners[string(instr)] = l.Name()
		}
	}
	return &Chain{handlers: handlers}, nil
}

// Len returns the number of handlers.
func (c *Chain) Len() int { return len(c.handlers) }

// HandlerInfo describes one link of a chain.
type HandlerInfo struct {
	Name         string   `json:"name"`
	Instructions []string `json:"instructions"`
}

// Catalog lists the handlers that advertise their instructions, in dispatch
// order.
func (c *Chain) Catalog() []HandlerInfo {
	var out []HandlerInfo
	for _, h := range c.handlers {
		l, ok := h.(instructionLister)
		if !ok {
			continue
		}
		info := HandlerInfo{Name: l.Name()}
		for _, instr := range l.Instructions() {
			info.Instructions = append(info.Instructions, Name(instr))
		}
		out = append(out, info)
	}
	return out
}

// Dispatch resolves instruction to exactly one handler.
func (c *Chain) Dispatch(env *Env, instruction []byte) error {
	for _, h := range c.handlers {
		outcome, err := h.Handle(env, instruction)
		if outcome == Handled {
			return err
		}
	}
	return NewUnknownInstruction(instruction)
}

// Name returns the readable name of an encoded instruction, or the input
// unchanged when it is not one.
func Name(instruction []byte) string {
	if len(instruction) > 1 && instruction[0]&instructionFlag != 0 &&
		int(instruction[0]&^instructionFlag) == len(instruction)-1 {
		return string(instruction[1:])
	}
	return string(instruction)
}
