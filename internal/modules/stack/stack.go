// Package stack implements stack-shuffling instructions.
package stack

import (
	"fmt"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	DROP   = script.MustInstruction("DROP")
	DUP    = script.MustInstruction("DUP")
	SWAP   = script.MustInstruction("SWAP")
	OVER   = script.MustInstruction("OVER")
	ROT    = script.MustInstruction("ROT")
	DEPTH  = script.MustInstruction("DEPTH")
	WRAP   = script.MustInstruction("WRAP")
	UNWRAP = script.MustInstruction("UNWRAP")
)

func New() *script.Module {
	return script.NewModule("stack",
		script.Op{Instruction: DROP, Exec: drop},
		script.Op{Instruction: DUP, Exec: dup},
		script.Op{Instruction: SWAP, Exec: swap},
		script.Op{Instruction: OVER, Exec: over},
		script.Op{Instruction: ROT, Exec: rot},
		script.Op{Instruction: DEPTH, Exec: depth},
		script.Op{Instruction: WRAP, Exec: wrap},
		script.Op{Instruction: UNWRAP, Exec: unwrap},
	)
}

// need fails with EmptyStack before anything is popped, so shuffles are
// all-or-nothing.
func need(env *script.Env, n int) error {
	if env.Depth() < n {
		return script.ErrEmptyStack
	}
	return nil
}

// a --
func drop(env *script.Env) error {
	_, err := env.Pop()
	return err
}

// a -- a a
func dup(env *script.Env) error {
	a, err := env.Pop()
	if err != nil {
		return err
	}
	env.Push(a)
	env.Push(a)
	return nil
}

// a b -- b a
func swap(env *script.Env) error {
	if err := need(env, 2); err != nil {
		return err
	}
	b, _ := env.Pop()
	a, _ := env.Pop()
	env.Push(b)
	env.Push(a)
	return nil
}

// a b -- a b a
func over(env *script.Env) error {
	if err := need(env, 2); err != nil {
		return err
	}
	s := env.Stack()
	env.Push(s[len(s)-2])
	return nil
}

// a b c -- b c a
func rot(env *script.Env) error {
	if err := need(env, 3); err != nil {
		return err
	}
	c, _ := env.Pop()
	b, _ := env.Pop()
	a, _ := env.Pop()
	env.Push(b)
	env.Push(c)
	env.Push(a)
	return nil
}

// -- n
func depth(env *script.Env) error {
	env.Push(env.AllocWrite(script.EncodeUint(uint64(env.Depth()))))
	return nil
}

// a1 .. an n -- packed
func wrap(env *script.Env) error {
	top, err := env.Pop()
	if err != nil {
		return err
	}
	n, err := script.DecodeUint(top)
	if err != nil {
		return err
	}
	if n > uint64(env.Depth()) {
		return script.ErrEmptyStack
	}
	s := env.Stack()
	from := len(s) - int(n)
	packed := script.PackValues(s[from:])
	env.Truncate(from)
	env.Push(env.AllocWrite(packed))
	return nil
}

// packed -- a1 .. an
func unwrap(env *script.Env) error {
	top, err := env.Pop()
	if err != nil {
		return err
	}
	values, err := script.DataValues(top)
	if err != nil {
		return script.NewInvalidValue(top, fmt.Errorf("not a packed sequence: %w", err))
	}
	for _, v := range values {
		env.Push(v)
	}
	return nil
}
