// Package binary implements byte-string instructions.
package binary

import (
	"bytes"
	"fmt"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	CONCAT = script.MustInstruction("CONCAT")
	LENGTH = script.MustInstruction("LENGTH")
	EQUALQ = script.MustInstruction("EQUAL?")
	SLICE  = script.MustInstruction("SLICE")
)

var (
	True  = []byte{1}
	False = []byte{0}
)

func New() *script.Module {
	return script.NewModule("binary",
		script.Op{Instruction: CONCAT, Exec: concat},
		script.Op{Instruction: LENGTH, Exec: length},
		script.Op{Instruction: EQUALQ, Exec: equal},
		script.Op{Instruction: SLICE, Exec: slice},
	)
}

func pop2(env *script.Env) (a, b []byte, err error) {
	if env.Depth() < 2 {
		return nil, nil, script.ErrEmptyStack
	}
	b, _ = env.Pop()
	a, _ = env.Pop()
	return a, b, nil
}

// a b -- ab
func concat(env *script.Env) error {
	a, b, err := pop2(env)
	if err != nil {
		return err
	}
	out := env.Alloc(len(a) + len(b))
	copy(out, a)
	copy(out[len(a):], b)
	env.Push(out)
	return nil
}

// a -- n
func length(env *script.Env) error {
	a, err := env.Pop()
	if err != nil {
		return err
	}
	env.Push(env.AllocWrite(script.EncodeUint(uint64(len(a)))))
	return nil
}

// a b -- bool
func equal(env *script.Env) error {
	a, b, err := pop2(env)
	if err != nil {
		return err
	}
	if bytes.Equal(a, b) {
		env.Push(True)
	} else {
		env.Push(False)
	}
	return nil
}

// v start end -- v[start:end]
func slice(env *script.Env) error {
	if env.Depth() < 3 {
		return script.ErrEmptyStack
	}
	endB, _ := env.Pop()
	startB, _ := env.Pop()
	v, _ := env.Pop()

	start, err := script.DecodeUint(startB)
	if err != nil {
		return err
	}
	end, err := script.DecodeUint(endB)
	if err != nil {
		return err
	}
	if start > end || end > uint64(len(v)) {
		return script.NewInvalidValue(v, fmt.Errorf("range %d..%d out of bounds for length %d", start, end, len(v)))
	}
	env.Push(v[start:end:end])
	return nil
}
