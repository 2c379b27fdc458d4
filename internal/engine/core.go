package engine

import (
	"bytes"
	"fmt"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	EVAL  = script.MustInstruction("EVAL")
	TRY   = script.MustInstruction("TRY")
	DEF   = script.MustInstruction("DEF")
	SET   = script.MustInstruction("SET")
	STACK = script.MustInstruction("STACK")
)

// Dictionary entries are tagged with what invoking them does.
const (
	boundClosure byte = iota
	boundValue
)

// core implements instructions that need the interpreter itself, and
// resolves words bound with DEF and SET before any module sees them.
type core struct {
	engine *Engine
}

func (c *core) Name() string { return "core" }

func (c *core) Instructions() [][]byte {
	return [][]byte{EVAL, TRY, DEF, SET, STACK}
}

func (c *core) Handle(env *script.Env, instruction []byte) (script.Outcome, error) {
	if def, ok := env.Lookup(instruction); ok {
		return script.Handled, c.invoke(env, def)
	}
	switch {
	case bytes.Equal(instruction, EVAL):
		return script.Handled, c.eval(env)
	case bytes.Equal(instruction, TRY):
		return script.Handled, c.try(env)
	case bytes.Equal(instruction, DEF):
		return script.Handled, c.bind(env, boundClosure)
	case bytes.Equal(instruction, SET):
		return script.Handled, c.bind(env, boundValue)
	case bytes.Equal(instruction, STACK):
		return script.Handled, c.stack(env)
	}
	return script.Pass, nil
}

func (c *core) call(env *script.Env, closure []byte) error {
	if err := env.Enter(c.engine.cfg.MaxCallDepth); err != nil {
		return err
	}
	defer env.Leave()
	return c.engine.exec(env, closure)
}

func (c *core) invoke(env *script.Env, def []byte) error {
	if def[0] == boundValue {
		env.Push(def[1:])
		return nil
	}
	return c.call(env, def[1:])
}

// eval: closure --
func (c *core) eval(env *script.Env) error {
	closure, err := env.Pop()
	if err != nil {
		return err
	}
	return c.call(env, closure)
}

// try: closure -- marker
//
// On success an empty value is pushed. On failure the stack is cut back to
// where it was before the closure was popped and the encoded error is pushed.
func (c *core) try(env *script.Env) error {
	closure, err := env.Pop()
	if err != nil {
		return err
	}
	depth := env.Depth()
	err = c.engine.protect(func() error { return c.call(env, closure) })
	if err != nil {
		env.Truncate(depth)
		env.Push(env.AllocWrite(script.AsError(err).Encode()))
		return nil
	}
	env.Push(env.Alloc(0))
	return nil
}

// bind: definition ref --
func (c *core) bind(env *script.Env, tag byte) error {
	ref, err := env.Pop()
	if err != nil {
		return err
	}
	definition, err := env.Pop()
	if err != nil {
		return err
	}
	item, rest, err := script.Next(ref)
	if err != nil || !item.IsInstruction() || len(rest) != 0 {
		return script.NewInvalidValue(ref, fmt.Errorf("not an instruction reference"))
	}
	entry := env.Alloc(len(definition) + 1)
	entry[0] = tag
	copy(entry[1:], definition)
	env.Bind(ref, entry)
	return nil
}

// stack: ... -- packed
func (c *core) stack(env *script.Env) error {
	packed := script.PackValues(env.Stack())
	env.Truncate(0)
	env.Push(env.AllocWrite(packed))
	return nil
}
