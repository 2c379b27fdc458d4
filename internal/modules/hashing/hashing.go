// Package hashing implements content hashing instructions.
package hashing

import (
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var HashBlake3 = script.MustInstruction("HASH/BLAKE3")

func New() *script.Module {
	return script.NewModule("hashing",
		script.Op{Instruction: HashBlake3, Exec: hashBlake3},
	)
}

// v -- digest(32)
func hashBlake3(env *script.Env) error {
	v, err := env.Pop()
	if err != nil {
		return err
	}
	sum := blake3.Sum256(v)
	env.Push(env.AllocWrite(sum[:]))
	return nil
}
