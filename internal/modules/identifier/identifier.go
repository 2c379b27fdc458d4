// Package identifier implements UUID generation and conversion instructions.
package identifier

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	UUIDV4       = script.MustInstruction("UUID/V4")
	UUIDToString = script.MustInstruction("UUID/->STRING")
	UUIDStringTo = script.MustInstruction("UUID/STRING->")
)

// canonicalLen is the length of the 8-4-4-4-12 hyphenated form.
const canonicalLen = 36

// New returns the identifier module.
func New() *script.Module {
	return script.NewModule("identifier",
		script.Op{Instruction: UUIDV4, Exec: generate},
		script.Op{Instruction: UUIDToString, Exec: toText},
		script.Op{Instruction: UUIDStringTo, Exec: fromText},
	)
}

func generate(env *script.Env) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return &script.Error{Kind: script.Internal, Err: fmt.Errorf("generate uuid: %w", err)}
	}
	buf := env.Alloc(16)
	copy(buf, id[:])
	env.Push(buf)
	return nil
}

func toText(env *script.Env) error {
	top, err := env.Pop()
	if err != nil {
		return err
	}
	// Any 16 bytes render; variant and version bits are not inspected.
	id, err := uuid.FromBytes(top)
	if err != nil {
		return script.NewInvalidValue(top, err)
	}
	env.Push(env.AllocWrite([]byte(id.String())))
	return nil
}

func fromText(env *script.Env) error {
	top, err := env.Pop()
	if err != nil {
		return err
	}
	if !utf8.Valid(top) {
		return script.NewInvalidValue(top, fmt.Errorf("not UTF-8"))
	}
	// uuid.ParseBytes also accepts urn: and braced forms; only the
	// hyphenated form is valid here.
	if len(top) != canonicalLen {
		return script.NewInvalidValue(top, fmt.Errorf("not a hyphenated uuid"))
	}
	id, err := uuid.ParseBytes(top)
	if err != nil {
		return script.NewInvalidValue(top, err)
	}
	buf := env.Alloc(16)
	copy(buf, id[:])
	env.Push(buf)
	return nil
}
