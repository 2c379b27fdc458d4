package script

import (
	"fmt"
	"math/big"
)

// Part is one element of a Program under construction.
type Part interface {
	appendTo(dst []byte) ([]byte, error)
}

// Data is a literal value.
type Data []byte

func (d Data) appendTo(dst []byte) ([]byte, error) { return AppendData(dst, d), nil }

// Instruction invokes the named instruction.
type Instruction string

func (i Instruction) appendTo(dst []byte) ([]byte, error) {
	b, err := EncodeInstruction([]byte(i))
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

// InstructionRef pushes the encoded instruction as data, for DEF and SET.
type InstructionRef string

func (r InstructionRef) appendTo(dst []byte) ([]byte, error) {
	b, err := EncodeInstruction([]byte(r))
	if err != nil {
		return nil, err
	}
	return AppendData(dst, b), nil
}

// Program is an ordered list of parts.
type Program []Part

// Bytes encodes the program.
func (p Program) Bytes() ([]byte, error) {
	var out []byte
	var err error
	for i, part := range p {
		if out, err = part.appendTo(out); err != nil {
			return nil, fmt.Errorf("program part %d: %w", i, err)
		}
	}
	return out, nil
}

// MustBytes is like Bytes but panics on error.
func (p Program) MustBytes() []byte {
	b, err := p.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

// EncodeUint renders n as a minimal big-endian unsigned integer. Zero is a
// single zero byte.
func EncodeUint(n uint64) []byte {
	if n == 0 {
		return []byte{0}
	}
	return new(big.Int).SetUint64(n).Bytes()
}

// DecodeUint parses a big-endian unsigned integer of at most 8 significant
// bytes.
func DecodeUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, NewInvalidValue(b, fmt.Errorf("empty integer"))
	}
	n := new(big.Int).SetBytes(b)
	if !n.IsUint64() {
		return 0, NewInvalidValue(b, fmt.Errorf("integer overflows 64 bits"))
	}
	return n.Uint64(), nil
}
