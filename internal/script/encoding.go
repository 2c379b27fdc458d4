package script

import (
	"encoding/binary"
	"fmt"
)

// Size class tags. Any header byte at or below maxInlineSize is itself the
// payload length.
const (
	maxInlineSize = 120

	tagUint8  byte = 121
	tagUint16 byte = 122
	tagUint32 byte = 123

	instructionFlag byte = 0x80

	// MaxInstructionLen is the longest instruction name the header can describe.
	MaxInstructionLen = 127
)

// Kind tells an instruction reference apart from a data value.
type Kind uint8

const (
	KindData Kind = iota
	KindInstruction
)

func (k Kind) String() string {
	if k == KindInstruction {
		return "instruction"
	}
	return "data"
}

// Header describes an encoded item using only its leading bytes.
type Header struct {
	Kind       Kind
	PayloadLen int
	HeaderLen  int
}

// Len is the total encoded length of the item.
func (h Header) Len() int { return h.HeaderLen + h.PayloadLen }

// EncodeInstruction encodes an instruction name as `0x80|len` followed by the
// name bytes.
func EncodeInstruction(name []byte) ([]byte, error) {
	if len(name) == 0 || len(name) > MaxInstructionLen {
		return nil, &Error{Kind: MalformedHeader, Value: clone(name),
			Err: fmt.Errorf("instruction name length %d out of range 1..%d", len(name), MaxInstructionLen)}
	}
	for _, c := range name {
		if c >= 0x80 {
			return nil, &Error{Kind: MalformedHeader, Value: clone(name),
				Err: fmt.Errorf("instruction name is not ASCII")}
		}
	}
	out := make([]byte, 0, len(name)+1)
	out = append(out, instructionFlag|byte(len(name)))
	return append(out, name...), nil
}

// MustInstruction is like EncodeInstruction but panics. Intended for opcode
// tables built at package init.
func MustInstruction(name string) []byte {
	b, err := EncodeInstruction([]byte(name))
	if err != nil {
		panic(err)
	}
	return b
}

// EncodeData encodes value with the smallest size class that fits it.
func EncodeData(value []byte) []byte {
	return AppendData(make([]byte, 0, OffsetBySize(len(value))+len(value)), value)
}

// AppendData appends the encoding of value to dst.
func AppendData(dst, value []byte) []byte {
	n := len(value)
	switch {
	case n <= maxInlineSize:
		dst = append(dst, byte(n))
	case n <= 0xff:
		dst = append(dst, tagUint8, byte(n))
	case n <= 0xffff:
		dst = append(dst, tagUint16)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, tagUint32)
		dst = binary.BigEndian.AppendUint32(dst, uint32(n))
	}
	return append(dst, value...)
}

// OffsetBySize returns the number of header bytes used for a data payload of
// size bytes.
func OffsetBySize(size int) int {
	switch {
	case size <= maxInlineSize:
		return 1
	case size <= 0xff:
		return 2
	case size <= 0xffff:
		return 3
	default:
		return 5
	}
}

// SizeClassOf returns the header tag chosen for a payload of size bytes. For
// inline payloads the tag is the size itself.
func SizeClassOf(size int) byte {
	switch {
	case size <= maxInlineSize:
		return byte(size)
	case size <= 0xff:
		return tagUint8
	case size <= 0xffff:
		return tagUint16
	default:
		return tagUint32
	}
}

// DecodeHeader inspects the leading bytes of an encoded item.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) == 0 {
		return Header{}, malformed(b, "empty input")
	}
	tag := b[0]
	switch {
	case tag&instructionFlag != 0:
		n := int(tag &^ instructionFlag)
		if n == 0 {
			return Header{}, malformed(b[:1], "zero-length instruction")
		}
		return Header{Kind: KindInstruction, PayloadLen: n, HeaderLen: 1}, nil
	case tag <= maxInlineSize:
		return Header{Kind: KindData, PayloadLen: int(tag), HeaderLen: 1}, nil
	case tag == tagUint8:
		if len(b) < 2 {
			return Header{}, malformed(b, "truncated 8-bit length")
		}
		return Header{Kind: KindData, PayloadLen: int(b[1]), HeaderLen: 2}, nil
	case tag == tagUint16:
		if len(b) < 3 {
			return Header{}, malformed(b, "truncated 16-bit length")
		}
		return Header{Kind: KindData, PayloadLen: int(binary.BigEndian.Uint16(b[1:3])), HeaderLen: 3}, nil
	case tag == tagUint32:
		if len(b) < 5 {
			return Header{}, malformed(b, "truncated 32-bit length")
		}
		return Header{Kind: KindData, PayloadLen: int(binary.BigEndian.Uint32(b[1:5])), HeaderLen: 5}, nil
	default:
		return Header{}, malformed(b[:1], fmt.Sprintf("unassigned size class 0x%02x", tag))
	}
}

// Item is one decoded element of a program. Raw and Payload alias the input.
type Item struct {
	Kind    Kind
	Raw     []byte
	Payload []byte
}

// IsInstruction reports whether the item is an instruction reference.
func (i Item) IsInstruction() bool { return i.Kind == KindInstruction }

// Next decodes the first item of program and returns the remaining bytes.
func Next(program []byte) (Item, []byte, error) {
	h, err := DecodeHeader(program)
	if err != nil {
		return Item{}, nil, err
	}
	end := h.Len()
	if end > len(program) {
		return Item{}, nil, malformed(program[:h.HeaderLen],
			fmt.Sprintf("payload needs %d bytes, %d available", h.PayloadLen, len(program)-h.HeaderLen))
	}
	item := Item{
		Kind:    h.Kind,
		Raw:     program[:end:end],
		Payload: program[h.HeaderLen:end:end],
	}
	return item, program[end:], nil
}

// Items decodes every item in program.
func Items(program []byte) ([]Item, error) {
	var items []Item
	for len(program) > 0 {
		item, rest, err := Next(program)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		program = rest
	}
	return items, nil
}

// DataValues decodes program and returns the payload of each data item.
// Instruction references are rejected.
func DataValues(program []byte) ([][]byte, error) {
	items, err := Items(program)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, 0, len(items))
	for _, it := range items {
		if it.IsInstruction() {
			return nil, &Error{Kind: InvalidValue, Value: clone(program),
				Err: fmt.Errorf("unexpected instruction %q in data sequence", it.Payload)}
		}
		values = append(values, it.Payload)
	}
	return values, nil
}

// PackValues encodes values as a sequence of data items, first value first.
func PackValues(values [][]byte) []byte {
	size := 0
	for _, v := range values {
		size += OffsetBySize(len(v)) + len(v)
	}
	out := make([]byte, 0, size)
	for _, v := range values {
		out = AppendData(out, v)
	}
	return out
}

func malformed(b []byte, reason string) error {
	return &Error{Kind: MalformedHeader, Value: clone(b), Err: fmt.Errorf("%s", reason)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
