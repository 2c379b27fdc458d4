package script

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. The numeric value is the wire code
// used when an error is encoded onto the stack.
type ErrorKind uint8

const (
	UnknownInstruction ErrorKind = iota + 1
	EmptyStack
	InvalidValue
	MalformedHeader
	DuplicateKey
	UnknownKey
	CallDepthExceeded
	Internal
)

var kindDescriptions = map[ErrorKind]string{
	UnknownInstruction: "Unknown instruction",
	EmptyStack:         "Empty stack",
	InvalidValue:       "Invalid value",
	MalformedHeader:    "Malformed header",
	DuplicateKey:       "Duplicate key",
	UnknownKey:         "Unknown key",
	CallDepthExceeded:  "Call depth exceeded",
	Internal:           "Internal error",
}

func (k ErrorKind) String() string {
	if d, ok := kindDescriptions[k]; ok {
		return d
	}
	return fmt.Sprintf("Error 0x%02x", uint8(k))
}

// Sentinels for errors.Is comparisons. Only the kind is compared.
var (
	ErrUnknownInstruction = &Error{Kind: UnknownInstruction}
	ErrEmptyStack         = &Error{Kind: EmptyStack}
	ErrInvalidValue       = &Error{Kind: InvalidValue}
	ErrMalformedHeader    = &Error{Kind: MalformedHeader}
	ErrDuplicateKey       = &Error{Kind: DuplicateKey}
	ErrUnknownKey         = &Error{Kind: UnknownKey}
	ErrCallDepthExceeded  = &Error{Kind: CallDepthExceeded}
	ErrInternal           = &Error{Kind: Internal}
)

// Error is a failure raised while decoding or executing a program. Value holds
// the offending bytes (an opcode, a popped value) and is owned by the error,
// never by an Env arena.
type Error struct {
	Kind  ErrorKind
	Value []byte
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value 0x%x)", e.Value)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Encode renders the error as a program of data items:
// [code] "description" [value].
func (e *Error) Encode() []byte {
	values := [][]byte{{byte(e.Kind)}, []byte(e.Kind.String())}
	if e.Value != nil {
		values = append(values, e.Value)
	}
	return PackValues(values)
}

// DecodeError parses an error previously produced by Encode.
func DecodeError(b []byte) (*Error, error) {
	values, err := DataValues(b)
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	if len(values) < 2 || len(values[0]) != 1 {
		return nil, fmt.Errorf("decode error: expected [code description value?], got %d items", len(values))
	}
	e := &Error{Kind: ErrorKind(values[0][0])}
	if len(values) > 2 {
		e.Value = clone(values[2])
	}
	return e, nil
}

// AsError converts any error into an *Error, wrapping foreign errors as
// Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: Internal, Err: err}
}

// NewInvalidValue reports value as failing validation. The bytes are copied
// so the error survives its Env.
func NewInvalidValue(value []byte, reason error) error {
	return &Error{Kind: InvalidValue, Value: clone(value), Err: reason}
}

// NewUnknownInstruction reports that no handler claimed instruction.
func NewUnknownInstruction(instruction []byte) error {
	return &Error{Kind: UnknownInstruction, Value: clone(instruction)}
}
