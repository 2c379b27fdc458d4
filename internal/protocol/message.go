package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mattjoyce/pumpkin/internal/script"
)

var (
	TraceTag  = []byte("TRACE")
	ResultTag = []byte("RESULT")
)

var ErrUnknownTag = errors.New("unknown message tag")

// Message is a decoded frame payload: either *Trace or *Result.
type Message interface {
	isMessage()
}

// Trace carries one value published by a trace point.
type Trace struct {
	Value []byte
}

// Result is the terminal message of a submission.
type Result struct {
	// Stack holds the final stack, bottom first, without the marker.
	Stack [][]byte
	// FailureRaw is the failure marker payload; nil on success.
	FailureRaw []byte
	// Failure is FailureRaw decoded, or nil if it did not decode.
	Failure *script.Error
}

func (*Trace) isMessage()  {}
func (*Result) isMessage() {}

// Failed reports whether the result is the failure-marker form.
func (r *Result) Failed() bool { return r.FailureRaw != nil }

// Decode classifies payload by its leading tag. RESULT is checked first since
// no TRACE payload can start with it.
func Decode(payload []byte) (Message, error) {
	switch {
	case bytes.HasPrefix(payload, ResultTag):
		return decodeResult(payload[len(ResultTag):])
	case bytes.HasPrefix(payload, TraceTag):
		return decodeTrace(payload[len(TraceTag):])
	}
	n := min(len(payload), len(ResultTag))
	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, payload[:n])
}

func decodeTrace(body []byte) (*Trace, error) {
	item, rest, err := script.Next(body)
	if err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if item.IsInstruction() {
		return nil, fmt.Errorf("decode trace: %w", script.NewInvalidValue(item.Raw, errors.New("trace carries an instruction")))
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode trace: %d trailing bytes", len(rest))
	}
	return &Trace{Value: item.Payload}, nil
}

// decodeResult reads items in order. Every item but the last is a stack
// entry. The last one is the marker left by TRY: empty on success, or the
// encoded error on failure.
//
// A payload whose last item is a genuine non-empty stack value, with no
// marker after it, reads as a failure. Submission.Wrap always appends the
// marker, so only hand-built payloads are affected.
func decodeResult(body []byte) (*Result, error) {
	res := &Result{Stack: [][]byte{}}
	for len(body) > 0 {
		item, rest, err := script.Next(body)
		if err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		if item.IsInstruction() {
			return nil, fmt.Errorf("decode result: %w", script.NewInvalidValue(item.Raw, errors.New("result carries an instruction")))
		}
		body = rest
		if len(rest) > 0 {
			res.Stack = append(res.Stack, item.Payload)
			continue
		}
		if len(item.Payload) > 0 {
			res.FailureRaw = item.Payload
			if e, err := script.DecodeError(item.Payload); err == nil {
				res.Failure = e
			}
		}
	}
	return res, nil
}

// EncodeTrace builds a TRACE payload carrying value.
func EncodeTrace(value []byte) []byte {
	return script.AppendData(append([]byte{}, TraceTag...), value)
}

// EncodeResult builds a successful RESULT payload, success marker included.
func EncodeResult(stack [][]byte) []byte {
	out := append([]byte{}, ResultTag...)
	for _, v := range stack {
		out = script.AppendData(out, v)
	}
	return script.AppendData(out, []byte{})
}

// EncodeFailure builds a RESULT payload in the failure-marker form.
func EncodeFailure(e *script.Error) []byte {
	return script.AppendData(append([]byte{}, ResultTag...), e.Encode())
}
