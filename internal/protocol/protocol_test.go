package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/script"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{{}, []byte("a"), bytes.Repeat([]byte{7}, 70000)}
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p))
	}
	for _, want := range payloads {
		got, err := ReadFrame(&buf, DefaultMaxFrameSize)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ReadFrame(&buf, DefaultMaxFrameSize)
	assert.Equal(t, io.EOF, err)
}

func TestFrameHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("xyz")))
	assert.Equal(t, []byte{0, 0, 0, 3, 'x', 'y', 'z'}, buf.Bytes())
}

func TestReadFrameTooLarge(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1024)
	_, err := ReadFrame(bytes.NewReader(hdr[:]), 16)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestReadFrameTruncated(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 9, 'a'}), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	_, err = ReadFrame(bytes.NewReader([]byte{0, 0}), 0)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDecodeTrace(t *testing.T) {
	msg, err := Decode(EncodeTrace([]byte("point")))
	require.NoError(t, err)
	tr, ok := msg.(*Trace)
	require.True(t, ok)
	assert.Equal(t, []byte("point"), tr.Value)

	_, err = Decode(append(EncodeTrace([]byte("a")), 0x00))
	assert.Error(t, err)

	_, err = Decode(append([]byte("TRACE"), script.MustInstruction("DROP")...))
	assert.Error(t, err)
}

func TestDecodeResultSuccess(t *testing.T) {
	stack := [][]byte{[]byte("a"), {}, bytes.Repeat([]byte{1}, 300)}
	msg, err := Decode(EncodeResult(stack))
	require.NoError(t, err)
	res, ok := msg.(*Result)
	require.True(t, ok)
	assert.False(t, res.Failed())
	assert.Equal(t, stack, res.Stack)
}

func TestDecodeResultSingleValueWithMarker(t *testing.T) {
	msg, err := Decode(EncodeResult([][]byte{[]byte("only")}))
	require.NoError(t, err)
	res := msg.(*Result)
	assert.False(t, res.Failed())
	assert.Equal(t, [][]byte{[]byte("only")}, res.Stack)
}

func TestDecodeResultEmptyStack(t *testing.T) {
	for _, payload := range [][]byte{EncodeResult(nil), []byte("RESULT")} {
		msg, err := Decode(payload)
		require.NoError(t, err)
		res := msg.(*Result)
		assert.False(t, res.Failed())
		assert.Empty(t, res.Stack)
	}
}

func TestDecodeResultFailure(t *testing.T) {
	e := &script.Error{Kind: script.EmptyStack}
	msg, err := Decode(EncodeFailure(e))
	require.NoError(t, err)
	res := msg.(*Result)
	require.True(t, res.Failed())
	require.NotNil(t, res.Failure)
	assert.Equal(t, script.EmptyStack, res.Failure.Kind)
	assert.Empty(t, res.Stack)
}

func TestDecodeResultLoneValueIsFailureMarker(t *testing.T) {
	payload := script.AppendData([]byte("RESULT"), []byte("not an error program"))
	msg, err := Decode(payload)
	require.NoError(t, err)
	res := msg.(*Result)
	assert.True(t, res.Failed())
	assert.Nil(t, res.Failure)
	assert.Equal(t, []byte("not an error program"), res.FailureRaw)
}

func TestDecodeResultFailureAfterStack(t *testing.T) {
	e := &script.Error{Kind: script.InvalidValue, Value: []byte("v")}
	payload := script.AppendData([]byte("RESULT"), []byte("left"))
	payload = script.AppendData(payload, e.Encode())

	msg, err := Decode(payload)
	require.NoError(t, err)
	res := msg.(*Result)
	require.True(t, res.Failed())
	assert.Equal(t, script.InvalidValue, res.Failure.Kind)
	assert.Equal(t, []byte("v"), res.Failure.Value)
	assert.Equal(t, [][]byte{[]byte("left")}, res.Stack)
}

func TestDecodeResultMalformed(t *testing.T) {
	_, err := Decode([]byte{'R', 'E', 'S', 'U', 'L', 'T', 0x05, 'a'})
	assert.True(t, errors.Is(err, script.ErrMalformedHeader))
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte("HELLO world"))
	assert.True(t, errors.Is(err, ErrUnknownTag))

	_, err = Decode(nil)
	assert.True(t, errors.Is(err, ErrUnknownTag))
}

func TestSubmissionIDsAreFresh(t *testing.T) {
	a, b := NewSubmission(), NewSubmission()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.Topic(), 16)
}

func TestWrapLayout(t *testing.T) {
	s := NewSubmission()
	compiled := script.Program{script.Data("x"), script.Instruction("TRACE")}.MustBytes()

	items, err := script.Items(s.Wrap(compiled))
	require.NoError(t, err)
	require.Len(t, items, 17)

	assert.Equal(t, s.Topic(), items[0].Payload)
	assert.Equal(t, "SUBSCRIBE", script.Name(items[1].Raw))
	assert.Equal(t, script.MustInstruction("___subscription___"), items[2].Payload)
	assert.Equal(t, s.TraceClosure(), items[4].Payload)
	assert.Equal(t, script.MustInstruction("TRACE"), items[5].Payload)
	assert.Equal(t, compiled, items[7].Payload)
	assert.Equal(t, "TRY", script.Name(items[8].Raw))
	assert.Equal(t, []byte("RESULT"), items[10].Payload)
	assert.Equal(t, s.Topic(), items[13].Payload)
	assert.Equal(t, "UNSUBSCRIBE", script.Name(items[16].Raw))
}
