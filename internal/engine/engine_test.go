package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/modules/binary"
	"github.com/mattjoyce/pumpkin/internal/modules/messaging"
	"github.com/mattjoyce/pumpkin/internal/modules/stack"
	"github.com/mattjoyce/pumpkin/internal/script"
)

func newEngine(t *testing.T, cfg Config, handlers ...script.Handler) *Engine {
	t.Helper()
	if len(handlers) == 0 {
		handlers = []script.Handler{stack.New(), binary.New()}
	}
	e, err := New(cfg, nil, handlers...)
	require.NoError(t, err)
	return e
}

func compile(t *testing.T, src string) []byte {
	t.Helper()
	program, err := script.Compile(src)
	require.NoError(t, err)
	return program
}

func runSource(t *testing.T, e *Engine, src string) Outcome {
	t.Helper()
	return e.Run(context.Background(), compile(t, src), nil)
}

func strs(stack [][]byte) []string {
	out := make([]string, len(stack))
	for i, v := range stack {
		out[i] = string(v)
	}
	return out
}

func TestDataIsPushed(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"a" "b" 0x00`)
	require.False(t, out.Failed())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), {0}}, out.Stack)
}

func TestEmptyProgram(t *testing.T) {
	e := newEngine(t, Config{})
	out := e.Run(context.Background(), nil, nil)
	require.False(t, out.Failed())
	assert.Empty(t, out.Stack)
}

func TestUnknownInstruction(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"a" NOPE "b"`)
	require.True(t, out.Failed())
	assert.Equal(t, script.UnknownInstruction, out.Err.Kind)
	assert.Equal(t, script.MustInstruction("NOPE"), out.Err.Value)
	assert.Equal(t, []string{"a"}, strs(out.Stack))
}

func TestMalformedProgram(t *testing.T) {
	e := newEngine(t, Config{})
	out := e.Run(context.Background(), []byte{0x05, 'a'}, nil)
	require.True(t, out.Failed())
	assert.Equal(t, script.MalformedHeader, out.Err.Kind)
}

func TestEval(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"a" ["b" CONCAT] EVAL`)
	require.False(t, out.Failed(), "%v", out.Err)
	assert.Equal(t, []string{"ab"}, strs(out.Stack))
}

func TestTrySuccessPushesEmptyMarker(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `["x"] TRY`)
	require.False(t, out.Failed())
	assert.Equal(t, []string{"x", ""}, strs(out.Stack))
}

func TestTryFailureLeavesEncodedError(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"keep" ["junk" NOPE] TRY`)
	require.False(t, out.Failed())
	require.Len(t, out.Stack, 2)
	assert.Equal(t, "keep", string(out.Stack[0]))

	decoded, err := script.DecodeError(out.Stack[1])
	require.NoError(t, err)
	assert.Equal(t, script.UnknownInstruction, decoded.Kind)
	assert.Equal(t, script.MustInstruction("NOPE"), decoded.Value)
}

func TestTryConsumedValuesStayConsumed(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"a" [DROP DROP] TRY`)
	require.False(t, out.Failed())
	require.Len(t, out.Stack, 1)
	decoded, err := script.DecodeError(out.Stack[0])
	require.NoError(t, err)
	assert.Equal(t, script.EmptyStack, decoded.Kind)
}

func TestTryOnEmptyStack(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `TRY`)
	require.True(t, out.Failed())
	assert.True(t, errors.Is(out.Err, script.ErrEmptyStack))
}

func TestDefAndSet(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `["!" CONCAT] 'BANG DEF "v" 'VAL SET "hi" BANG VAL`)
	require.False(t, out.Failed(), "%v", out.Err)
	assert.Equal(t, []string{"hi!", "v"}, strs(out.Stack))
}

func TestDefShadowsModuleInstruction(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `["shadowed"] 'DROP DEF "a" DROP`)
	require.False(t, out.Failed())
	assert.Equal(t, []string{"a", "shadowed"}, strs(out.Stack))
}

func TestDefRejectsNonInstructionRef(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `["x"] "notaref" DEF`)
	require.True(t, out.Failed())
	assert.Equal(t, script.InvalidValue, out.Err.Kind)
}

func TestStackPacksEverything(t *testing.T) {
	e := newEngine(t, Config{})
	out := runSource(t, e, `"a" "b" STACK`)
	require.False(t, out.Failed())
	require.Len(t, out.Stack, 1)
	values, err := script.DataValues(out.Stack[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs(values))
}

func TestCallDepthExceeded(t *testing.T) {
	e := newEngine(t, Config{MaxCallDepth: 8})
	out := runSource(t, e, `[LOOP] 'LOOP DEF LOOP`)
	require.True(t, out.Failed())
	assert.Equal(t, script.CallDepthExceeded, out.Err.Kind)
}

type panicking struct{}

func (panicking) Handle(env *script.Env, instruction []byte) (script.Outcome, error) {
	panic("boom")
}

func TestPanicBecomesInternal(t *testing.T) {
	e := newEngine(t, Config{}, panicking{})
	out := runSource(t, e, `"a" ANYTHING`)
	require.True(t, out.Failed())
	assert.Equal(t, script.Internal, out.Err.Kind)

	out = runSource(t, e, `[ANYTHING] TRY`)
	require.False(t, out.Failed())
	decoded, err := script.DecodeError(out.Stack[0])
	require.NoError(t, err)
	assert.Equal(t, script.Internal, decoded.Kind)
}

func TestDuplicateCoreInstructionRejected(t *testing.T) {
	_, err := New(Config{}, nil, script.NewModule("dup", script.Op{Instruction: EVAL, Exec: func(*script.Env) error { return nil }}))
	assert.Error(t, err)
}

func TestFailureIsIsolated(t *testing.T) {
	e := newEngine(t, Config{})
	a := e.Submit(context.Background(), compile(t, `DROP`), nil)
	b := e.Submit(context.Background(), compile(t, `"ok"`), nil)

	outA, outB := <-a, <-b
	assert.True(t, outA.Failed())
	require.False(t, outB.Failed())
	assert.Equal(t, []string{"ok"}, strs(outB.Stack))
	assert.NotEqual(t, outA.EnvID, outB.EnvID)
}

func TestConcurrentSubmissions(t *testing.T) {
	e := newEngine(t, Config{MaxConcurrent: 4})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := <-e.Submit(context.Background(), compile(t, `"a" "b" CONCAT`), nil)
			assert.False(t, out.Failed())
			assert.Equal(t, []string{"ab"}, strs(out.Stack))
		}()
	}
	wg.Wait()

	stats := e.Stats()
	assert.Equal(t, int64(32), stats.Completed)
	assert.Equal(t, int64(0), stats.Running)
}

func TestRunHonoursCancelledContextWhileQueued(t *testing.T) {
	e := newEngine(t, Config{MaxConcurrent: 1})
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := e.Run(ctx, compile(t, `"a"`), nil)
	require.True(t, out.Failed())
	assert.Equal(t, script.Internal, out.Err.Kind)
}

func TestLifecycleEventsPublished(t *testing.T) {
	hub := events.NewHub(16)
	e, err := New(Config{}, hub, stack.New())
	require.NoError(t, err)

	ch, cancel := hub.Subscribe()
	defer cancel()

	e.Run(context.Background(), compile(t, `DROP`), nil)

	var types []string
	timeout := time.After(time.Second)
	for len(types) < 2 {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-timeout:
			t.Fatalf("timed out, got %v", types)
		}
	}
	assert.Equal(t, []string{events.ProgramStarted, events.ProgramFailed}, types)
}

func TestTracePublishedThroughReceiver(t *testing.T) {
	bus := events.NewBus()
	e := newEngine(t, Config{}, stack.New(), binary.New(), messaging.New(bus))
	box := events.NewMailbox()

	out := e.Run(context.Background(), compile(t, `"t" SUBSCRIBE "hello" "t" PUBLISH UNSUBSCRIBE`), box)
	require.False(t, out.Failed(), "%v", out.Err)
	assert.Empty(t, out.Stack)
	assert.Equal(t, 0, bus.Len())

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Second)
	defer cancelCtx()
	d, err := box.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(d.Message))
}
