package script

import (
	"context"

	"github.com/google/uuid"
)

// DefaultArenaChunkSize is the allocation granularity of an Env arena.
const DefaultArenaChunkSize = 4096

// EnvID identifies one executing program. It routes subscriptions and tells
// traces of concurrent programs apart.
type EnvID = uuid.UUID

// Receiver accepts messages published to topics its session subscribed to.
// Receive must not block.
type Receiver interface {
	Receive(topic, message []byte)
}

// Arena hands out byte buffers that live until Release.
type Arena struct {
	chunkSize int
	chunks    [][]byte
	cur       []byte
	allocated int
}

// NewArena creates an arena allocating in chunks of chunkSize bytes.
func NewArena(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultArenaChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc reserves n bytes. The returned slice has capacity n so appends never
// reach a neighbouring allocation.
func (a *Arena) Alloc(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	if n > cap(a.cur)-len(a.cur) {
		size := a.chunkSize
		if n > size {
			size = n
		}
		a.cur = make([]byte, 0, size)
		a.chunks = append(a.chunks, a.cur)
	}
	start := len(a.cur)
	a.cur = a.cur[:start+n]
	a.allocated += n
	return a.cur[start : start+n : start+n]
}

// Allocated returns the number of bytes handed out since creation.
func (a *Arena) Allocated() int { return a.allocated }

// Release drops every chunk. Slices returned earlier must not be used after.
func (a *Arena) Release() {
	a.chunks = nil
	a.cur = nil
	a.allocated = 0
}

// Env is the execution context of one program: operand stack, arena and
// process identity. An Env is confined to a single goroutine.
type Env struct {
	ID EnvID

	ctx      context.Context
	receiver Receiver
	stack    [][]byte
	arena    *Arena
	dict     map[string][]byte
	depth    int
}

// EnvOption configures NewEnv.
type EnvOption func(*Env)

// WithReceiver sets where subscriptions made by the program deliver.
func WithReceiver(r Receiver) EnvOption {
	return func(e *Env) { e.receiver = r }
}

// WithArenaChunkSize overrides the arena chunk size.
func WithArenaChunkSize(n int) EnvOption {
	return func(e *Env) { e.arena = NewArena(n) }
}

// NewEnv creates an Env with a fresh identity.
func NewEnv(ctx context.Context, opts ...EnvOption) *Env {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &Env{
		ID:  uuid.New(),
		ctx: ctx,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.arena == nil {
		e.arena = NewArena(DefaultArenaChunkSize)
	}
	return e
}

// Context is the context blocking collaborators should honour.
func (e *Env) Context() context.Context { return e.ctx }

// Receiver returns the session receiver, or nil when the program runs
// detached from a connection.
func (e *Env) Receiver() Receiver { return e.receiver }

// Push places value on top of the stack.
func (e *Env) Push(value []byte) {
	e.stack = append(e.stack, value)
}

// Pop removes and returns the top of the stack.
func (e *Env) Pop() ([]byte, error) {
	n := len(e.stack)
	if n == 0 {
		return nil, ErrEmptyStack
	}
	v := e.stack[n-1]
	e.stack[n-1] = nil
	e.stack = e.stack[:n-1]
	return v, nil
}

// Alloc reserves n bytes from the arena. Fill the buffer before pushing it;
// pushed values are treated as immutable.
func (e *Env) Alloc(n int) []byte { return e.arena.Alloc(n) }

// AllocWrite copies b into the arena.
func (e *Env) AllocWrite(b []byte) []byte {
	buf := e.arena.Alloc(len(b))
	copy(buf, b)
	return buf
}

// Depth is the number of values on the stack.
func (e *Env) Depth() int { return len(e.stack) }

// Stack returns the stack, bottom first. The slice aliases the Env.
func (e *Env) Stack() [][]byte { return e.stack }

// Truncate drops everything above depth.
func (e *Env) Truncate(depth int) {
	if depth < 0 {
		depth = 0
	}
	for i := depth; i < len(e.stack); i++ {
		e.stack[i] = nil
	}
	if depth < len(e.stack) {
		e.stack = e.stack[:depth]
	}
}

// Bind associates an encoded instruction with a definition.
func (e *Env) Bind(instruction, definition []byte) {
	if e.dict == nil {
		e.dict = make(map[string][]byte)
	}
	e.dict[string(instruction)] = definition
}

// Lookup returns the definition bound to an encoded instruction.
func (e *Env) Lookup(instruction []byte) ([]byte, bool) {
	def, ok := e.dict[string(instruction)]
	return def, ok
}

// Enter increments the nested call depth, failing past limit.
func (e *Env) Enter(limit int) error {
	if limit > 0 && e.depth >= limit {
		return &Error{Kind: CallDepthExceeded}
	}
	e.depth++
	return nil
}

// Leave undoes Enter.
func (e *Env) Leave() {
	if e.depth > 0 {
		e.depth--
	}
}

// Release frees the arena and the stack. The Env must not be used after.
func (e *Env) Release() {
	e.stack = nil
	e.dict = nil
	e.arena.Release()
}
