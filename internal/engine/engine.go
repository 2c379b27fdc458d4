// Package engine executes programs. Each program gets its own script.Env and
// runs on its own goroutine; instructions are resolved through a dispatch
// chain whose first link is the engine's core handler.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/log"
	"github.com/mattjoyce/pumpkin/internal/script"
)

const (
	DefaultMaxConcurrent = 64
	DefaultMaxCallDepth  = 1024
)

// Config bounds engine resource use.
type Config struct {
	MaxConcurrent  int
	MaxCallDepth   int
	ArenaChunkSize int
}

// Outcome is the terminal state of one program.
type Outcome struct {
	EnvID    script.EnvID
	Stack    [][]byte // bottom first, copied out of the arena
	Err      *script.Error
	Duration time.Duration
}

// Failed reports whether the program aborted.
func (o Outcome) Failed() bool { return o.Err != nil }

// Stats is a point-in-time view of engine activity.
type Stats struct {
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Engine schedules and interprets programs.
type Engine struct {
	cfg    Config
	chain  *script.Chain
	hub    *events.Hub
	logger *slog.Logger
	sem    chan struct{}

	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New assembles the dispatch chain: the core handler first, then handlers in
// the given order. hub may be nil.
func New(cfg Config, hub *events.Hub, handlers ...script.Handler) (*Engine, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	if cfg.ArenaChunkSize <= 0 {
		cfg.ArenaChunkSize = script.DefaultArenaChunkSize
	}

	e := &Engine{
		cfg:    cfg,
		hub:    hub,
		logger: log.WithComponent("engine"),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}

	chain, err := script.NewChain(append([]script.Handler{&core{engine: e}}, handlers...)...)
	if err != nil {
		return nil, fmt.Errorf("assemble dispatch chain: %w", err)
	}
	e.chain = chain
	return e, nil
}

// Submit runs program asynchronously. The channel yields exactly one Outcome.
func (e *Engine) Submit(ctx context.Context, program []byte, r script.Receiver) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		out <- e.Run(ctx, program, r)
	}()
	return out
}

// Run executes program to completion on the calling goroutine. Messages from
// subscriptions the program makes are delivered to r, which may be nil.
func (e *Engine) Run(ctx context.Context, program []byte, r script.Receiver) Outcome {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return Outcome{Err: script.AsError(fmt.Errorf("waiting for execution slot: %w", ctx.Err()))}
	}
	defer func() { <-e.sem }()

	env := script.NewEnv(ctx, script.WithReceiver(r), script.WithArenaChunkSize(e.cfg.ArenaChunkSize))
	defer env.Release()

	envID := env.ID.String()
	logger := e.logger.With("env_id", envID)
	e.running.Add(1)
	defer e.running.Add(-1)

	e.hub.Publish(events.ProgramStarted, envID, map[string]any{"size": len(program)})
	logger.Debug("program started", "size", len(program))

	start := time.Now()
	err := e.protect(func() error { return e.exec(env, program) })
	outcome := Outcome{
		EnvID:    env.ID,
		Stack:    snapshot(env.Stack()),
		Err:      script.AsError(err),
		Duration: time.Since(start),
	}

	if outcome.Err != nil {
		e.failed.Add(1)
		logger.Warn("program failed", "error", outcome.Err, "duration", outcome.Duration)
		e.hub.Publish(events.ProgramFailed, envID, map[string]any{
			"kind":        outcome.Err.Kind.String(),
			"code":        uint8(outcome.Err.Kind),
			"duration_ms": outcome.Duration.Milliseconds(),
		})
	} else {
		e.completed.Add(1)
		logger.Debug("program completed", "depth", len(outcome.Stack), "duration", outcome.Duration)
		e.hub.Publish(events.ProgramCompleted, envID, map[string]any{
			"depth":       len(outcome.Stack),
			"duration_ms": outcome.Duration.Milliseconds(),
		})
	}
	return outcome
}

// Stats reports activity counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Running:   e.running.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
	}
}

// Catalog lists the instructions each handler provides.
func (e *Engine) Catalog() []script.HandlerInfo {
	return e.chain.Catalog()
}

// exec interprets program against env left to right.
func (e *Engine) exec(env *script.Env, program []byte) error {
	for len(program) > 0 {
		item, rest, err := script.Next(program)
		if err != nil {
			return err
		}
		if item.IsInstruction() {
			if err := e.chain.Dispatch(env, item.Raw); err != nil {
				return err
			}
		} else {
			env.Push(item.Payload)
		}
		program = rest
	}
	return nil
}

// protect turns a panic inside fn into an Internal error.
func (e *Engine) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered panic during execution", "panic", r, "stack", string(debug.Stack()))
			err = &script.Error{Kind: script.Internal, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}

func snapshot(stack [][]byte) [][]byte {
	out := make([][]byte, len(stack))
	for i, v := range stack {
		out[i] = append([]byte{}, v...)
	}
	return out
}
