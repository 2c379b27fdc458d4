package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/mattjoyce/pumpkin/internal/protocol"
	"github.com/mattjoyce/pumpkin/internal/script"
)

// Submitter sends a compiled program and waits for its result.
type Submitter interface {
	Submit(ctx context.Context, compiled []byte, onTrace func(value []byte)) (*protocol.Result, error)
}

// RunLines drives the line protocol over r without a terminal, writing
// traces and results to w. It stops at end of input or on a submission
// error.
func RunLines(ctx context.Context, r io.Reader, w io.Writer, sub Submitter, theme Theme) error {
	var acc Accumulator
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), protocol.DefaultMaxFrameSize)
	for sc.Scan() {
		in, ok := acc.Feed(sc.Text())
		if !ok {
			continue
		}
		if in.Kind == Help {
			fmt.Fprint(w, HelpText+"\n")
			continue
		}
		program, err := script.Compile(in.Text)
		if err != nil {
			fmt.Fprintf(w, "Script error: %v\n", err)
			continue
		}
		res, err := sub.Submit(ctx, program, func(v []byte) {
			fmt.Fprintln(w, RenderTrace(v, theme))
		})
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		fmt.Fprintln(w, RenderResult(res, theme))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
