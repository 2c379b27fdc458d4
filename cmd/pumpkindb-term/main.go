// Command pumpkindb-term is an interactive terminal for a pumpkindb server.
//
// Usage:
//
//	pumpkindb-term [address]
//
// Lines are collected until one ends with a period, then compiled and sent
// as a single program. When stdin is not a terminal the same protocol runs
// line by line without the interactive UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/mattjoyce/pumpkin/internal/client"
	"github.com/mattjoyce/pumpkin/internal/tui/repl"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pumpkindb-term", flag.ContinueOnError)
	fs.SetOutput(stderr)
	plain := fs.Bool("plain", false, "Disable the interactive UI and colours")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	addr := client.DefaultAddr
	switch fs.NArg() {
	case 0:
	case 1:
		addr = fs.Arg(0)
	default:
		fmt.Fprintln(stderr, "Usage: pumpkindb-term [--plain] [address]")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, addr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect to %s: %v\n", addr, err)
		return 1
	}
	defer c.Close()

	interactive := !*plain && isatty.IsTerminal(stdin.Fd())
	if !interactive {
		theme := repl.PlainTheme()
		if err := repl.RunLines(ctx, stdin, stdout, c, theme); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		return 0
	}

	m := repl.New(ctx, c, c.RemoteAddr(), os.Getenv(repl.EnvPrompt), repl.NewDefaultTheme())
	if _, err := tea.NewProgram(m, tea.WithInput(stdin), tea.WithOutput(stdout)).Run(); err != nil {
		fmt.Fprintf(stderr, "TUI error: %v\n", err)
		return 1
	}
	if err := m.Err(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}
