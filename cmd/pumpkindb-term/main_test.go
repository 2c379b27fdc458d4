package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/engine"
	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/modules/binary"
	"github.com/mattjoyce/pumpkin/internal/modules/messaging"
	"github.com/mattjoyce/pumpkin/internal/modules/stack"
	"github.com/mattjoyce/pumpkin/internal/server"
)

func startServer(t *testing.T) string {
	t.Helper()
	bus := events.NewBus()
	eng, err := engine.New(engine.Config{}, nil, stack.New(), binary.New(), messaging.New(bus))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := server.New(server.Config{}, eng, bus)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

func stdinFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRunPipedInput(t *testing.T) {
	addr := startServer(t)
	in := stdinFile(t, "\"a\" TRACE\n\"b\" \"c\" CONCAT.\nDROP.\n")

	var out, errOut bytes.Buffer
	code := run([]string{addr}, in, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	text := out.String()
	assert.Contains(t, text, `"a"`)
	assert.Contains(t, text, `"bc"`)
	assert.Contains(t, text, "Error")
}

func TestRunConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	var out, errOut bytes.Buffer
	code := run([]string{addr}, stdinFile(t, ""), &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Failed to connect")
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"a", "b"}, stdinFile(t, ""), &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Usage")
}
