// Package server accepts client connections and runs the programs they send.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/pumpkin/internal/engine"
	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/log"
	"github.com/mattjoyce/pumpkin/internal/protocol"
	"github.com/mattjoyce/pumpkin/internal/script"
)

const DefaultListen = "127.0.0.1:9981"

// Submitter schedules programs.
type Submitter interface {
	Submit(ctx context.Context, program []byte, r script.Receiver) <-chan engine.Outcome
}

// Config holds server configuration.
type Config struct {
	Listen       string
	MaxFrameSize int
}

// Server owns the listener and the live sessions.
type Server struct {
	config Config
	engine Submitter
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.Mutex
	ln       net.Listener
	sessions map[*session]struct{}
	closing  bool // set once shutdown has closed the live sessions
	wg       sync.WaitGroup
	ready    chan struct{}

	accepted atomic.Int64
}

// New creates a server. bus receives the session unsubscriptions on close.
func New(config Config, eng Submitter, bus *events.Bus) *Server {
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	return &Server{
		config:   config,
		engine:   eng,
		bus:      bus,
		logger:   log.WithComponent("server"),
		sessions: make(map[*session]struct{}),
		ready:    make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every
// session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("server listening", "listen", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeSessions()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("server shutting down")
				s.wg.Wait()
				return ctx.Err()
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		s.accepted.Add(1)
		sess := s.newSession(conn)
		if sess == nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.run(ctx)
			s.remove(sess)
		}()
	}
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln.Addr()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Accepted returns the number of connections accepted since start.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

// newSession registers conn, or closes it and returns nil when shutdown has
// already swept the session set.
func (s *Server) newSession(conn net.Conn) *session {
	sess := &session{
		conn:    conn,
		server:  s,
		mailbox: events.NewMailbox(),
		logger:  log.WithSession(conn.RemoteAddr().String()),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		_ = conn.Close()
		return nil
	}
	s.sessions[sess] = struct{}{}
	return sess
}

func (s *Server) remove(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for sess := range s.sessions {
		_ = sess.conn.Close()
	}
}

// session is one client connection. Frames read from it are programs; every
// message published to a topic it subscribed to is written back as a frame.
type session struct {
	conn    net.Conn
	server  *Server
	mailbox *events.Mailbox
	logger  *slog.Logger
}

func (sess *session) run(ctx context.Context) {
	sess.logger.Info("session opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()

	var programs sync.WaitGroup
	submitted := 0
	for {
		payload, err := protocol.ReadFrame(sess.conn, sess.server.config.MaxFrameSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				sess.logger.Warn("read frame failed", "error", err)
			}
			break
		}
		submitted++
		done := sess.server.engine.Submit(ctx, payload, sess.mailbox)
		programs.Add(1)
		go func() {
			defer programs.Done()
			outcome := <-done
			if outcome.Failed() {
				// Wrapped submissions fail inside TRY and still publish RESULT;
				// only unwrapped programs end up here.
				sess.logger.Warn("program aborted", "env_id", outcome.EnvID.String(), "error", outcome.Err)
			}
		}()
	}

	programs.Wait()
	n := sess.server.bus.UnsubscribeReceiver(sess.mailbox)
	sess.mailbox.Close()
	<-writerDone
	_ = sess.conn.Close()
	sess.logger.Info("session closed", "programs", submitted, "unsubscribed", n)
}

func (sess *session) writeLoop() {
	for {
		d, err := sess.mailbox.Next(context.Background())
		if err != nil {
			return
		}
		if err := protocol.WriteFrame(sess.conn, d.Message); err != nil {
			sess.logger.Warn("write frame failed", "error", err)
			// Unblock the reader; remaining deliveries are discarded.
			_ = sess.conn.Close()
			sess.drain()
			return
		}
	}
}

func (sess *session) drain() {
	for {
		if _, err := sess.mailbox.Next(context.Background()); err != nil {
			return
		}
	}
}
