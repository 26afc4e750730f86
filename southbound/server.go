package southbound

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// ServerConfig describes a TCP listener for one binary protocol.
type ServerConfig struct {
	Protocol   string
	Addr       string
	Framing    Framing
	Executor   Executor
	NewHandler func(*Conn) Handler
	Options    Options
}

// Server accepts device sessions on a TCP port.
type Server struct {
	cfg         ServerConfig
	logger      *slog.Logger
	retryConfig retry.Config

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Conn]struct{}
	cancel   context.CancelFunc
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a stopped server.
func NewServer(cfg ServerConfig) *Server {
	cfg.Options = cfg.Options.withDefaults()
	return &Server{
		cfg:         cfg,
		logger:      cfg.Options.Logger.With("component", cfg.Protocol+"-server"),
		retryConfig: retry.Quick(),
		sessions:    make(map[*Conn]struct{}),
	}
}

// Start binds the port and begins accepting sessions.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return nil
	}
	if s.cfg.Executor == nil || s.cfg.NewHandler == nil || s.cfg.Framing.FrameLen == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, s.cfg.Protocol, "Start", "executor, handler and framing are required")
	}

	var ln net.Listener
	bind := func() error {
		var err error
		ln, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	}
	if err := retry.Do(ctx, s.retryConfig, bind); err != nil {
		return errors.WrapTransient(err, s.cfg.Protocol, "Start", "socket binding")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.listener = ln
	s.cancel = cancel
	s.running.Store(true)
	s.logger.Info("Listening for devices", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(runCtx, ln)
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop closes the listener and every session and waits for their goroutines.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	_ = s.listener.Close()
	s.cancel()
	for c := range s.sessions {
		c.Close(ReasonShutdown)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout), s.cfg.Protocol, "Stop", "graceful shutdown")
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", "error", err)
			continue
		}
		if tcp, ok := nc.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		transport := NewStreamTransport(nc, s.cfg.Framing, s.cfg.Options.WriteTimeout)
		s.serve(ctx, NewConn(s.cfg.Protocol, transport, s.cfg.Executor, s.cfg.NewHandler, s.cfg.Options))
	}
}

// serve tracks c and runs it on its own goroutine.
func (s *Server) serve(ctx context.Context, c *Conn) {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		c.Close(ReasonShutdown)
		return
	}
	s.sessions[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	c.Logger().Info("Session opened")
	go func() {
		defer s.wg.Done()
		c.Run(ctx)
		s.mu.Lock()
		delete(s.sessions, c)
		s.mu.Unlock()
	}()
}
