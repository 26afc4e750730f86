package southbound

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// WebSocketConfig describes an HTTP listener upgrading every request on Path
// to a device session.
type WebSocketConfig struct {
	Protocol   string
	Addr       string
	Path       string
	Executor   Executor
	NewHandler func(*Conn) Handler
	Options    Options
}

// WebSocketServer accepts device sessions over WebSocket.
type WebSocketServer struct {
	cfg         WebSocketConfig
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	retryConfig retry.Config

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	sessions   map[*Conn]struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewWebSocketServer creates a stopped server.
func NewWebSocketServer(cfg WebSocketConfig) *WebSocketServer {
	cfg.Options = cfg.Options.withDefaults()
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &WebSocketServer{
		cfg:    cfg,
		logger: cfg.Options.Logger.With("component", cfg.Protocol+"-server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Devices are not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		retryConfig: retry.Quick(),
		sessions:    make(map[*Conn]struct{}),
	}
}

// Start binds the port and serves upgrades.
func (s *WebSocketServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return nil
	}
	if s.cfg.Executor == nil || s.cfg.NewHandler == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, s.cfg.Protocol, "Start", "executor and handler are required")
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

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.listener = ln
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.logger.Info("Listening for devices", "addr", ln.Addr().String(), "path", s.cfg.Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *WebSocketServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions returns the number of open sessions.
func (s *WebSocketServer) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop shuts the HTTP server down, closes every session and waits.
func (s *WebSocketServer) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = s.httpServer.Shutdown(ctx)
	s.mu.Lock()
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
	case <-ctx.Done():
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout), s.cfg.Protocol, "Stop", "graceful shutdown")
	}
}

func (s *WebSocketServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	transport := NewWebSocketTransport(ws, s.cfg.Options.WriteTimeout)
	c := NewConn(s.cfg.Protocol, transport, s.cfg.Executor, s.cfg.NewHandler, s.cfg.Options)

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		c.Close(ReasonShutdown)
		return
	}
	s.sessions[c] = struct{}{}
	s.wg.Add(1)
	ctx := s.ctx
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
