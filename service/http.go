package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/api"
	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/feeds"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/pkg/tlsutil"
)

// HTTPService serves a handler on its own listener.
type HTTPService struct {
	*BaseService
	addr    string
	handler http.Handler
	tls     *tls.Config

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// apiConfig is the "services.api.config" section.
type apiConfig struct {
	Host        string               `json:"host"`
	Port        int                  `json:"port"`
	CORSOrigins []string             `json:"cors_origins"`
	TLS         tlsutil.ServerConfig `json:"tls"`
}

// NewAPI creates the northbound REST service.
func NewAPI(raw json.RawMessage, deps *Dependencies) (Service, error) {
	if deps == nil || deps.Controller == nil || deps.Config == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "API", "New", "api dependencies")
	}
	cfg := apiConfig{
		Host:        deps.Config.API.Host,
		Port:        deps.Config.API.Port,
		CORSOrigins: deps.Config.API.CORSOrigins,
		TLS:         deps.Config.API.TLS,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "API", "New", "parse api config")
		}
	}
	l, err := decodeListener(nil, config.ListenerConfig{Host: cfg.Host, Port: cfg.Port})
	if err != nil {
		return nil, err
	}
	opts := []api.Option{api.WithLogger(deps.Logger), api.WithCORSOrigins(cfg.CORSOrigins), api.WithMetrics(deps.MetricsRegistry)}
	if deps.Health != nil {
		monitor := deps.Health
		opts = append(opts, api.WithHealth(func(ctx context.Context) health.Status {
			return monitor.Check(ctx, "empower")
		}))
	}
	tlsConfig, err := tlsutil.LoadServerConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	svc := newHTTPService(NameAPI, l.Addr(), api.NewHandler(deps.Controller, opts...), deps)
	svc.tls = tlsConfig
	return svc, nil
}

// NewFeeds creates the energy feed ingest service.
func NewFeeds(raw json.RawMessage, deps *Dependencies) (Service, error) {
	if deps == nil || deps.Controller == nil || deps.Config == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Feeds", "New", "feeds dependencies")
	}
	l, err := decodeListener(raw, deps.Config.Feeds)
	if err != nil {
		return nil, err
	}
	return newHTTPService(NameFeeds, l.Addr(), feeds.NewHandler(deps.Controller, feeds.WithLogger(deps.Logger)), deps), nil
}

func newHTTPService(name, addr string, handler http.Handler, deps *Dependencies) *HTTPService {
	return &HTTPService{BaseService: NewBaseService(name, deps.Logger), addr: addr, handler: handler}
}

// Start binds the listener and serves in the background.
func (s *HTTPService) Start(_ context.Context) error {
	if !s.beginStart() {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.stopped()
		return errors.WrapFatal(err, "HTTPService", "Start", "listen on "+s.addr)
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()
	s.logger.Info("HTTP listener bound", "addr", ln.Addr().String(), "tls", s.tls != nil)
	s.running()
	return nil
}

// Stop shuts the server down, waiting up to timeout for open requests.
func (s *HTTPService) Stop(timeout time.Duration) error {
	if !s.beginStop() {
		return nil
	}
	defer s.stopped()

	s.mu.Lock()
	srv := s.server
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "HTTPService", "Stop", "shutdown")
	}
	return nil
}

// Address returns the bound address, or "" when stopped.
func (s *HTTPService) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the served handler.
func (s *HTTPService) Handler() http.Handler { return s.handler }
