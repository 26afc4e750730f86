package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/southbound"
	"github.com/5g-empower/empower-runtime-sub001/southbound/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/southbound/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/southbound/vbsp"
)

// listener is what the TCP and WebSocket device servers have in common.
type listener interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Addr() net.Addr
	Sessions() int
}

// Southbound serves one device protocol.
type Southbound struct {
	*BaseService
	server listener
}

// NewLVAPP creates the WTP listener.
func NewLVAPP(raw json.RawMessage, deps *Dependencies) (Service, error) {
	l, opts, err := southboundSetup(NameLVAPP, raw, deps, deps.Config.LVAPP)
	if err != nil {
		return nil, err
	}
	ctrl := deps.Controller
	srv := lvapp.NewServer(l.Host, l.Port, ctrl.Loop(), ctrl.Runtime(), ctrl.Modules(), opts)
	return &Southbound{BaseService: NewBaseService(NameLVAPP, deps.Logger), server: srv}, nil
}

// NewVBSP creates the VBS listener.
func NewVBSP(raw json.RawMessage, deps *Dependencies) (Service, error) {
	l, opts, err := southboundSetup(NameVBSP, raw, deps, deps.Config.VBSP)
	if err != nil {
		return nil, err
	}
	ctrl := deps.Controller
	srv := vbsp.NewServer(l.Host, l.Port, ctrl.Loop(), ctrl.Runtime(), ctrl.Modules(), opts)
	return &Southbound{BaseService: NewBaseService(NameVBSP, deps.Logger), server: srv}, nil
}

// NewLVNFP creates the CPP WebSocket listener.
func NewLVNFP(raw json.RawMessage, deps *Dependencies) (Service, error) {
	l, opts, err := southboundSetup(NameLVNFP, raw, deps, deps.Config.LVNFP)
	if err != nil {
		return nil, err
	}
	ctrl := deps.Controller
	srv := lvnfp.NewServer(l.Host, l.Port, ctrl.Loop(), ctrl.Runtime(), ctrl.Modules(), opts)
	return &Southbound{BaseService: NewBaseService(NameLVNFP, deps.Logger), server: srv}, nil
}

func southboundSetup(name string, raw json.RawMessage, deps *Dependencies, l config.ListenerConfig) (config.ListenerConfig, southbound.Options, error) {
	if deps == nil || deps.Controller == nil || deps.Config == nil {
		return l, southbound.Options{}, errors.WrapFatal(errors.ErrMissingConfig, "Southbound", "New", name+" dependencies")
	}
	l, err := decodeListener(raw, l)
	if err != nil {
		return l, southbound.Options{}, err
	}
	rc := deps.Config.Runtime
	opts := southbound.Options{
		WatchdogInterval: rc.WatchdogInterval,
		FallbackPeriod:   rc.HelloFallback,
		QueueSize:        rc.QueueSize,
		WriteTimeout:     rc.WriteTimeout,
		Logger:           deps.Logger,
	}
	if deps.MetricsRegistry != nil {
		opts.Metrics = deps.MetricsRegistry.Core()
	}
	return l, opts, nil
}

// decodeListener overlays the service section on the listener defaults.
func decodeListener(raw json.RawMessage, l config.ListenerConfig) (config.ListenerConfig, error) {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &l); err != nil {
			return l, errors.WrapInvalid(err, "Service", "decodeListener", "parse listener config")
		}
	}
	if l.Port < 0 || l.Port > 65535 {
		return l, errors.WrapInvalid(fmt.Errorf("invalid port: %d", l.Port), "Service", "decodeListener", "port check")
	}
	return l, nil
}

// Start binds the listener.
func (s *Southbound) Start(ctx context.Context) error {
	if !s.beginStart() {
		return nil
	}
	if err := s.server.Start(ctx); err != nil {
		s.stopped()
		return err
	}
	s.running()
	return nil
}

// Stop closes the listener and every device session.
func (s *Southbound) Stop(timeout time.Duration) error {
	if !s.beginStop() {
		return nil
	}
	defer s.stopped()
	return s.server.Stop(timeout)
}

// Addr returns the bound address.
func (s *Southbound) Addr() net.Addr { return s.server.Addr() }

// Health adds the open session count to the lifecycle status.
func (s *Southbound) Health() health.Status {
	st := s.BaseService.Health()
	if s.Status() == StatusRunning {
		st.Message = fmt.Sprintf("listening on %s", s.server.Addr())
		st = st.WithMetrics(&health.Metrics{Uptime: s.Uptime(), Sessions: s.server.Sessions()})
	}
	return st
}
