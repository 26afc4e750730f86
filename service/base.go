package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/health"
)

// Status is the lifecycle state of a service.
type Status int32

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Service is a long-lived part of the controller.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	Health() health.Status
}

// BaseService tracks the lifecycle shared by every service.
type BaseService struct {
	name   string
	logger *slog.Logger

	status    atomic.Int32
	startTime atomic.Int64
}

// NewBaseService returns a stopped base named name.
func NewBaseService(name string, logger *slog.Logger) *BaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseService{name: name, logger: logger.With("service", name)}
}

// Name returns the service name
func (b *BaseService) Name() string { return b.name }

// Logger returns the service logger.
func (b *BaseService) Logger() *slog.Logger { return b.logger }

// Status returns the current service status
func (b *BaseService) Status() Status { return Status(b.status.Load()) }

// Uptime is zero unless the service is running.
func (b *BaseService) Uptime() time.Duration {
	if b.Status() != StatusRunning {
		return 0
	}
	return time.Since(time.Unix(0, b.startTime.Load()))
}

// beginStart moves Stopped to Starting. It reports false when the service
// is not stopped.
func (b *BaseService) beginStart() bool {
	return b.status.CompareAndSwap(int32(StatusStopped), int32(StatusStarting))
}

func (b *BaseService) running() {
	b.startTime.Store(time.Now().UnixNano())
	b.status.Store(int32(StatusRunning))
	b.logger.Info("Service started")
}

// beginStop moves Running to Stopping. It reports false when the service
// is not running.
func (b *BaseService) beginStop() bool {
	return b.status.CompareAndSwap(int32(StatusRunning), int32(StatusStopping))
}

func (b *BaseService) stopped() {
	b.status.Store(int32(StatusStopped))
	b.logger.Info("Service stopped")
}

// Health maps the lifecycle state onto a health status.
func (b *BaseService) Health() health.Status {
	switch st := b.Status(); st {
	case StatusRunning:
		return health.NewHealthy(b.name, "Service operating normally")
	case StatusStarting:
		return health.NewDegraded(b.name, "Service is starting")
	case StatusStopping:
		return health.NewDegraded(b.name, "Service is stopping")
	case StatusStopped:
		return health.NewUnhealthy(b.name, "Service is stopped")
	default:
		return health.NewUnhealthy(b.name, fmt.Sprintf("Unknown status: %v", st))
	}
}
