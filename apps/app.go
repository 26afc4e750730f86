package apps

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// State is the lifecycle state of an app instance.
type State int

const (
	// StateCreated indicates the app was built but not started
	StateCreated State = iota
	// StateStarted indicates the app is running
	StateStarted
	// StateStopped indicates the app was stopped
	StateStopped
	// StateFailed indicates Start returned an error
	StateFailed
)

// String returns a string representation of the app state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Scheduler runs tasks on the event loop after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, task loop.Task) *time.Timer
}

// Env is what a running app may touch. Runtime and Modules are only safe on
// the event loop, which is where Start, Stop and every bus callback run.
type Env struct {
	Tenant    uuid.UUID
	Runtime   *runtime.Runtime
	Modules   *module.Framework
	Scheduler Scheduler
	Logger    *slog.Logger
}

// App is a tenant application.
//
// Start is called once on the event loop. ctx is cancelled when the
// instance is stopped. Stop releases every subscription and timer.
type App interface {
	Start(ctx context.Context, env Env) error
	Stop()
}

// Factory builds an app from its JSON parameters without side effects.
type Factory func(params json.RawMessage) (App, error)

// Registration describes an app type.
type Registration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Factory     Factory `json:"-"`
}
