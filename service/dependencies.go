package service

import (
	"encoding/json"
	"log/slog"

	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// Dependencies are handed to every constructor.
type Dependencies struct {
	Config          *config.Config
	Controller      *controller.Controller
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger

	// Health aggregates every service; the REST API serves it.
	Health *health.Monitor
}

// Constructor builds a service from its raw "services.<name>.config"
// section, which may be empty.
type Constructor func(rawConfig json.RawMessage, deps *Dependencies) (Service, error)
