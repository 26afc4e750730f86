package service

import "fmt"

// Service names.
const (
	NameLVAPP   = "lvapp"
	NameVBSP    = "vbsp"
	NameLVNFP   = "lvnfp"
	NameAPI     = "api"
	NameFeeds   = "feeds"
	NameMetrics = "metrics"
	NameEvents  = "events"
)

// RegisterAll registers all built-in services with the registry
func RegisterAll(registry *Registry) error {
	services := map[string]Constructor{
		NameLVAPP:   NewLVAPP,
		NameVBSP:    NewVBSP,
		NameLVNFP:   NewLVNFP,
		NameAPI:     NewAPI,
		NameFeeds:   NewFeeds,
		NameMetrics: NewMetrics,
		NameEvents:  NewEvents,
	}

	for name, constructor := range services {
		if err := registry.Register(name, constructor); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
