// Package service runs the controller's long-lived listeners as services
// with a shared lifecycle.
//
// Each listener (the three southbound servers, the REST API, the feed
// ingest endpoint, the metrics endpoint and the optional NATS event
// export) is built by a Constructor from its raw configuration and the
// shared Dependencies. The Manager creates the services enabled in the
// configuration, starts them together and stops them in reverse order:
//
//	registry := service.NewServiceRegistry()
//	if err := service.RegisterAll(registry); err != nil {
//	    return err
//	}
//	mgr := service.NewServiceManager(registry, service.WithLogger(logger))
//	if err := mgr.Configure(cfg, deps); err != nil {
//	    return err
//	}
//	if err := mgr.StartAll(ctx); err != nil {
//	    return err
//	}
//	defer mgr.StopAll(10 * time.Second)
//
// # Lifecycle
//
// Services move Stopped -> Starting -> Running -> Stopping -> Stopped.
// BaseService tracks the state and derives a default health status from
// it; concrete services embed it and report richer health where they can,
// for example the number of open device sessions.
//
// A constructor may return ErrServiceDisabled when its configuration turns
// the service off (event export without NATS URLs). The Manager skips such
// services without failing startup.
package service
