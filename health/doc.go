// Package health tracks the health of the controller's services and folds
// them into one status for /health and /api/v1/health.
//
// A status is one of three levels:
//   - healthy: the service works normally
//   - degraded: the service works with reduced function, for example the
//     NATS exporter is reconnecting
//   - unhealthy: the service does not work
//
// Services push their state into a Monitor with Update, or register a Probe
// that the Monitor calls on every Check. Aggregation takes the worst level
// of the parts.
//
//	monitor := health.NewMonitor()
//	monitor.Register("lvapp", func(context.Context) health.Status {
//	    return health.NewHealthy("lvapp", fmt.Sprintf("%d sessions", srv.Sessions()))
//	})
//	status := monitor.Check(ctx, "empower")
//
// Messages built from errors go through FromError, which strips addresses,
// paths and credentials before they reach a REST client.
package health
