// Package apps hosts tenant applications.
//
// An app type is registered once with a Factory. A tenant starts an instance
// with JSON parameters; the instance receives an Env giving it the runtime,
// the module framework and a loop scheduler, and lives until it is stopped
// or its tenant is removed. At most one instance of a type runs per tenant.
//
// The host is not safe for concurrent use: it is driven from the event loop
// like the runtime itself.
package apps
