// Package runtime holds the controller's data model: devices, tenants, LVAPs,
// VAPs, UEs, slices and ACLs, together with the state machines that keep them
// consistent with what the devices report.
//
// A Runtime is not safe for concurrent use. Every method must be called from
// the controller event loop (see pkg/loop); connection goroutines and HTTP
// handlers reach it by submitting tasks. Methods that change device state also
// emit the outbound frames the change implies, through the Link bound to the
// device, and publish events on the Bus once the registry is consistent again.
//
// Devices never hold a pointer to their connection's socket, only to its Link;
// LVAPs, UEs and VAPs refer to devices and tenants by key and resolve them
// through the Runtime.
package runtime
