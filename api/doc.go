// Package api serves the northbound REST interface under /api/v1.
//
// Every route except /api/v1/health requires HTTP Basic credentials checked
// against the persisted accounts. Admins may do anything. Other accounts may
// read the network, manage the tenants they own and edit their own account.
//
// Reads run on the controller event loop and serialize the registry objects
// before leaving it. Writes go through the controller, which persists the
// change and applies it to the registry, or leaves both untouched.
//
// Errors are returned as
//
//	{"code": 400, "reason": "Bad Request", "message": "invalid dscp 0x40"}
//
// with 400 for validation failures, 401 for missing or wrong credentials,
// 403 for role violations, 404 for unknown resources and 409 when the
// registry changed between validation and apply.
package api
