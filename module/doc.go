// Package module runs telemetry and control modules on behalf of tenants.
//
// A module type is registered once, with a factory that builds instances from
// JSON parameters. The Framework keeps one Worker per type. Adding a module
// that is equivalent to a live one (same tenant, same type, same identifying
// parameters and period) returns the live one instead.
//
// Module ids come from one counter shared by every worker, so they can be
// used as correlation ids on any southbound protocol: module_id in LVAPP and
// LVNFP frames, xid in VBSP headers.
//
// Dispatch kinds:
//
//	single     RunOnce once; the module is unloaded when its response arrives.
//	periodic   RunOnce every Every; an Every of zero or less degrades to single.
//	scheduled  RunOnce once; the device repeats the report on its own.
//	trigger    RunOnce once; responses arrive whenever the device sees fit.
//
// Like the runtime, a Framework is not safe for concurrent use and must only
// be driven from the controller event loop.
package module
