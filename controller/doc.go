// Package controller ties the event loop, the runtime registry, the
// persistence session, the module framework and the apps host together.
//
// Every read of the registry goes through View, which runs on the loop.
// Every change that is also persisted follows the same three steps:
//
//  1. validate against the registry on the loop,
//  2. write the store off the loop,
//  3. validate again and apply on the loop.
//
// Step 3 can fail when the registry moved while the store was written, for
// instance when a device disconnected or another request won the race. The
// controller then undoes the store write and returns errors.ErrConflict, so
// the registry and the store never disagree.
//
// At startup the persisted rows are applied in a fixed order: tenants,
// devices, memberships, ACL entries, slices, endpoints with their virtual
// ports, traffic rules, feeds and IMSI mappings. When the store holds no
// account the configured admin is created.
package controller
