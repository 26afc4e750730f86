// Package persistence stores the configuration the controller reloads at
// startup: accounts, tenants, devices, memberships, slices, endpoints and
// virtual ports, traffic rules, ACL entries, feeds and IMSI to MAC mappings.
//
// Liveness state (connections, LVAPs, UEs) is never persisted; devices
// rebuild it when they reconnect.
//
// Two backends implement Session:
//
//   - memory: maps guarded by a mutex, for tests and ephemeral runs
//   - sqlite: modernc.org/sqlite in WAL mode with a single writer connection
//
// Both enforce the same integrity rules. Creating a row whose key exists
// fails with errors.ErrAlreadyExists; deleting a missing row fails with
// errors.ErrNotFound. Deleting a tenant removes its memberships, slices,
// endpoints and traffic rules; deleting a device removes its memberships.
//
// Passwords are stored as bcrypt hashes and only ever compared through
// Authenticate.
package persistence
