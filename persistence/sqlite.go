package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/pkg/retry"
)

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username TEXT PRIMARY KEY,
	password BLOB NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	surname  TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL CHECK (role IN ('admin', 'user'))
);
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	descr      TEXT NOT NULL DEFAULT '',
	owner      TEXT NOT NULL,
	bssid_type TEXT NOT NULL,
	plmn       TEXT UNIQUE
);
CREATE TABLE IF NOT EXISTS devices (
	kind  TEXT NOT NULL CHECK (kind IN ('wtp', 'vbs', 'cpp')),
	addr  TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (kind, addr)
);
CREATE TABLE IF NOT EXISTS memberships (
	tenant TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	kind   TEXT NOT NULL,
	addr   TEXT NOT NULL,
	PRIMARY KEY (tenant, kind, addr),
	FOREIGN KEY (kind, addr) REFERENCES devices(kind, addr) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS acl (
	allow INTEGER NOT NULL,
	addr  TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (allow, addr)
);
CREATE TABLE IF NOT EXISTS slices (
	tenant     TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	dscp       INTEGER NOT NULL,
	descriptor TEXT NOT NULL,
	PRIMARY KEY (tenant, dscp)
);
CREATE TABLE IF NOT EXISTS endpoints (
	id     TEXT PRIMARY KEY,
	tenant TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	label  TEXT NOT NULL DEFAULT '',
	dpid   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS virtual_ports (
	endpoint TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
	port_id  INTEGER NOT NULL,
	dpid     TEXT NOT NULL,
	ofport   INTEGER NOT NULL,
	iface    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (endpoint, port_id)
);
CREATE TABLE IF NOT EXISTS traffic_rules (
	tenant TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	rule   TEXT NOT NULL,
	dscp   INTEGER NOT NULL,
	label  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant, rule)
);
CREATE TABLE IF NOT EXISTS feeds (
	id    INTEGER PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	addr  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS imsi_mappings (
	imsi TEXT PRIMARY KEY,
	addr TEXT NOT NULL
);
`

// SQLite is a Session backed by an SQLite file. Writes go through a pool
// of one connection; reads use a separate pool.
type SQLite struct {
	write  *sql.DB
	read   *sql.DB
	logger *slog.Logger
}

var _ Session = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Opening is retried while the file is locked.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" || strings.Contains(path, ":memory:") {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "SQLite", "Open", "database path validation")
	}
	if logger == nil {
		logger = slog.Default()
	}
	params := make(url.Values)
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(1000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	dsn := "file:" + strings.TrimPrefix(path, "file:") + "?" + params.Encode()

	write, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapFatal(err, "SQLite", "Open", "open write pool")
	}
	write.SetMaxOpenConns(1)
	read, err := sql.Open("sqlite", dsn)
	if err != nil {
		write.Close()
		return nil, errors.WrapFatal(err, "SQLite", "Open", "open read pool")
	}
	read.SetMaxOpenConns(4)

	s := &SQLite{write: write, read: read, logger: logger.With("component", "sqlite", "path", path)}
	err = retry.Do(ctx, retry.Quick(), func() error {
		return s.setup(ctx)
	})
	if err != nil {
		s.Close()
		return nil, errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err), "SQLite", "Open", "apply schema")
	}
	s.logger.Info("Database ready", "schema_version", SchemaVersion)
	return s, nil
}

func (s *SQLite) setup(ctx context.Context) error {
	var version int
	if err := s.write.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version > SchemaVersion {
		return retry.NonRetryable(fmt.Errorf("database schema version %d is newer than %d", version, SchemaVersion))
	}
	if version == SchemaVersion {
		return nil
	}
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return retry.NonRetryable(err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close implements Session.
func (s *SQLite) Close() error {
	rerr := s.read.Close()
	if err := s.write.Close(); err != nil {
		return err
	}
	return rerr
}

// storeErr maps constraint violations onto the package sentinels.
func storeErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := serr.Error()
		switch {
		case serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY"):
			return notFoundErr("parent of %s", what)
		case serr.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK || strings.Contains(msg, "CHECK"):
			return errors.Invalidf(errors.ErrInvalidData, "%s: %v", what, err)
		default:
			return existsErr("%s", what)
		}
	}
	return errors.WrapTransient(err, "SQLite", "exec", what)
}

func (s *SQLite) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	res, err := s.write.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(err, what)
	}
	return n, nil
}

func (s *SQLite) insert(ctx context.Context, what, query string, args ...any) error {
	_, err := s.exec(ctx, what, query, args...)
	return err
}

func (s *SQLite) mustAffect(ctx context.Context, what, query string, args ...any) error {
	n, err := s.exec(ctx, what, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundErr("%s", what)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseAddr(s string) (datatypes.EtherAddress, error) {
	if s == "" {
		return datatypes.EtherAddress{}, nil
	}
	return datatypes.ParseEtherAddress(s)
}

// Load implements Session.
func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	if snap.Accounts, err = s.Accounts(ctx); err != nil {
		return nil, err
	}
	steps := []struct {
		query string
		scan  func(*sql.Rows) error
	}{
		{"SELECT id, name, descr, owner, bssid_type, COALESCE(plmn, '') FROM tenants ORDER BY rowid", func(r *sql.Rows) error {
			var t Tenant
			var id, name, plmn string
			if err := r.Scan(&id, &name, &t.Description, &t.Owner, &t.BSSIDType, &plmn); err != nil {
				return err
			}
			t.ID, err = uuid.Parse(id)
			t.Name, t.PLMN = datatypes.SSID(name), datatypes.PLMNID(plmn)
			snap.Tenants = append(snap.Tenants, t)
			return err
		}},
		{"SELECT kind, addr, label FROM devices ORDER BY rowid", func(r *sql.Rows) error {
			var d Device
			var addr string
			if err := r.Scan(&d.Kind, &addr, &d.Label); err != nil {
				return err
			}
			d.Addr, err = parseAddr(addr)
			snap.Devices = append(snap.Devices, d)
			return err
		}},
		{"SELECT tenant, kind, addr FROM memberships ORDER BY rowid", func(r *sql.Rows) error {
			var m Membership
			var tenant, addr string
			if err := r.Scan(&tenant, &m.Kind, &addr); err != nil {
				return err
			}
			if m.Tenant, err = uuid.Parse(tenant); err != nil {
				return err
			}
			m.Addr, err = parseAddr(addr)
			snap.Memberships = append(snap.Memberships, m)
			return err
		}},
		{"SELECT allow, addr, label FROM acl ORDER BY rowid", func(r *sql.Rows) error {
			var e ACLEntry
			var addr string
			if err := r.Scan(&e.Allow, &addr, &e.Label); err != nil {
				return err
			}
			e.Addr, err = parseAddr(addr)
			snap.ACL = append(snap.ACL, e)
			return err
		}},
		{"SELECT tenant, dscp, descriptor FROM slices ORDER BY rowid", func(r *sql.Rows) error {
			var sl Slice
			var tenant, desc string
			if err := r.Scan(&tenant, &sl.DSCP, &desc); err != nil {
				return err
			}
			sl.Descriptor = json.RawMessage(desc)
			sl.Tenant, err = uuid.Parse(tenant)
			snap.Slices = append(snap.Slices, sl)
			return err
		}},
		{"SELECT tenant, id, label, dpid FROM endpoints ORDER BY rowid", func(r *sql.Rows) error {
			var e Endpoint
			var tenant, id, dpid string
			if err := r.Scan(&tenant, &id, &e.Label, &dpid); err != nil {
				return err
			}
			if e.Tenant, err = uuid.Parse(tenant); err != nil {
				return err
			}
			if e.ID, err = uuid.Parse(id); err != nil {
				return err
			}
			e.DPID, err = datatypes.ParseDPID(dpid)
			snap.Endpoints = append(snap.Endpoints, e)
			return err
		}},
		{"SELECT endpoint, port_id, dpid, ofport, iface FROM virtual_ports ORDER BY rowid", func(r *sql.Rows) error {
			var p VirtualPort
			var endpoint, dpid string
			if err := r.Scan(&endpoint, &p.PortID, &dpid, &p.OFPort, &p.Iface); err != nil {
				return err
			}
			if p.Endpoint, err = uuid.Parse(endpoint); err != nil {
				return err
			}
			p.DPID, err = datatypes.ParseDPID(dpid)
			snap.VirtualPorts = append(snap.VirtualPorts, p)
			return err
		}},
		{"SELECT tenant, rule, dscp, label FROM traffic_rules ORDER BY rowid", func(r *sql.Rows) error {
			var tr TrafficRule
			var tenant string
			if err := r.Scan(&tenant, &tr.Match, &tr.DSCP, &tr.Label); err != nil {
				return err
			}
			tr.Tenant, err = uuid.Parse(tenant)
			snap.TrafficRules = append(snap.TrafficRules, tr)
			return err
		}},
		{"SELECT id, label, addr FROM feeds ORDER BY rowid", func(r *sql.Rows) error {
			var f Feed
			var addr string
			if err := r.Scan(&f.ID, &f.Label, &addr); err != nil {
				return err
			}
			f.Addr, err = parseAddr(addr)
			snap.Feeds = append(snap.Feeds, f)
			return err
		}},
		{"SELECT imsi, addr FROM imsi_mappings ORDER BY rowid", func(r *sql.Rows) error {
			var m IMSIMapping
			var addr string
			if err := r.Scan(&m.IMSI, &addr); err != nil {
				return err
			}
			m.Addr, err = parseAddr(addr)
			snap.IMSIMappings = append(snap.IMSIMappings, m)
			return err
		}},
	}
	for _, step := range steps {
		if err := s.query(ctx, step.query, step.scan); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *SQLite) query(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.WrapTransient(err, "SQLite", "query", query)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.WrapInvalid(err, "SQLite", "query", "decode row")
		}
	}
	if err := rows.Err(); err != nil {
		return errors.WrapTransient(err, "SQLite", "query", query)
	}
	return nil
}

const accountColumns = "username, password, name, surname, email, role"

func scanAccount(r interface{ Scan(...any) error }) (Account, error) {
	var a Account
	var role string
	err := r.Scan(&a.Username, &a.PasswordHash, &a.Name, &a.Surname, &a.Email, &role)
	a.Role = Role(role)
	return a, err
}

// Account implements Session.
func (s *SQLite) Account(ctx context.Context, username string) (*Account, error) {
	row := s.read.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE username = ?", username)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("account %s", username)
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "SQLite", "Account", "select account")
	}
	return &a, nil
}

// Accounts implements Session.
func (s *SQLite) Accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := s.query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY rowid", func(r *sql.Rows) error {
		a, err := scanAccount(r)
		out = append(out, a)
		return err
	})
	return out, err
}

// CreateAccount implements Session.
func (s *SQLite) CreateAccount(ctx context.Context, a Account, password string) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.insert(ctx, "account "+a.Username,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		a.Username, hash, a.Name, a.Surname, a.Email, string(a.Role))
}

// UpdateAccount implements Session. An empty password keeps the old hash.
func (s *SQLite) UpdateAccount(ctx context.Context, a Account, password string) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	what := "account " + a.Username
	if password == "" {
		return s.mustAffect(ctx, what,
			"UPDATE accounts SET name = ?, surname = ?, email = ?, role = ? WHERE username = ?",
			a.Name, a.Surname, a.Email, string(a.Role), a.Username)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.mustAffect(ctx, what,
		"UPDATE accounts SET password = ?, name = ?, surname = ?, email = ?, role = ? WHERE username = ?",
		hash, a.Name, a.Surname, a.Email, string(a.Role), a.Username)
}

// DeleteAccount implements Session.
func (s *SQLite) DeleteAccount(ctx context.Context, username string) error {
	return s.mustAffect(ctx, "account "+username, "DELETE FROM accounts WHERE username = ?", username)
}

// CreateTenant implements Session.
func (s *SQLite) CreateTenant(ctx context.Context, t Tenant) error {
	return s.insert(ctx, "tenant "+t.ID.String(),
		"INSERT INTO tenants (id, name, descr, owner, bssid_type, plmn) VALUES (?, ?, ?, ?, ?, ?)",
		t.ID.String(), string(t.Name), t.Description, t.Owner, t.BSSIDType, nullable(string(t.PLMN)))
}

// DeleteTenant implements Session. Owned rows cascade.
func (s *SQLite) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	return s.mustAffect(ctx, "tenant "+id.String(), "DELETE FROM tenants WHERE id = ?", id.String())
}

// CreateDevice implements Session.
func (s *SQLite) CreateDevice(ctx context.Context, d Device) error {
	if err := validDeviceKind(d.Kind); err != nil {
		return err
	}
	return s.insert(ctx, d.Kind+" "+d.Addr.String(),
		"INSERT INTO devices (kind, addr, label) VALUES (?, ?, ?)", d.Kind, d.Addr.String(), d.Label)
}

// DeleteDevice implements Session. Memberships cascade.
func (s *SQLite) DeleteDevice(ctx context.Context, kind string, addr datatypes.EtherAddress) error {
	return s.mustAffect(ctx, kind+" "+addr.String(),
		"DELETE FROM devices WHERE kind = ? AND addr = ?", kind, addr.String())
}

func membershipName(m Membership) string {
	return fmt.Sprintf("%s %s in tenant %s", m.Kind, m.Addr, m.Tenant)
}

// CreateMembership implements Session.
func (s *SQLite) CreateMembership(ctx context.Context, m Membership) error {
	return s.insert(ctx, membershipName(m),
		"INSERT INTO memberships (tenant, kind, addr) VALUES (?, ?, ?)", m.Tenant.String(), m.Kind, m.Addr.String())
}

// DeleteMembership implements Session.
func (s *SQLite) DeleteMembership(ctx context.Context, m Membership) error {
	return s.mustAffect(ctx, membershipName(m),
		"DELETE FROM memberships WHERE tenant = ? AND kind = ? AND addr = ?", m.Tenant.String(), m.Kind, m.Addr.String())
}

// PutSlice implements Session.
func (s *SQLite) PutSlice(ctx context.Context, sl Slice) error {
	return s.insert(ctx, fmt.Sprintf("slice %s in tenant %s", sl.DSCP, sl.Tenant),
		`INSERT INTO slices (tenant, dscp, descriptor) VALUES (?, ?, ?)
		 ON CONFLICT (tenant, dscp) DO UPDATE SET descriptor = excluded.descriptor`,
		sl.Tenant.String(), int(sl.DSCP), string(sl.Descriptor))
}

// DeleteSlice implements Session.
func (s *SQLite) DeleteSlice(ctx context.Context, tenant uuid.UUID, dscp datatypes.DSCP) error {
	return s.mustAffect(ctx, fmt.Sprintf("slice %s in tenant %s", dscp, tenant),
		"DELETE FROM slices WHERE tenant = ? AND dscp = ?", tenant.String(), int(dscp))
}

// CreateEndpoint implements Session.
func (s *SQLite) CreateEndpoint(ctx context.Context, e Endpoint) error {
	return s.insert(ctx, "endpoint "+e.ID.String(),
		"INSERT INTO endpoints (id, tenant, label, dpid) VALUES (?, ?, ?, ?)",
		e.ID.String(), e.Tenant.String(), e.Label, e.DPID.String())
}

// DeleteEndpoint implements Session. Ports cascade.
func (s *SQLite) DeleteEndpoint(ctx context.Context, tenant, id uuid.UUID) error {
	return s.mustAffect(ctx, fmt.Sprintf("endpoint %s in tenant %s", id, tenant),
		"DELETE FROM endpoints WHERE tenant = ? AND id = ?", tenant.String(), id.String())
}

// CreateVirtualPort implements Session.
func (s *SQLite) CreateVirtualPort(ctx context.Context, p VirtualPort) error {
	return s.insert(ctx, fmt.Sprintf("port %d of endpoint %s", p.PortID, p.Endpoint),
		"INSERT INTO virtual_ports (endpoint, port_id, dpid, ofport, iface) VALUES (?, ?, ?, ?, ?)",
		p.Endpoint.String(), int(p.PortID), p.DPID.String(), int(p.OFPort), p.Iface)
}

// CreateTrafficRule implements Session.
func (s *SQLite) CreateTrafficRule(ctx context.Context, tr TrafficRule) error {
	return s.insert(ctx, fmt.Sprintf("traffic rule %s in tenant %s", tr.Match, tr.Tenant),
		"INSERT INTO traffic_rules (tenant, rule, dscp, label) VALUES (?, ?, ?, ?)",
		tr.Tenant.String(), tr.Match, int(tr.DSCP), tr.Label)
}

// DeleteTrafficRule implements Session.
func (s *SQLite) DeleteTrafficRule(ctx context.Context, tenant uuid.UUID, match string) error {
	return s.mustAffect(ctx, fmt.Sprintf("traffic rule %s in tenant %s", match, tenant),
		"DELETE FROM traffic_rules WHERE tenant = ? AND rule = ?", tenant.String(), match)
}

// CreateACL implements Session.
func (s *SQLite) CreateACL(ctx context.Context, e ACLEntry) error {
	return s.insert(ctx, "acl "+e.Addr.String(),
		"INSERT INTO acl (allow, addr, label) VALUES (?, ?, ?)", e.Allow, e.Addr.String(), e.Label)
}

// DeleteACL implements Session.
func (s *SQLite) DeleteACL(ctx context.Context, allow bool, addr datatypes.EtherAddress) error {
	return s.mustAffect(ctx, "acl "+addr.String(), "DELETE FROM acl WHERE allow = ? AND addr = ?", allow, addr.String())
}

// CreateFeed implements Session.
func (s *SQLite) CreateFeed(ctx context.Context, f Feed) error {
	addr := ""
	if !f.Addr.IsZero() {
		addr = f.Addr.String()
	}
	return s.insert(ctx, fmt.Sprintf("feed %d", f.ID),
		"INSERT INTO feeds (id, label, addr) VALUES (?, ?, ?)", f.ID, f.Label, addr)
}

// DeleteFeed implements Session.
func (s *SQLite) DeleteFeed(ctx context.Context, id int) error {
	return s.mustAffect(ctx, fmt.Sprintf("feed %d", id), "DELETE FROM feeds WHERE id = ?", id)
}

// PutIMSIMapping implements Session.
func (s *SQLite) PutIMSIMapping(ctx context.Context, m IMSIMapping) error {
	return s.insert(ctx, "imsi "+m.IMSI,
		`INSERT INTO imsi_mappings (imsi, addr) VALUES (?, ?)
		 ON CONFLICT (imsi) DO UPDATE SET addr = excluded.addr`, m.IMSI, m.Addr.String())
}

// DeleteIMSIMapping implements Session.
func (s *SQLite) DeleteIMSIMapping(ctx context.Context, imsi string) error {
	return s.mustAffect(ctx, "imsi "+imsi, "DELETE FROM imsi_mappings WHERE imsi = ?", imsi)
}
