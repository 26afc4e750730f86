package persistence

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
)

// Role grants REST privileges.
type Role string

// Roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Account is a REST user. PasswordHash is never serialized.
type Account struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"-"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
}

// IsAdmin reports whether the account has the admin role.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Tenant is a persisted tenant row.
type Tenant struct {
	ID          uuid.UUID        `json:"tenant_id"`
	Name        datatypes.SSID   `json:"tenant_name"`
	Description string           `json:"desc"`
	Owner       string           `json:"owner"`
	BSSIDType   string           `json:"bssid_type"`
	PLMN        datatypes.PLMNID `json:"plmn_id,omitempty"`
}

// Device is a persisted device row. Kind is the discriminator: wtp, vbs or
// cpp.
type Device struct {
	Kind  string                 `json:"kind"`
	Addr  datatypes.EtherAddress `json:"addr"`
	Label string                 `json:"label"`
}

// Membership ties a device to a tenant.
type Membership struct {
	Tenant uuid.UUID              `json:"tenant_id"`
	Kind   string                 `json:"kind"`
	Addr   datatypes.EtherAddress `json:"addr"`
}

// Slice is a persisted slice. Descriptor is the JSON form of the slice
// properties, including per-device overrides.
type Slice struct {
	Tenant     uuid.UUID       `json:"tenant_id"`
	DSCP       datatypes.DSCP  `json:"dscp"`
	Descriptor json.RawMessage `json:"descriptor"`
}

// Endpoint is a persisted tenant endpoint.
type Endpoint struct {
	Tenant uuid.UUID      `json:"tenant_id"`
	ID     uuid.UUID      `json:"endpoint_id"`
	Label  string         `json:"label"`
	DPID   datatypes.DPID `json:"dpid"`
}

// VirtualPort is a persisted port of an endpoint.
type VirtualPort struct {
	Endpoint uuid.UUID      `json:"endpoint_id"`
	PortID   uint16         `json:"port_id"`
	DPID     datatypes.DPID `json:"dpid"`
	OFPort   uint16         `json:"ovs_port_id"`
	Iface    string         `json:"iface"`
}

// TrafficRule is a persisted traffic rule. Match is the canonical match
// string and is unique per tenant.
type TrafficRule struct {
	Tenant uuid.UUID      `json:"tenant_id"`
	Match  string         `json:"match"`
	DSCP   datatypes.DSCP `json:"dscp"`
	Label  string         `json:"label"`
}

// ACLEntry is an allow or deny list row.
type ACLEntry struct {
	Allow bool                   `json:"allow"`
	Addr  datatypes.EtherAddress `json:"addr"`
	Label string                 `json:"label"`
}

// Feed is a persisted energy feed.
type Feed struct {
	ID    int                    `json:"id"`
	Label string                 `json:"label"`
	Addr  datatypes.EtherAddress `json:"addr,omitempty"`
}

// IMSIMapping binds a subscriber IMSI to a MAC address.
type IMSIMapping struct {
	IMSI string                 `json:"imsi"`
	Addr datatypes.EtherAddress `json:"addr"`
}

// Snapshot is every persisted row, each list in the order the controller
// applies it at startup.
type Snapshot struct {
	Accounts     []Account
	Tenants      []Tenant
	Devices      []Device
	Memberships  []Membership
	ACL          []ACLEntry
	Slices       []Slice
	Endpoints    []Endpoint
	VirtualPorts []VirtualPort
	TrafficRules []TrafficRule
	Feeds        []Feed
	IMSIMappings []IMSIMapping
}
