package runtime

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// BSSIDType selects how a tenant exposes itself to stations.
type BSSIDType string

// BSSID types. A unique tenant gives every station its own BSSID; a shared
// tenant hosts one VAP per radio that all stations join.
const (
	BSSIDUnique BSSIDType = "unique"
	BSSIDShared BSSIDType = "shared"
)

// ParseBSSIDType validates a BSSID type, defaulting to unique.
func ParseBSSIDType(s string) (BSSIDType, error) {
	switch BSSIDType(s) {
	case "", BSSIDUnique:
		return BSSIDUnique, nil
	case BSSIDShared:
		return BSSIDShared, nil
	}
	return "", errors.Invalidf(errors.ErrInvalidData, "unknown bssid type %q", s)
}

// DefaultDSCP keys the slice every UE and station starts on.
const DefaultDSCP = datatypes.DefaultDSCP

// Tenant is an administrative partition of the network.
type Tenant struct {
	ID          uuid.UUID        `json:"tenant_id"`
	Name        datatypes.SSID   `json:"tenant_name"`
	Description string           `json:"desc"`
	Owner       string           `json:"owner"`
	BSSIDType   BSSIDType        `json:"bssid_type"`
	PLMN        datatypes.PLMNID `json:"plmn_id,omitempty"`

	WTPs  map[datatypes.EtherAddress]struct{} `json:"-"`
	VBSes map[datatypes.EtherAddress]struct{} `json:"-"`
	CPPs  map[datatypes.EtherAddress]struct{} `json:"-"`

	Slices       map[datatypes.DSCP]*Slice        `json:"-"`
	TrafficRules map[string]*TrafficRule          `json:"-"`
	Endpoints    map[uuid.UUID]*Endpoint          `json:"-"`
	LVAPs        map[datatypes.EtherAddress]*LVAP `json:"-"`
	VAPs         map[datatypes.EtherAddress]*VAP  `json:"-"`
	UEs          map[uuid.UUID]*UE                `json:"-"`
}

// NewTenant builds a tenant with its default slice.
func NewTenant(id uuid.UUID, name datatypes.SSID, owner string, bssidType BSSIDType, plmn datatypes.PLMNID) *Tenant {
	t := &Tenant{
		ID:           id,
		Name:         name,
		Owner:        owner,
		BSSIDType:    bssidType,
		PLMN:         plmn,
		WTPs:         make(map[datatypes.EtherAddress]struct{}),
		VBSes:        make(map[datatypes.EtherAddress]struct{}),
		CPPs:         make(map[datatypes.EtherAddress]struct{}),
		Slices:       make(map[datatypes.DSCP]*Slice),
		TrafficRules: make(map[string]*TrafficRule),
		Endpoints:    make(map[uuid.UUID]*Endpoint),
		LVAPs:        make(map[datatypes.EtherAddress]*LVAP),
		VAPs:         make(map[datatypes.EtherAddress]*VAP),
		UEs:          make(map[uuid.UUID]*UE),
	}
	t.Slices[DefaultDSCP] = NewSlice(DefaultDSCP)
	return t
}

// Members returns the membership set for kind.
func (t *Tenant) Members(kind DeviceKind) map[datatypes.EtherAddress]struct{} {
	switch kind {
	case KindWTP:
		return t.WTPs
	case KindVBS:
		return t.VBSes
	default:
		return t.CPPs
	}
}

// HasMember reports whether the device is part of the tenant.
func (t *Tenant) HasMember(kind DeviceKind, addr datatypes.EtherAddress) bool {
	_, ok := t.Members(kind)[addr]
	return ok
}

// SortedMembers returns the members of kind in address order.
func (t *Tenant) SortedMembers(kind DeviceKind) []datatypes.EtherAddress {
	return sortedAddrs(t.Members(kind))
}

// SortedSlices returns the slices in DSCP order.
func (t *Tenant) SortedSlices() []*Slice {
	slices := make([]*Slice, 0, len(t.Slices))
	for _, s := range t.Slices {
		slices = append(slices, s)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].DSCP < slices[j].DSCP })
	return slices
}

// LTEProps are the MAC scheduling properties of a slice on a VBS.
type LTEProps struct {
	SchedID uint32 `json:"sched_id"`
	RBGs    uint8  `json:"rbgs"`
}

// WiFiProps are the scheduling properties of a slice on a WTP.
type WiFiProps struct {
	Quantum   uint32 `json:"quantum"`
	AMSDU     bool   `json:"amsdu_aggregation"`
	Scheduler uint32 `json:"scheduler"`
}

// Default slice properties.
var (
	DefaultLTEProps  = LTEProps{SchedID: 0, RBGs: 6}
	DefaultWiFiProps = WiFiProps{Quantum: 12000}
)

// Slice is a per-tenant bundle of resources keyed by DSCP. Per-device
// overrides replace the static properties on that device.
type Slice struct {
	DSCP        datatypes.DSCP                       `json:"dscp"`
	LTE         LTEProps                             `json:"lte"`
	WiFi        WiFiProps                            `json:"wifi"`
	LTEDevices  map[datatypes.EtherAddress]LTEProps  `json:"lte_devices"`
	WiFiDevices map[datatypes.EtherAddress]WiFiProps `json:"wifi_devices"`

	// cells on which the slice has been pushed at least once
	pushed map[CellRef]bool
}

// NewSlice returns a slice with default properties.
func NewSlice(dscp datatypes.DSCP) *Slice {
	return &Slice{
		DSCP:        dscp,
		LTE:         DefaultLTEProps,
		WiFi:        DefaultWiFiProps,
		LTEDevices:  make(map[datatypes.EtherAddress]LTEProps),
		WiFiDevices: make(map[datatypes.EtherAddress]WiFiProps),
		pushed:      make(map[CellRef]bool),
	}
}

func (s *Slice) init() {
	if s.LTEDevices == nil {
		s.LTEDevices = make(map[datatypes.EtherAddress]LTEProps)
	}
	if s.WiFiDevices == nil {
		s.WiFiDevices = make(map[datatypes.EtherAddress]WiFiProps)
	}
	if s.pushed == nil {
		s.pushed = make(map[CellRef]bool)
	}
}

// LTEFor returns the effective properties on vbs.
func (s *Slice) LTEFor(vbs datatypes.EtherAddress) LTEProps {
	if p, ok := s.LTEDevices[vbs]; ok {
		return p
	}
	return s.LTE
}

// WiFiFor returns the effective properties on wtp.
func (s *Slice) WiFiFor(wtp datatypes.EtherAddress) WiFiProps {
	if p, ok := s.WiFiDevices[wtp]; ok {
		return p
	}
	return s.WiFi
}

// TrafficRule maps packets matching Match onto the slice DSCP.
type TrafficRule struct {
	Match datatypes.Match `json:"match"`
	DSCP  datatypes.DSCP  `json:"dscp"`
	Label string          `json:"label"`
}

// VirtualPort is one port of an endpoint, backed by a datapath port.
type VirtualPort struct {
	PortID uint16         `json:"port_id"`
	DPID   datatypes.DPID `json:"dpid"`
	OFPort uint16         `json:"ovs_port_id"`
	Iface  string         `json:"iface"`
}

// Endpoint is a tenant-owned virtual switch stitched onto datapath ports.
type Endpoint struct {
	ID    uuid.UUID               `json:"endpoint_id"`
	Label string                  `json:"label"`
	DPID  datatypes.DPID          `json:"dpid"`
	Ports map[uint16]*VirtualPort `json:"ports"`
}

// ACLEntry is one allow or deny list row.
type ACLEntry struct {
	Addr  datatypes.EtherAddress `json:"addr"`
	Label string                 `json:"label"`
}

// Feed is an energy meter reporting through the feed ingest endpoint.
type Feed struct {
	ID      int                    `json:"id"`
	Label   string                 `json:"label"`
	Addr    datatypes.EtherAddress `json:"addr,omitempty"`
	Value   float64                `json:"current_value"`
	Updated time.Time              `json:"updated,omitempty"`
}

func sortedAddrs[V any](m map[datatypes.EtherAddress]V) []datatypes.EtherAddress {
	out := make([]datatypes.EtherAddress, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
