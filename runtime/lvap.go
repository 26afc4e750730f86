package runtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

// LVAP is the virtual access point the controller keeps for one station.
//
// The downlink holds at most one block and is the radio the station is served
// from; uplink blocks only receive. Every uplink block is also in Supports.
type LVAP struct {
	Addr          datatypes.EtherAddress `json:"addr"`
	NetBSSID      datatypes.EtherAddress `json:"net_bssid"`
	LVAPBSSID     datatypes.EtherAddress `json:"lvap_bssid"`
	AssocID       uint16                 `json:"assoc_id"`
	Encap         datatypes.EtherAddress `json:"encap"`
	Authenticated bool                   `json:"authentication_state"`
	Associated    bool                   `json:"association_state"`
	Tenant        uuid.UUID              `json:"tenant_id"`
	SSIDs         []datatypes.SSID       `json:"ssids"`
	Supports      []ResourceBlock        `json:"supports"`
	Iface         string                 `json:"iface"`
	Slice         datatypes.DSCP         `json:"slice"`

	downlink *ResourceBlock
	uplink   []ResourceBlock
	pending  *lvapHandover
}

type lvapHandover struct {
	source  ResourceBlock
	target  ResourceBlock
	started time.Time
}

func (l *LVAP) String() string { return fmt.Sprintf("LVAP %s", l.Addr) }

// Downlink returns the serving block.
func (l *LVAP) Downlink() (ResourceBlock, bool) {
	if l.downlink == nil {
		return ResourceBlock{}, false
	}
	return *l.downlink, true
}

// WTP returns the address of the WTP serving the LVAP, or the zero address.
func (l *LVAP) WTP() datatypes.EtherAddress {
	if l.downlink == nil {
		return datatypes.EtherAddress{}
	}
	return l.downlink.WTP
}

// Uplink returns the receive-only blocks in installation order.
func (l *LVAP) Uplink() []ResourceBlock {
	return append([]ResourceBlock(nil), l.uplink...)
}

// HandoverPending reports whether a downlink move awaits confirmation.
func (l *LVAP) HandoverPending() bool { return l.pending != nil }

// HasSSID reports whether ssid is one of the candidate SSIDs.
func (l *LVAP) HasSSID(ssid datatypes.SSID) bool {
	for _, s := range l.SSIDs {
		if s == ssid {
			return true
		}
	}
	return false
}

func (l *LVAP) flags(setMask bool) uint16 {
	var f uint16
	if l.Authenticated {
		f |= lvapp.FlagAuthenticated
	}
	if l.Associated {
		f |= lvapp.FlagAssociated
	}
	if setMask {
		f |= lvapp.FlagSetMask
	}
	return f
}

func (l *LVAP) supports(b ResourceBlock) bool {
	for _, s := range l.Supports {
		if s == b {
			return true
		}
	}
	return false
}

func (l *LVAP) addSupport(b ResourceBlock) {
	if !l.supports(b) {
		l.Supports = append(l.Supports, b)
	}
}

func (l *LVAP) hasUplink(b ResourceBlock) bool {
	for _, u := range l.uplink {
		if u == b {
			return true
		}
	}
	return false
}

func (l *LVAP) dropUplink(b ResourceBlock) bool {
	for i, u := range l.uplink {
		if u == b {
			l.uplink = append(l.uplink[:i], l.uplink[i+1:]...)
			return true
		}
	}
	return false
}

// VAP is a shared BSSID hosted on one radio of a WTP.
type VAP struct {
	BSSID  datatypes.EtherAddress `json:"bssid"`
	Tenant uuid.UUID              `json:"tenant_id"`
	WTP    datatypes.EtherAddress `json:"wtp"`
	Block  ResourceBlock          `json:"block"`
	SSID   datatypes.SSID         `json:"ssid"`
}
