package runtime

import (
	"fmt"
	"sort"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

// DeviceKind distinguishes the three device variants.
type DeviceKind string

// Device kinds.
const (
	KindWTP DeviceKind = "wtp"
	KindVBS DeviceKind = "vbs"
	KindCPP DeviceKind = "cpp"
)

// ParseDeviceKind accepts the REST collection names as well as the kind names.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "wtp", "wtps":
		return KindWTP, nil
	case "vbs", "vbses":
		return KindVBS, nil
	case "cpp", "cpps":
		return KindCPP, nil
	}
	return "", errors.Invalidf(errors.ErrInvalidData, "unknown device kind %q", s)
}

// DeviceState is the lifecycle state of a device entry.
type DeviceState int

// Device states. A device entry starts disconnected, becomes connected on its
// first hello and online once its capabilities are known.
const (
	StateDisconnected DeviceState = iota
	StateConnected
	StateOnline
)

func (s DeviceState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateOnline:
		return "online"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DeviceState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Link is the live session a device is bound to. Send is called on the event
// loop with the sequence number the frame must carry.
type Link interface {
	Send(seq uint32, msg any) error
	Close(reason string)
	RemoteAddr() string
}

// Port is a network interface advertised by a device.
type Port struct {
	HWAddr datatypes.EtherAddress `json:"hwaddr"`
	PortID uint16                 `json:"port_id"`
	Iface  string                 `json:"iface"`
}

// Device is the state shared by every device kind.
type Device struct {
	Addr     datatypes.EtherAddress `json:"addr"`
	Label    string                 `json:"label"`
	State    DeviceState            `json:"state"`
	LastSeq  uint32                 `json:"last_seen"`
	LastSeen time.Time              `json:"last_seen_ts"`
	Period   time.Duration          `json:"period"`
	Ports    map[uint16]Port        `json:"ports"`

	link Link
	seq  uint32
}

func newDevice(addr datatypes.EtherAddress, label string) Device {
	return Device{Addr: addr, Label: label, Ports: make(map[uint16]Port)}
}

// Link returns the bound session, or nil.
func (d *Device) Link() Link { return d.link }

// IsConnected reports whether a session is bound.
func (d *Device) IsConnected() bool { return d.link != nil }

// IsOnline reports whether capabilities have been received.
func (d *Device) IsOnline() bool { return d.link != nil && d.State == StateOnline }

// BoundTo reports whether link is the session currently bound to the device.
func (d *Device) BoundTo(link Link) bool { return link != nil && d.link == link }

// Seq returns the last outbound sequence number used.
func (d *Device) Seq() uint32 { return d.seq }

// send assigns the next sequence number and hands msg to the session.
func (d *Device) send(msg any) error {
	if d.link == nil {
		return errors.WrapTransient(errors.ErrDeviceOffline, "runtime", "send", d.Addr.String())
	}
	d.seq++
	return d.link.Send(d.seq, msg)
}

func (d *Device) touch(seq uint32, period time.Duration, now time.Time) {
	d.LastSeq = seq
	d.LastSeen = now
	if period > 0 {
		d.Period = period
	}
}

func (d *Device) reset() {
	d.link = nil
	d.State = StateDisconnected
	d.LastSeen = time.Time{}
	d.LastSeq = 0
	d.Ports = make(map[uint16]Port)
}

// ResourceBlock is one radio of a WTP on one channel. Two blocks are equal when
// every field is.
type ResourceBlock struct {
	WTP     datatypes.EtherAddress `json:"wtp"`
	HWAddr  datatypes.EtherAddress `json:"hwaddr"`
	Channel uint8                  `json:"channel"`
	Band    lvapp.Band             `json:"band"`
}

func (b ResourceBlock) String() string {
	return fmt.Sprintf("(%s, %s, %d, %s)", b.WTP, b.HWAddr, b.Channel, b.Band)
}

// Wire returns the block as carried in LVAPP frames.
func (b ResourceBlock) Wire() lvapp.Block {
	return lvapp.Block{HWAddr: b.HWAddr, Channel: b.Channel, Band: b.Band}
}

// BlockFromWire binds a wire block to wtp.
func BlockFromWire(wtp datatypes.EtherAddress, b lvapp.Block) ResourceBlock {
	return ResourceBlock{WTP: wtp, HWAddr: b.HWAddr, Channel: b.Channel, Band: b.Band}
}

// WTP is a Wi-Fi access point.
type WTP struct {
	Device
	Blocks []ResourceBlock `json:"supports"`
}

// Block returns the supported block matching the wire block.
func (w *WTP) Block(b lvapp.Block) (ResourceBlock, bool) {
	want := BlockFromWire(w.Addr, b)
	for _, block := range w.Blocks {
		if block == want {
			return block, true
		}
	}
	return ResourceBlock{}, false
}

// Cell is one physical cell of a VBS.
type Cell struct {
	VBS         datatypes.EtherAddress `json:"vbs"`
	PCI         uint16                 `json:"pci"`
	DLEarfcn    uint32                 `json:"dl_earfcn"`
	ULEarfcn    uint32                 `json:"ul_earfcn"`
	DLBandwidth uint8                  `json:"dl_bandwidth"`
	ULBandwidth uint8                  `json:"ul_bandwidth"`
	Features    uint32                 `json:"features"`

	// RAN slicing capabilities, valid when RANCaps is set.
	RANCaps   bool   `json:"ran_caps"`
	SchedID   uint32 `json:"sched_id"`
	MaxSlices uint16 `json:"max_slices"`

	MACReport       *MACReport                `json:"mac_prb_utilization,omitempty"`
	RRCMeasurements map[uint16]RRCMeasurement `json:"-"`
}

// MACReport is the last PRB utilization sample of a cell.
type MACReport struct {
	DLPRBs  uint8     `json:"dl_prbs"`
	DLUsed  uint32    `json:"dl_prbs_used"`
	ULPRBs  uint8     `json:"ul_prbs"`
	ULUsed  uint32    `json:"ul_prbs_used"`
	Updated time.Time `json:"updated"`
}

// RRCMeasurement is the last RRC report of one UE about one cell.
type RRCMeasurement struct {
	RNTI    uint16    `json:"rnti"`
	PCI     uint16    `json:"pci"`
	RSRP    int16     `json:"rsrp"`
	RSRQ    int16     `json:"rsrq"`
	Updated time.Time `json:"updated"`
}

// CellRef names a cell by VBS and PCI.
type CellRef struct {
	VBS datatypes.EtherAddress `json:"vbs"`
	PCI uint16                 `json:"pci"`
}

func (c CellRef) String() string { return fmt.Sprintf("%s/%d", c.VBS, c.PCI) }

// VBS is an LTE base station.
type VBS struct {
	Device
	Cells map[uint16]*Cell `json:"cells"`
}

// SortedCells returns the cells ordered by PCI.
func (v *VBS) SortedCells() []*Cell {
	cells := make([]*Cell, 0, len(v.Cells))
	for _, c := range v.Cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].PCI < cells[j].PCI })
	return cells
}

// CPP is a click packet processor.
type CPP struct {
	Device
	DPID datatypes.DPID `json:"dpid"`
}

// Datapath is an OpenFlow datapath learned from CPP capabilities.
type Datapath struct {
	DPID  datatypes.DPID         `json:"dpid"`
	CPP   datatypes.EtherAddress `json:"cpp"`
	Ports map[uint16]Port        `json:"ports"`
}
