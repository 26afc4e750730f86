package lvapp

import (
	"bytes"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// Hello is the periodic WTP heartbeat. Period travels as milliseconds.
type Hello struct {
	WTP    datatypes.EtherAddress
	Period time.Duration
}

func (*Hello) Type() MessageType { return TypeHello }

func (m *Hello) marshalBody(buf *bytes.Buffer) error {
	return wire.Put(buf, m.WTP, uint32(m.Period/time.Millisecond))
}

func (m *Hello) unmarshalBody(r *bytes.Reader) error {
	var ms uint32
	if err := wire.Get(r, &m.WTP, &ms); err != nil {
		return err
	}
	m.Period = time.Duration(ms) * time.Millisecond
	return nil
}

// ProbeRequest is forwarded by a WTP for every probe it hears.
type ProbeRequest struct {
	WTP   datatypes.EtherAddress
	STA   datatypes.EtherAddress
	Block Block
	SSID  datatypes.SSID
}

func (*ProbeRequest) Type() MessageType { return TypeProbeRequest }

func (m *ProbeRequest) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.WTP, m.STA, m.Block); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *ProbeRequest) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.WTP, &m.STA, &m.Block); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// ProbeResponse tells the WTP to answer a station's probe.
type ProbeResponse struct {
	STA  datatypes.EtherAddress
	SSID datatypes.SSID
}

func (*ProbeResponse) Type() MessageType { return TypeProbeResponse }

func (m *ProbeResponse) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.STA); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *ProbeResponse) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.STA); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// AuthRequest carries an 802.11 open-system authentication attempt.
type AuthRequest struct {
	WTP   datatypes.EtherAddress
	STA   datatypes.EtherAddress
	BSSID datatypes.EtherAddress
}

func (*AuthRequest) Type() MessageType { return TypeAuthRequest }

func (m *AuthRequest) marshalBody(buf *bytes.Buffer) error {
	return wire.Put(buf, m.WTP, m.STA, m.BSSID)
}

func (m *AuthRequest) unmarshalBody(r *bytes.Reader) error {
	return wire.Get(r, &m.WTP, &m.STA, &m.BSSID)
}

// AuthResponse accepts an authentication attempt against BSSID.
type AuthResponse struct {
	STA   datatypes.EtherAddress
	BSSID datatypes.EtherAddress
}

func (*AuthResponse) Type() MessageType { return TypeAuthResponse }

func (m *AuthResponse) marshalBody(buf *bytes.Buffer) error {
	return wire.Put(buf, m.STA, m.BSSID)
}

func (m *AuthResponse) unmarshalBody(r *bytes.Reader) error {
	return wire.Get(r, &m.STA, &m.BSSID)
}

// AssocRequest names the (BSSID, SSID) pair a station wants to join.
type AssocRequest struct {
	WTP   datatypes.EtherAddress
	STA   datatypes.EtherAddress
	BSSID datatypes.EtherAddress
	SSID  datatypes.SSID
}

func (*AssocRequest) Type() MessageType { return TypeAssocRequest }

func (m *AssocRequest) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.WTP, m.STA, m.BSSID); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *AssocRequest) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.WTP, &m.STA, &m.BSSID); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// AssocResponse completes an association.
type AssocResponse struct {
	STA datatypes.EtherAddress
}

func (*AssocResponse) Type() MessageType { return TypeAssocResponse }

func (m *AssocResponse) marshalBody(buf *bytes.Buffer) error { return wire.Put(buf, m.STA) }

func (m *AssocResponse) unmarshalBody(r *bytes.Reader) error { return wire.Get(r, &m.STA) }

// AddLVAP installs or updates an LVAP on one radio block of a WTP.
type AddLVAP struct {
	ModuleID  uint32
	Flags     uint16
	AssocID   uint16
	Block     Block
	STA       datatypes.EtherAddress
	Encap     datatypes.EtherAddress
	NetBSSID  datatypes.EtherAddress
	LVAPBSSID datatypes.EtherAddress
	SSIDs     []datatypes.SSID
}

func (*AddLVAP) Type() MessageType { return TypeAddLVAP }

// Module returns the correlation id.
func (m *AddLVAP) Module() uint32 { return m.ModuleID }

func (m *AddLVAP) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.ModuleID, m.Flags, m.AssocID, m.Block, m.STA, m.Encap, m.NetBSSID, m.LVAPBSSID); err != nil {
		return err
	}
	return putSSIDs(buf, m.SSIDs)
}

func (m *AddLVAP) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.ModuleID, &m.Flags, &m.AssocID, &m.Block, &m.STA, &m.Encap, &m.NetBSSID, &m.LVAPBSSID); err != nil {
		return err
	}
	ssids, err := getSSIDs(r)
	m.SSIDs = ssids
	return err
}

// DelLVAP removes an LVAP from a WTP. A non-zero CSA count asks the WTP to
// announce a channel switch to Target before tearing the LVAP down.
type DelLVAP struct {
	ModuleID       uint32
	STA            datatypes.EtherAddress
	CSASwitchMode  uint8
	CSASwitchCount uint8
	Target         Block
}

func (*DelLVAP) Type() MessageType { return TypeDelLVAP }

// Module returns the correlation id.
func (m *DelLVAP) Module() uint32 { return m.ModuleID }

func (m *DelLVAP) marshalBody(buf *bytes.Buffer) error {
	return wire.Put(buf, m.ModuleID, m.STA, m.CSASwitchMode, m.CSASwitchCount, m.Target)
}

func (m *DelLVAP) unmarshalBody(r *bytes.Reader) error {
	return wire.Get(r, &m.ModuleID, &m.STA, &m.CSASwitchMode, &m.CSASwitchCount, &m.Target)
}

// StatusLVAP reports an LVAP as installed on a WTP. It answers AddLVAP and
// LVAPStatusRequest.
type StatusLVAP struct {
	Flags     uint16
	AssocID   uint16
	WTP       datatypes.EtherAddress
	STA       datatypes.EtherAddress
	Encap     datatypes.EtherAddress
	Block     Block
	NetBSSID  datatypes.EtherAddress
	LVAPBSSID datatypes.EtherAddress
	SSIDs     []datatypes.SSID
}

func (*StatusLVAP) Type() MessageType { return TypeStatusLVAP }

func (m *StatusLVAP) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.Flags, m.AssocID, m.WTP, m.STA, m.Encap, m.Block, m.NetBSSID, m.LVAPBSSID); err != nil {
		return err
	}
	return putSSIDs(buf, m.SSIDs)
}

func (m *StatusLVAP) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.Flags, &m.AssocID, &m.WTP, &m.STA, &m.Encap, &m.Block, &m.NetBSSID, &m.LVAPBSSID); err != nil {
		return err
	}
	ssids, err := getSSIDs(r)
	m.SSIDs = ssids
	return err
}

// Authenticated reports the authenticated flag.
func (m *StatusLVAP) Authenticated() bool { return m.Flags&FlagAuthenticated != 0 }

// Associated reports the associated flag.
func (m *StatusLVAP) Associated() bool { return m.Flags&FlagAssociated != 0 }

// SetMask reports whether Block carries the downlink.
func (m *StatusLVAP) SetMask() bool { return m.Flags&FlagSetMask != 0 }

// CapsRequest asks a WTP for its radio blocks and ports.
type CapsRequest struct{}

func (*CapsRequest) Type() MessageType { return TypeCapsRequest }
func (*CapsRequest) marshalBody(*bytes.Buffer) error { return nil }
func (*CapsRequest) unmarshalBody(*bytes.Reader) error { return nil }

// CapsResponse lists the radio blocks and ports of a WTP.
type CapsResponse struct {
	WTP    datatypes.EtherAddress
	Blocks []Block
	Ports  []Port
}

func (*CapsResponse) Type() MessageType { return TypeCapsResponse }

func (m *CapsResponse) marshalBody(buf *bytes.Buffer) error {
	if len(m.Blocks) > 0xff || len(m.Ports) > 0xff {
		return errTooMany("caps_response")
	}
	if err := wire.Put(buf, m.WTP, uint8(len(m.Blocks)), uint8(len(m.Ports))); err != nil {
		return err
	}
	for i := range m.Blocks {
		if err := wire.Put(buf, &m.Blocks[i]); err != nil {
			return err
		}
	}
	for i := range m.Ports {
		if err := wire.Put(buf, &m.Ports[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *CapsResponse) unmarshalBody(r *bytes.Reader) error {
	var nBlocks, nPorts uint8
	if err := wire.Get(r, &m.WTP, &nBlocks, &nPorts); err != nil {
		return err
	}
	var err error
	if m.Blocks, err = wire.GetArray[Block](r, int(nBlocks)); err != nil {
		return err
	}
	m.Ports, err = wire.GetArray[Port](r, int(nPorts))
	return err
}

// LVAPStatusRequest asks a WTP to report every LVAP it hosts.
type LVAPStatusRequest struct{}

func (*LVAPStatusRequest) Type() MessageType { return TypeLVAPStatusRequest }
func (*LVAPStatusRequest) marshalBody(*bytes.Buffer) error { return nil }
func (*LVAPStatusRequest) unmarshalBody(*bytes.Reader) error { return nil }

// VAPStatusRequest asks a WTP to report every VAP it hosts.
type VAPStatusRequest struct{}

func (*VAPStatusRequest) Type() MessageType { return TypeVAPStatusRequest }
func (*VAPStatusRequest) marshalBody(*bytes.Buffer) error { return nil }
func (*VAPStatusRequest) unmarshalBody(*bytes.Reader) error { return nil }

// AddVAP materializes a shared BSSID on one radio block.
type AddVAP struct {
	Block    Block
	NetBSSID datatypes.EtherAddress
	SSID     datatypes.SSID
}

func (*AddVAP) Type() MessageType { return TypeAddVAP }

func (m *AddVAP) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.Block, m.NetBSSID); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *AddVAP) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.Block, &m.NetBSSID); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// DelVAP removes a shared BSSID.
type DelVAP struct {
	NetBSSID datatypes.EtherAddress
}

func (*DelVAP) Type() MessageType { return TypeDelVAP }

func (m *DelVAP) marshalBody(buf *bytes.Buffer) error { return wire.Put(buf, m.NetBSSID) }

func (m *DelVAP) unmarshalBody(r *bytes.Reader) error { return wire.Get(r, &m.NetBSSID) }

// StatusVAP reports a VAP hosted on a WTP.
type StatusVAP struct {
	WTP      datatypes.EtherAddress
	Block    Block
	NetBSSID datatypes.EtherAddress
	SSID     datatypes.SSID
}

func (*StatusVAP) Type() MessageType { return TypeStatusVAP }

func (m *StatusVAP) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.WTP, m.Block, m.NetBSSID); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *StatusVAP) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.WTP, &m.Block, &m.NetBSSID); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// SetSlice creates or updates a Wi-Fi slice for the tenant named by SSID.
type SetSlice struct {
	DSCP      uint8
	Flags     uint8
	Quantum   uint32
	Scheduler uint32
	SSID      datatypes.SSID
}

func (*SetSlice) Type() MessageType { return TypeSetSlice }

func (m *SetSlice) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.DSCP, m.Flags, m.Quantum, m.Scheduler); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *SetSlice) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.DSCP, &m.Flags, &m.Quantum, &m.Scheduler); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// DelSlice removes a Wi-Fi slice.
type DelSlice struct {
	DSCP uint8
	SSID datatypes.SSID
}

func (*DelSlice) Type() MessageType { return TypeDelSlice }

func (m *DelSlice) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.DSCP); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *DelSlice) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.DSCP); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// StatusSlice reports a Wi-Fi slice as configured on a WTP.
type StatusSlice struct {
	WTP       datatypes.EtherAddress
	DSCP      uint8
	Flags     uint8
	Quantum   uint32
	Scheduler uint32
	SSID      datatypes.SSID
}

func (*StatusSlice) Type() MessageType { return TypeStatusSlice }

func (m *StatusSlice) marshalBody(buf *bytes.Buffer) error {
	if err := wire.Put(buf, m.WTP, m.DSCP, m.Flags, m.Quantum, m.Scheduler); err != nil {
		return err
	}
	return wire.PutString8(buf, string(m.SSID))
}

func (m *StatusSlice) unmarshalBody(r *bytes.Reader) error {
	if err := wire.Get(r, &m.WTP, &m.DSCP, &m.Flags, &m.Quantum, &m.Scheduler); err != nil {
		return err
	}
	ssid, err := getSSID(r)
	m.SSID = ssid
	return err
}

// BinCounterRequest polls frame size statistics for one station.
type BinCounterRequest struct {
	ModuleID uint32
	STA      datatypes.EtherAddress
}

func (*BinCounterRequest) Type() MessageType { return TypeBinCounterRequest }

// Module returns the correlation id.
func (m *BinCounterRequest) Module() uint32 { return m.ModuleID }

func (m *BinCounterRequest) marshalBody(buf *bytes.Buffer) error {
	return wire.Put(buf, m.ModuleID, m.STA)
}

func (m *BinCounterRequest) unmarshalBody(r *bytes.Reader) error {
	return wire.Get(r, &m.ModuleID, &m.STA)
}

// BinCounterResponse carries raw transmit and receive samples.
type BinCounterResponse struct {
	ModuleID uint32
	WTP      datatypes.EtherAddress
	STA      datatypes.EtherAddress
	TX       []Sample
	RX       []Sample
}

func (*BinCounterResponse) Type() MessageType { return TypeBinCounterResponse }

// Module returns the correlation id.
func (m *BinCounterResponse) Module() uint32 { return m.ModuleID }

func (m *BinCounterResponse) marshalBody(buf *bytes.Buffer) error {
	if len(m.TX) > 0xffff || len(m.RX) > 0xffff {
		return errTooMany("bin_counter_response")
	}
	if err := wire.Put(buf, m.ModuleID, m.WTP, m.STA, uint16(len(m.TX)), uint16(len(m.RX))); err != nil {
		return err
	}
	for _, samples := range [][]Sample{m.TX, m.RX} {
		for i := range samples {
			if err := wire.Put(buf, &samples[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *BinCounterResponse) unmarshalBody(r *bytes.Reader) error {
	var nTX, nRX uint16
	if err := wire.Get(r, &m.ModuleID, &m.WTP, &m.STA, &nTX, &nRX); err != nil {
		return err
	}
	var err error
	if m.TX, err = wire.GetArray[Sample](r, int(nTX)); err != nil {
		return err
	}
	m.RX, err = wire.GetArray[Sample](r, int(nRX))
	return err
}

// Unknown preserves the body of a message type this codec does not model.
type Unknown struct {
	MsgType MessageType
	Body    []byte
}

func (m *Unknown) Type() MessageType { return m.MsgType }

func (m *Unknown) marshalBody(buf *bytes.Buffer) error {
	buf.Write(m.Body)
	return nil
}

func (m *Unknown) unmarshalBody(r *bytes.Reader) error {
	m.Body = wire.Rest(r)
	return nil
}
