package lvapp

import (
	"fmt"
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// MessageType is the second header byte.
type MessageType uint8

// Message types.
const (
	TypeHello              MessageType = 0x04
	TypeProbeRequest       MessageType = 0x05
	TypeProbeResponse      MessageType = 0x06
	TypeAuthRequest        MessageType = 0x07
	TypeAuthResponse       MessageType = 0x08
	TypeAssocRequest       MessageType = 0x09
	TypeAssocResponse      MessageType = 0x10
	TypeAddLVAP            MessageType = 0x11
	TypeDelLVAP            MessageType = 0x12
	TypeStatusLVAP         MessageType = 0x13
	TypeCapsRequest        MessageType = 0x16
	TypeCapsResponse       MessageType = 0x17
	TypeLVAPStatusRequest  MessageType = 0x18
	TypeVAPStatusRequest   MessageType = 0x19
	TypeAddVAP             MessageType = 0x31
	TypeDelVAP             MessageType = 0x32
	TypeStatusVAP          MessageType = 0x33
	TypeSetSlice           MessageType = 0x40
	TypeDelSlice           MessageType = 0x41
	TypeStatusSlice        MessageType = 0x42
	TypeBinCounterRequest  MessageType = 0x50
	TypeBinCounterResponse MessageType = 0x51
)

var typeNames = map[MessageType]string{
	TypeHello:              "hello",
	TypeProbeRequest:       "probe_request",
	TypeProbeResponse:      "probe_response",
	TypeAuthRequest:        "auth_request",
	TypeAuthResponse:       "auth_response",
	TypeAssocRequest:       "assoc_request",
	TypeAssocResponse:      "assoc_response",
	TypeAddLVAP:            "add_lvap",
	TypeDelLVAP:            "del_lvap",
	TypeStatusLVAP:         "status_lvap",
	TypeCapsRequest:        "caps_request",
	TypeCapsResponse:       "caps_response",
	TypeLVAPStatusRequest:  "lvap_status_request",
	TypeVAPStatusRequest:   "vap_status_request",
	TypeAddVAP:             "add_vap",
	TypeDelVAP:             "del_vap",
	TypeStatusVAP:          "status_vap",
	TypeSetSlice:           "set_slice",
	TypeDelSlice:           "del_slice",
	TypeStatusSlice:        "status_slice",
	TypeBinCounterRequest:  "bin_counter_request",
	TypeBinCounterResponse: "bin_counter_response",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// Band is the channel width of a radio block.
type Band uint8

// Bands.
const (
	BandL20  Band = 0x00
	BandHT20 Band = 0x01
	BandHT40 Band = 0x02
)

func (b Band) String() string {
	switch b {
	case BandL20:
		return "L20"
	case BandHT20:
		return "HT20"
	case BandHT40:
		return "HT40"
	default:
		return fmt.Sprintf("band(%d)", uint8(b))
	}
}

// ParseBand accepts the names produced by String.
func ParseBand(s string) (Band, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L20":
		return BandL20, nil
	case "HT20":
		return BandHT20, nil
	case "HT40":
		return BandHT40, nil
	}
	return 0, errors.Invalidf(errors.ErrInvalidData, "unknown band %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (b Band) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Band) UnmarshalText(text []byte) error {
	parsed, err := ParseBand(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Block is the wire form of a radio resource block.
type Block struct {
	HWAddr  datatypes.EtherAddress
	Channel uint8
	Band    Band
}

// Port is one network interface advertised in a capabilities response.
type Port struct {
	HWAddr datatypes.EtherAddress
	PortID uint16
	Iface  [10]byte
}

// IfaceName returns Iface with trailing zero bytes removed.
func (p Port) IfaceName() string {
	return strings.TrimRight(string(p.Iface[:]), "\x00")
}

// LVAP flag bits.
const (
	FlagAuthenticated uint16 = 1 << 0
	FlagAssociated    uint16 = 1 << 1
	FlagSetMask       uint16 = 1 << 2
)

// Slice flag bits.
const (
	SliceFlagAMSDU uint8 = 1 << 0
)

// Sample is one (frame size, frame count) pair of a bin counter response.
type Sample struct {
	Size  uint16
	Count uint32
}
