package datatypes

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// DPID is a 64-bit OpenFlow datapath identifier.
type DPID uint64

// ParseDPID accepts eight colon separated hex octets.
func ParseDPID(s string) (DPID, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 8 {
		return 0, errors.Invalidf(errors.ErrInvalidAddress, "invalid datapath id %q", s)
	}
	raw, err := hex.DecodeString(strings.Join(parts, ""))
	if err != nil || len(raw) != 8 {
		return 0, errors.Invalidf(errors.ErrInvalidAddress, "invalid datapath id %q", s)
	}
	return DPID(binary.BigEndian.Uint64(raw)), nil
}

func (d DPID) String() string {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], uint64(d))
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

// Bytes returns the big-endian wire form.
func (d DPID) Bytes() []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(d))
	return raw
}

// MarshalText implements encoding.TextMarshaler.
func (d DPID) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DPID) UnmarshalText(text []byte) error {
	parsed, err := ParseDPID(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
