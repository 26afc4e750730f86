package datatypes

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// EtherAddress is a 48-bit IEEE 802 MAC address.
type EtherAddress [6]byte

// Broadcast is ff:ff:ff:ff:ff:ff.
var Broadcast = EtherAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseEtherAddress accepts colon or dash separated hex octets in any case.
func ParseEtherAddress(s string) (EtherAddress, error) {
	var addr EtherAddress
	s = strings.TrimSpace(s)
	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(clean) != 12 || len(s) != 17 {
		return addr, errors.Invalidf(errors.ErrInvalidAddress, "invalid ethernet address %q", s)
	}
	if _, err := hex.Decode(addr[:], []byte(clean)); err != nil {
		return addr, errors.Invalidf(errors.ErrInvalidAddress, "invalid ethernet address %q", s)
	}
	return addr, nil
}

// MustParseEtherAddress panics on malformed input. Intended for constants and tests.
func MustParseEtherAddress(s string) EtherAddress {
	addr, err := ParseEtherAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// EtherAddressFromBytes copies the first six bytes of b.
func EtherAddressFromBytes(b []byte) (EtherAddress, error) {
	var addr EtherAddress
	if len(b) < len(addr) {
		return addr, errors.Invalidf(errors.ErrInvalidAddress, "need 6 bytes, got %d", len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

func (a EtherAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Bytes returns a copy of the raw address.
func (a EtherAddress) Bytes() []byte {
	b := make([]byte, 6)
	copy(b, a[:])
	return b
}

// IsZero reports whether every octet is zero.
func (a EtherAddress) IsZero() bool { return a == EtherAddress{} }

// IsBroadcast reports whether a is ff:ff:ff:ff:ff:ff.
func (a EtherAddress) IsBroadcast() bool { return a == Broadcast }

// Xor returns the octet-wise exclusive or of a and b.
func (a EtherAddress) Xor(b EtherAddress) EtherAddress {
	var out EtherAddress
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (a EtherAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *EtherAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseEtherAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
