package datatypes

import (
	"unicode/utf8"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// MaxSSIDLength is the 802.11 limit on SSID octets.
const MaxSSIDLength = 32

// SSID is a Wi-Fi network name. The empty SSID is the wildcard used by probes.
type SSID string

// ParseSSID validates length and encoding.
func ParseSSID(s string) (SSID, error) {
	if len(s) > MaxSSIDLength {
		return "", errors.Invalidf(errors.ErrInvalidData, "ssid %q longer than %d bytes", s, MaxSSIDLength)
	}
	if !utf8.ValidString(s) {
		return "", errors.Invalidf(errors.ErrInvalidData, "ssid is not valid utf-8")
	}
	return SSID(s), nil
}

func (s SSID) String() string { return string(s) }

// Bytes returns the wire form.
func (s SSID) Bytes() []byte { return []byte(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SSID) UnmarshalText(text []byte) error {
	parsed, err := ParseSSID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
