package datatypes

import (
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// PLMNID identifies a mobile network: MCC followed by a two or three digit MNC.
type PLMNID string

// ParsePLMNID accepts five or six decimal digits.
func ParsePLMNID(s string) (PLMNID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 5 && len(s) != 6 {
		return "", errors.Invalidf(errors.ErrInvalidData, "invalid plmn id %q", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", errors.Invalidf(errors.ErrInvalidData, "invalid plmn id %q", s)
		}
	}
	return PLMNID(s), nil
}

func (p PLMNID) String() string { return string(p) }

// IsZero reports whether no PLMN is set.
func (p PLMNID) IsZero() bool { return p == "" }

// Bytes packs the digits into three bytes, two nibbles per byte, high nibble
// first, padding with 0xf when the MNC has two digits.
func (p PLMNID) Bytes() [3]byte {
	var out [3]byte
	if p.IsZero() {
		return out
	}
	nibbles := []byte(p)
	for i := 0; i < 6; i++ {
		n := byte(0xf)
		if i < len(nibbles) {
			n = nibbles[i] - '0'
		}
		if i%2 == 0 {
			out[i/2] = n << 4
		} else {
			out[i/2] |= n
		}
	}
	return out
}

// PLMNIDFromBytes is the inverse of Bytes. All-zero input yields the empty id.
func PLMNIDFromBytes(raw [3]byte) (PLMNID, error) {
	if raw == [3]byte{} {
		return "", nil
	}
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		n := raw[i/2] >> 4
		if i%2 == 1 {
			n = raw[i/2] & 0x0f
		}
		if n == 0xf {
			break
		}
		if n > 9 {
			return "", errors.Invalidf(errors.ErrInvalidData, "invalid plmn nibble %x", n)
		}
		sb.WriteByte('0' + n)
	}
	return ParsePLMNID(sb.String())
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PLMNID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = ""
		return nil
	}
	parsed, err := ParsePLMNID(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
