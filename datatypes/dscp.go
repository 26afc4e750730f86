package datatypes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// DSCP is a 6-bit differentiated services code point.
type DSCP uint8

// DefaultDSCP keys the default slice every tenant carries.
const DefaultDSCP DSCP = 0x00

// MaxDSCP is the largest valid code point.
const MaxDSCP DSCP = 0x3f

// ParseDSCP accepts "0x2e" style hex or plain decimal.
func ParseDSCP(s string) (DSCP, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") {
		v, err = strconv.ParseUint(s[2:], 16, 8)
	} else {
		v, err = strconv.ParseUint(s, 10, 8)
	}
	if err != nil || v > uint64(MaxDSCP) {
		return 0, errors.Invalidf(errors.ErrInvalidDSCP, "invalid dscp %q", s)
	}
	return DSCP(v), nil
}

// NewDSCP validates an integer code point.
func NewDSCP(v int) (DSCP, error) {
	if v < 0 || v > int(MaxDSCP) {
		return 0, errors.Invalidf(errors.ErrInvalidDSCP, "invalid dscp %d", v)
	}
	return DSCP(v), nil
}

func (d DSCP) String() string { return fmt.Sprintf("0x%02x", uint8(d)) }

// MarshalText implements encoding.TextMarshaler.
func (d DSCP) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DSCP) UnmarshalText(text []byte) error {
	parsed, err := ParseDSCP(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
