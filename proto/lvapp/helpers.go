package lvapp

import (
	"bytes"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

func putSSIDs(buf *bytes.Buffer, ssids []datatypes.SSID) error {
	if len(ssids) > 0xff {
		return errTooMany("ssid list")
	}
	buf.WriteByte(byte(len(ssids)))
	for _, ssid := range ssids {
		if err := wire.PutString8(buf, string(ssid)); err != nil {
			return err
		}
	}
	return nil
}

func getSSIDs(r *bytes.Reader) ([]datatypes.SSID, error) {
	var n uint8
	if err := wire.Get(r, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ssids := make([]datatypes.SSID, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := getSSID(r)
		if err != nil {
			return nil, err
		}
		ssids = append(ssids, s)
	}
	return ssids, nil
}

// getSSID reads a length prefixed SSID and enforces the 802.11 limits.
func getSSID(r *bytes.Reader) (datatypes.SSID, error) {
	s, err := wire.GetString8(r)
	if err != nil {
		return "", err
	}
	return datatypes.ParseSSID(s)
}

func errTooMany(what string) error {
	return errors.WrapInvalid(errors.ErrInvalidData, "lvapp", "marshalBody", fmt.Sprintf("too many entries in %s", what))
}
