// Package lvapp implements the Light Virtual Access Point Protocol spoken by
// Wi-Fi termination points.
//
// A frame is a ten byte header (version, type, total length, sequence) followed
// by a type specific body. Decode expects exactly one complete frame; the
// connection layer reads HeaderLen bytes, calls ParseHeader, then reads the
// remaining Length-HeaderLen bytes before decoding.
package lvapp

import (
	"bytes"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// Version is the protocol version the controller emits.
const Version uint8 = 0x00

// HeaderLen is the size of the fixed prefix.
const HeaderLen = 10

// MaxFrameLen bounds the declared length accepted from a device.
const MaxFrameLen = 1 << 16

// Header is the fixed prefix of every frame.
type Header struct {
	Version uint8
	Type    MessageType
	Length  uint32
	Seq     uint32
}

// ParseHeader decodes the fixed prefix and validates the declared length.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLen {
		return h, errors.WrapInvalid(errors.ErrShortFrame, "lvapp", "ParseHeader",
			fmt.Sprintf("read %d header bytes", len(b)))
	}
	if err := wire.Get(bytes.NewReader(b[:HeaderLen]), &h.Version, &h.Type, &h.Length, &h.Seq); err != nil {
		return h, err
	}
	if h.Length < HeaderLen {
		return h, errors.WrapInvalid(errors.ErrInvalidData, "lvapp", "ParseHeader",
			fmt.Sprintf("declared length %d below header size", h.Length))
	}
	if h.Length > MaxFrameLen {
		return h, errors.WrapInvalid(errors.ErrInvalidData, "lvapp", "ParseHeader",
			fmt.Sprintf("declared length %d too large", h.Length))
	}
	return h, nil
}
