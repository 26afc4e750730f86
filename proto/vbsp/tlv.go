package vbsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// TLVType identifies the value carried by a TLV.
type TLVType uint16

// TLV types.
const (
	TLVCellCaps         TLVType = 0x01
	TLVRANCaps          TLVType = 0x02
	TLVUEReportIdentity TLVType = 0x03
	TLVUERRCMeasConf    TLVType = 0x04
	TLVUERRCMeasReport  TLVType = 0x05
	TLVMACPRBUtil       TLVType = 0x06
	TLVRANSlice         TLVType = 0x07
	TLVRANSliceSched    TLVType = 0x08
	TLVRANSliceRNTIs    TLVType = 0x09
)

// TLV is one type-length-value record. Length is implied by len(Value).
type TLV struct {
	Type  TLVType
	Value []byte
}

// tlvHeaderLen is the type and length prefix.
const tlvHeaderLen = 4

// NewTLV encodes a fixed-size value.
func NewTLV(t TLVType, v any) (TLV, error) {
	var buf bytes.Buffer
	if err := wire.Put(&buf, v); err != nil {
		return TLV{}, err
	}
	if buf.Len() > 0xffff {
		return TLV{}, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "NewTLV", "value longer than 65535 bytes")
	}
	return TLV{Type: t, Value: buf.Bytes()}, nil
}

// Decode fills v from the TLV value. The value must have exactly the size of v.
func (t TLV) Decode(v any) error {
	if size := binary.Size(v); size != len(t.Value) {
		return errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "TLV.Decode",
			fmt.Sprintf("tlv 0x%02x is %d bytes, %T needs %d", uint16(t.Type), len(t.Value), v, size))
	}
	return wire.Get(bytes.NewReader(t.Value), v)
}

func putTLVs(buf *bytes.Buffer, tlvs []TLV) error {
	for _, t := range tlvs {
		if len(t.Value) > 0xffff {
			return errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "putTLVs", "value longer than 65535 bytes")
		}
		if err := wire.Put(buf, t.Type, uint16(len(t.Value))); err != nil {
			return err
		}
		buf.Write(t.Value)
	}
	return nil
}

// getTLVs reads TLVs until r is exhausted. A declared length running past the
// end of the body is rejected.
func getTLVs(r *bytes.Reader) ([]TLV, error) {
	var tlvs []TLV
	for r.Len() > 0 {
		if r.Len() < tlvHeaderLen {
			return nil, errors.WrapInvalid(errors.ErrShortFrame, "vbsp", "getTLVs",
				fmt.Sprintf("%d stray bytes after last tlv", r.Len()))
		}
		var (
			t      TLVType
			length uint16
		)
		if err := wire.Get(r, &t, &length); err != nil {
			return nil, err
		}
		if int(length) > r.Len() {
			return nil, errors.WrapInvalid(errors.ErrShortFrame, "vbsp", "getTLVs",
				fmt.Sprintf("tlv 0x%02x declares %d bytes, %d remain", uint16(t), length, r.Len()))
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, errors.WrapInvalid(errors.ErrShortFrame, "vbsp", "getTLVs", "read value")
		}
		tlvs = append(tlvs, TLV{Type: t, Value: value})
	}
	return tlvs, nil
}

// CellCaps describes one cell of a VBS.
type CellCaps struct {
	PCI         uint16
	DLEarfcn    uint32
	ULEarfcn    uint32
	DLBandwidth uint8
	ULBandwidth uint8
	Features    uint32
}

// RANCaps describes the MAC slicing capabilities of one cell.
type RANCaps struct {
	PCI       uint16
	SchedID   uint32
	MaxSlices uint16
}

// UE connection states reported in UEIdentity.State.
const (
	UEStateConnected    uint8 = 0x01
	UEStateDisconnected uint8 = 0x02
)

// UEIdentity is one entry of a UE report.
type UEIdentity struct {
	RNTI  uint16
	PLMN  [3]byte
	IMSI  uint64
	TMSI  uint32
	State uint8
}

// PLMNID decodes the packed PLMN.
func (u UEIdentity) PLMNID() (datatypes.PLMNID, error) { return datatypes.PLMNIDFromBytes(u.PLMN) }

// IMSIString renders the IMSI as fifteen digits, or "" when absent.
func (u UEIdentity) IMSIString() string {
	if u.IMSI == 0 {
		return ""
	}
	return fmt.Sprintf("%015d", u.IMSI)
}

// RRCMeasConf configures RRC measurements for one UE.
type RRCMeasConf struct {
	RNTI     uint16
	MeasID   uint8
	EARFCN   uint32
	Interval uint16
	Amount   uint16
}

// RRCMeasReport is one RRC measurement of a neighbour or serving cell.
type RRCMeasReport struct {
	RNTI   uint16
	MeasID uint8
	PCI    uint16
	RSRP   int16
	RSRQ   int16
}

// MACPRBUtil reports physical resource block usage of a cell.
type MACPRBUtil struct {
	DLPRBs uint8
	DLUsed uint32
	ULPRBs uint8
	ULUsed uint32
}

// RANSliceID names a slice on a cell.
type RANSliceID struct {
	PLMN [3]byte
	DSCP uint8
}

// RANSliceSched carries the scheduling parameters of a slice.
type RANSliceSched struct {
	SchedID uint32
	RBGs    uint8
}

// NewRNTIsTLV encodes a list of RNTIs.
func NewRNTIsTLV(rntis []uint16) (TLV, error) {
	if rntis == nil {
		rntis = []uint16{}
	}
	return NewTLV(TLVRANSliceRNTIs, rntis)
}

// DecodeRNTIs reads a TLVRANSliceRNTIs value.
func (t TLV) DecodeRNTIs() ([]uint16, error) {
	if len(t.Value)%2 != 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "DecodeRNTIs", "odd length rnti list")
	}
	rntis := make([]uint16, len(t.Value)/2)
	if err := wire.Get(bytes.NewReader(t.Value), rntis); err != nil {
		return nil, err
	}
	return rntis, nil
}
