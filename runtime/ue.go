package runtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// UEState is the handover state of a UE.
type UEState string

// UE states.
const (
	UERunning       UEState = "running"
	UERemoving      UEState = "removing"
	UEDisconnecting UEState = "disconnecting"
)

// ueNamespace scopes the name-based UUIDs of UEs.
var ueNamespace = uuid.MustParse("5f0b5e3c-8a53-4f5e-9a4c-0e8f3c2f6b11")

// UEID derives the identifier of a UE from the strongest identity available:
// IMSI, then TMSI, then its (VBS, cell, RNTI) attachment point.
func UEID(imsi string, tmsi uint32, vbs datatypes.EtherAddress, pci, rnti uint16) uuid.UUID {
	switch {
	case imsi != "":
		return uuid.NewSHA1(ueNamespace, []byte("imsi:"+imsi))
	case tmsi != 0:
		return uuid.NewSHA1(ueNamespace, []byte(fmt.Sprintf("tmsi:%d", tmsi)))
	default:
		return uuid.NewSHA1(ueNamespace, []byte(fmt.Sprintf("rnti:%s/%d/%d", vbs, pci, rnti)))
	}
}

// UE is a mobile terminal attached to a cell.
type UE struct {
	ID         uuid.UUID        `json:"ue_id"`
	RNTI       uint16           `json:"rnti"`
	IMSI       string           `json:"imsi,omitempty"`
	TMSI       uint32           `json:"tmsi,omitempty"`
	PLMN       datatypes.PLMNID `json:"plmn_id"`
	Tenant     uuid.UUID        `json:"tenant_id"`
	Cell       CellRef          `json:"cell"`
	TargetCell *CellRef         `json:"target_cell,omitempty"`
	State      UEState          `json:"state"`
	Slice      datatypes.DSCP   `json:"slice"`

	// Duration of the last completed handover.
	HandoverTime time.Duration `json:"handover_time"`

	UEMeasurements map[uint8]RRCMeasurement `json:"ue_measurements"`

	hoStarted time.Time
}

func (u *UE) String() string { return fmt.Sprintf("UE %s (rnti %d at %s)", u.ID, u.RNTI, u.Cell) }

// VBS returns the address of the serving VBS.
func (u *UE) VBS() datatypes.EtherAddress { return u.Cell.VBS }

// setState moves the UE along running -> removing -> running and
// running -> disconnecting. Leaving removing needs the handover outcome.
func (u *UE) setState(next UEState, handover bool) error {
	switch {
	case u.State == UERunning && next == UERemoving,
		u.State == UERunning && next == UEDisconnecting,
		u.State == UERemoving && next == UERunning && handover:
		u.State = next
		return nil
	}
	return errors.Invalidf(errors.ErrInvalidState, "ue %s: %s -> %s", u.ID, u.State, next)
}
