package southbound

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

var _ runtime.Link = (*Conn)(nil)

// Registry is the part of the runtime a session needs to track its device.
type Registry interface {
	Device(kind runtime.DeviceKind, addr datatypes.EtherAddress) (*runtime.Device, bool)
	Disconnected(kind runtime.DeviceKind, addr datatypes.EtherAddress, link runtime.Link) bool
}

// Binding records which device a session serves. A session serves at most
// one device for its whole life.
type Binding struct {
	Kind  runtime.DeviceKind
	addr  datatypes.EtherAddress
	bound bool
}

// Addr returns the device address and whether a hello has named it.
func (b *Binding) Addr() (datatypes.EtherAddress, bool) { return b.addr, b.bound }

// Bind pins the session to addr. A session that names a second device is
// broken.
func (b *Binding) Bind(addr datatypes.EtherAddress) error {
	if b.bound && b.addr != addr {
		return errors.WrapInvalid(errors.ErrInvalidState, string(b.Kind), "Bind",
			fmt.Sprintf("session bound to %s got hello from %s", b.addr, addr))
	}
	b.addr, b.bound = addr, true
	return nil
}

// Liveness reports the device heartbeat while link is its current session.
func (b *Binding) Liveness(reg Registry, link runtime.Link) (time.Time, time.Duration, bool) {
	if !b.bound {
		return time.Time{}, 0, false
	}
	dev, ok := reg.Device(b.Kind, b.addr)
	if !ok || !dev.BoundTo(link) {
		return time.Time{}, 0, false
	}
	return dev.LastSeen, dev.Period, true
}

// Release runs the device-down cascade if link still serves the device.
func (b *Binding) Release(reg Registry, link runtime.Link) {
	if b.bound {
		reg.Disconnected(b.Kind, b.addr, link)
	}
}

// Tolerate turns runtime errors a device cannot fix by reconnecting into a
// warning. Frames naming unknown devices are dropped, not fatal.
func Tolerate(logger *slog.Logger, frame string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		logger.Warn("Frame for unknown entity dropped", "type", frame, "error", err)
		return nil
	}
	return err
}
