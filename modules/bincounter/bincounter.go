// Package bincounter polls a WTP for the frame size histogram of one
// station's traffic.
package bincounter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Name is the module type.
const Name = "bin_counter"

// DefaultBins has a single bin catching every frame size.
var DefaultBins = []int{8192}

// Registration describes the module type.
func Registration() module.Registration {
	return module.Registration{
		Name:        Name,
		Kind:        module.KindPeriodic,
		Protocol:    "lvapp",
		Description: "Per-station transmit and receive counters grouped by frame size",
		Required:    []string{"sta"},
		Every:       2 * time.Second,
		Factory:     New,
	}
}

// Counters are totals and rates per bin.
type Counters struct {
	Bytes          []uint64  `json:"bytes"`
	Packets        []uint64  `json:"packets"`
	BytesPerSecond []float64 `json:"bytes_per_second"`
	PktsPerSecond  []float64 `json:"packets_per_second"`
}

// BinCounter is the live module.
type BinCounter struct {
	module.Base
	STA  datatypes.EtherAddress `json:"sta"`
	Bins []int                  `json:"bins"`

	TX      Counters  `json:"tx"`
	RX      Counters  `json:"rx"`
	Updated time.Time `json:"last_update,omitempty"`
}

type params struct {
	STA  datatypes.EtherAddress `json:"sta"`
	Bins []int                  `json:"bins"`
}

// New builds a module from {"sta": addr, "bins": [sizes...]}.
func New(raw json.RawMessage) (module.Module, error) {
	var p params
	if err := module.DecodeParams(raw, &p, "sta"); err != nil {
		return nil, err
	}
	if p.Bins == nil {
		p.Bins = append([]int(nil), DefaultBins...)
	}
	if err := ValidateBins(p.Bins); err != nil {
		return nil, err
	}
	m := &BinCounter{STA: p.STA, Bins: p.Bins}
	m.TX = newCounters(len(m.Bins))
	m.RX = newCounters(len(m.Bins))
	return m, nil
}

// ValidateBins requires a non-empty, strictly increasing list of positive
// sizes.
func ValidateBins(bins []int) error {
	if len(bins) == 0 {
		return errors.Invalidf(errors.ErrInvalidData, "bins must not be empty")
	}
	for i, b := range bins {
		if b <= 0 {
			return errors.Invalidf(errors.ErrInvalidData, "bin %d is not positive", b)
		}
		if i > 0 && b <= bins[i-1] {
			return errors.Invalidf(errors.ErrInvalidData, "bins must be strictly increasing")
		}
	}
	return nil
}

func newCounters(n int) Counters {
	return Counters{
		Bytes:          make([]uint64, n),
		Packets:        make([]uint64, n),
		BytesPerSecond: make([]float64, n),
		PktsPerSecond:  make([]float64, n),
	}
}

// Key implements module.Module.
func (m *BinCounter) Key() string { return fmt.Sprintf("%s|%v", m.STA, m.Bins) }

// RunOnce asks the WTP serving the station for its counters.
func (m *BinCounter) RunOnce(rt *runtime.Runtime) error {
	l, ok := rt.LVAP(m.STA)
	if !ok || l.Tenant != m.Tenant {
		return fmt.Errorf("lvap %s: %w", m.STA, errors.ErrNotFound)
	}
	wtp := l.WTP()
	if wtp.IsZero() {
		return fmt.Errorf("lvap %s has no downlink: %w", m.STA, errors.ErrDeviceOffline)
	}
	return rt.SendWTP(wtp, &lvapp.BinCounterRequest{ModuleID: m.ID, STA: m.STA})
}

// HandleLVAPP folds a counter response into the bins.
func (m *BinCounter) HandleLVAPP(rt *runtime.Runtime, _ datatypes.EtherAddress, msg lvapp.ModuleMessage) error {
	resp, ok := msg.(*lvapp.BinCounterResponse)
	if !ok {
		return errors.Invalidf(errors.ErrInvalidData, "unexpected %s", msg.Type())
	}
	now := rt.Now()
	var elapsed time.Duration
	if !m.Updated.IsZero() {
		elapsed = now.Sub(m.Updated)
	}
	m.TX.update(m.Bins, resp.TX, elapsed)
	m.RX.update(m.Bins, resp.RX, elapsed)
	m.Updated = now
	return nil
}

// update replaces the totals with the device's cumulative samples and derives
// rates from the growth since the previous report.
func (c *Counters) update(bins []int, samples []lvapp.Sample, elapsed time.Duration) {
	bytes, pkts := Fill(bins, samples)
	for i := range bins {
		if elapsed > 0 {
			secs := elapsed.Seconds()
			c.BytesPerSecond[i] = float64(delta(bytes[i], c.Bytes[i])) / secs
			c.PktsPerSecond[i] = float64(delta(pkts[i], c.Packets[i])) / secs
		}
		c.Bytes[i], c.Packets[i] = bytes[i], pkts[i]
	}
}

func delta(now, before uint64) uint64 {
	if now < before {
		return 0
	}
	return now - before
}

// Fill sums samples into bins: a frame lands in the first bin at least as
// large as it, frames above the last bin land in the last one.
func Fill(bins []int, samples []lvapp.Sample) (bytes, packets []uint64) {
	bytes = make([]uint64, len(bins))
	packets = make([]uint64, len(bins))
	for _, s := range samples {
		i := len(bins) - 1
		for j, b := range bins {
			if int(s.Size) <= b {
				i = j
				break
			}
		}
		bytes[i] += uint64(s.Size) * uint64(s.Count)
		packets[i] += uint64(s.Count)
	}
	return bytes, packets
}

// Affected implements module.Watcher.
func (m *BinCounter) Affected(e runtime.Event) bool {
	if e.Type != runtime.EventLVAPLeave {
		return false
	}
	l, ok := e.Subject.(*runtime.LVAP)
	return ok && l.Addr == m.STA
}
