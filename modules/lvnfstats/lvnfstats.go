// Package lvnfstats polls a CPP for the counters of one virtual network
// function.
package lvnfstats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Name is the module type.
const Name = "lvnf_stats"

// Registration describes the module type. Without "every" it polls once.
func Registration() module.Registration {
	return module.Registration{
		Name:        Name,
		Kind:        module.KindPeriodic,
		Protocol:    "lvnfp",
		Description: "Counters of one LVNF running on a CPP",
		Required:    []string{"cpp", "lvnf_id"},
		Every:       -time.Millisecond,
		Factory:     New,
	}
}

// LVNFStats is the live module.
type LVNFStats struct {
	module.Base
	CPP     datatypes.EtherAddress `json:"cpp"`
	LVNFID  string                 `json:"lvnf_id"`
	Stats   map[string]uint64      `json:"stats"`
	Updated time.Time              `json:"last_update,omitempty"`
}

type params struct {
	CPP    datatypes.EtherAddress `json:"cpp"`
	LVNFID string                 `json:"lvnf_id"`
}

// New builds a module from {"cpp": addr, "lvnf_id": id}.
func New(raw json.RawMessage) (module.Module, error) {
	var p params
	if err := module.DecodeParams(raw, &p, "cpp", "lvnf_id"); err != nil {
		return nil, err
	}
	if p.LVNFID == "" {
		return nil, errors.Invalidf(errors.ErrInvalidData, "lvnf_id must not be empty")
	}
	return &LVNFStats{CPP: p.CPP, LVNFID: p.LVNFID, Stats: map[string]uint64{}}, nil
}

// Key implements module.Module.
func (m *LVNFStats) Key() string { return fmt.Sprintf("%s|%s", m.CPP, m.LVNFID) }

// RunOnce sends a stats request to the CPP.
func (m *LVNFStats) RunOnce(rt *runtime.Runtime) error {
	c, ok := rt.CPP(m.CPP)
	if !ok {
		return fmt.Errorf("cpp %s: %w", m.CPP, errors.ErrNotFound)
	}
	if !c.IsOnline() {
		return fmt.Errorf("cpp %s: %w", m.CPP, errors.ErrDeviceOffline)
	}
	return rt.SendCPP(m.CPP, &lvnfp.LVNFStatsRequest{ModuleID: m.ID, LVNFID: m.LVNFID})
}

// HandleLVNFP stores the counters. A retcode other than 200 is a failure.
func (m *LVNFStats) HandleLVNFP(rt *runtime.Runtime, _ datatypes.EtherAddress, msg lvnfp.ModuleMessage) error {
	resp, ok := msg.(*lvnfp.LVNFStatsResponse)
	if !ok {
		return errors.Invalidf(errors.ErrInvalidData, "unexpected %T", msg)
	}
	if resp.Retcode != http.StatusOK {
		return fmt.Errorf("lvnf %s stats: retcode %d", m.LVNFID, resp.Retcode)
	}
	m.Stats = resp.Stats
	m.Updated = rt.Now()
	return nil
}

// Affected implements module.Watcher.
func (m *LVNFStats) Affected(e runtime.Event) bool {
	if e.Type != runtime.EventCPPDown {
		return false
	}
	c, ok := e.Subject.(*runtime.CPP)
	return ok && c.Addr == m.CPP
}
