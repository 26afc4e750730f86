// Package modules registers the built-in measurement modules.
package modules

import (
	"errors"

	pkgerrors "github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/modules/bincounter"
	"github.com/5g-empower/empower-runtime-sub001/modules/lvnfstats"
	"github.com/5g-empower/empower-runtime-sub001/modules/macreports"
	"github.com/5g-empower/empower-runtime-sub001/modules/uemeasurements"
)

// Register adds every built-in module type to registry:
//
// LVAPP:
//   - bin_counter (per-station frame size counters, periodic)
//
// VBSP:
//   - mac_reports (cell PRB utilization, scheduled on the device)
//   - ue_measurements (RRC measurements of one UE, trigger)
//
// LVNFP:
//   - lvnf_stats (LVNF counters, single or periodic)
func Register(registry *module.Registry) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ModuleRegistry", "Register", "registry validation")
	}

	for _, reg := range []module.Registration{
		bincounter.Registration(),
		macreports.Registration(),
		uemeasurements.Registration(),
		lvnfstats.Registration(),
	} {
		if err := registry.Register(reg); err != nil {
			return pkgerrors.WrapInvalid(err, "ModuleRegistry", "Register", reg.Name+" module registration")
		}
	}
	return nil
}
