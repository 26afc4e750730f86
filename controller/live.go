package controller

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/apps"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// The operations below change live state only and are not persisted.

// HandoverLVAP moves a station to another WTP.
func (c *Controller) HandoverLVAP(ctx context.Context, sta, wtp datatypes.EtherAddress) error {
	return c.onLoop(ctx, func() error { return c.rt.Handover(sta, wtp) })
}

// RemoveLVAP disconnects a station.
func (c *Controller) RemoveLVAP(ctx context.Context, sta datatypes.EtherAddress) error {
	return c.onLoop(ctx, func() error { return c.rt.RemoveLVAP(sta) })
}

// SetUECell hands a UE over to another cell.
func (c *Controller) SetUECell(ctx context.Context, id uuid.UUID, cell runtime.CellRef) error {
	return c.onLoop(ctx, func() error { return c.rt.HandoverUE(id, cell) })
}

// SetUESlice moves a UE to another slice of its tenant.
func (c *Controller) SetUESlice(ctx context.Context, id uuid.UUID, dscp datatypes.DSCP) error {
	return c.onLoop(ctx, func() error { return c.rt.SetUESlice(id, dscp) })
}

// AddModule loads a module, or joins an equivalent one already running.
// It returns the module id and whether a new module was created.
func (c *Controller) AddModule(ctx context.Context, typ string, tenant uuid.UUID, params json.RawMessage) (uint32, bool, error) {
	var (
		id      uint32
		created bool
	)
	err := c.onLoop(ctx, func() error {
		m, ok, err := c.modules.Add(typ, tenant, params, nil)
		if err != nil {
			return err
		}
		id, created = m.Info().ID, ok
		return nil
	})
	return id, created, err
}

// RemoveModule unloads a module.
func (c *Controller) RemoveModule(ctx context.Context, typ string, tenant uuid.UUID, id uint32) error {
	return c.onLoop(ctx, func() error { return c.modules.Remove(typ, tenant, id) })
}

// StartApp runs app name in tenant. The app lives until it is stopped, the
// tenant is removed or the controller stops, not for the duration of ctx.
func (c *Controller) StartApp(ctx context.Context, tenant uuid.UUID, name string, params json.RawMessage) (apps.Instance, error) {
	var inst apps.Instance
	err := c.onLoop(ctx, func() error {
		i, err := c.apps.Start(context.WithoutCancel(ctx), tenant, name, params)
		if err != nil {
			return err
		}
		inst = *i
		return nil
	})
	return inst, err
}

// StopApp stops app name of tenant.
func (c *Controller) StopApp(ctx context.Context, tenant uuid.UUID, name string) error {
	return c.onLoop(ctx, func() error { return c.apps.Stop(tenant, name) })
}
