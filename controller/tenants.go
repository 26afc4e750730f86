package controller

import (
	"context"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// TenantRequest describes a tenant to create. A nil ID is generated.
type TenantRequest struct {
	ID          uuid.UUID
	Name        datatypes.SSID
	Description string
	Owner       string
	BSSIDType   string
	PLMN        datatypes.PLMNID
}

// CreateTenant registers and persists a tenant and returns its id.
func (c *Controller) CreateTenant(ctx context.Context, req TenantRequest) (uuid.UUID, error) {
	bt, err := runtime.ParseBSSIDType(req.BSSIDType)
	if err != nil {
		return uuid.Nil, err
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	t := runtime.NewTenant(req.ID, req.Name, req.Owner, bt, req.PLMN)
	t.Description = req.Description
	row := tenantRow(t)

	err = c.mutate(ctx, mutation{
		op:      "create tenant",
		check:   func() error { return c.rt.CheckAddTenant(t) },
		persist: func(ctx context.Context) error { return c.store.CreateTenant(ctx, row) },
		apply:   func() error { return c.rt.AddTenant(t) },
		undo:    func(ctx context.Context) error { return c.store.DeleteTenant(ctx, t.ID) },
	})
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}

// DeleteTenant removes a tenant with everything it owns. Its modules and
// apps are unloaded by the tenant_removed event.
func (c *Controller) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	return c.mutate(ctx, mutation{
		op:      "delete tenant",
		check:   func() error { return c.rt.CheckRemoveTenant(id) },
		persist: func(ctx context.Context) error { return c.store.DeleteTenant(ctx, id) },
		apply:   func() error { return c.rt.RemoveTenant(id) },
	})
}

// AddTenantDevice makes a registered device a member of a tenant.
func (c *Controller) AddTenantDevice(ctx context.Context, id uuid.UUID, kind runtime.DeviceKind, addr datatypes.EtherAddress) error {
	row := membershipRow(id, kind, addr)
	return c.mutate(ctx, mutation{
		op:      "add tenant device",
		check:   func() error { return c.rt.CheckAddTenantDevice(id, kind, addr) },
		persist: func(ctx context.Context) error { return c.store.CreateMembership(ctx, row) },
		apply:   func() error { return c.rt.AddTenantDevice(id, kind, addr) },
		undo:    func(ctx context.Context) error { return c.store.DeleteMembership(ctx, row) },
	})
}

// RemoveTenantDevice drops a device from a tenant.
func (c *Controller) RemoveTenantDevice(ctx context.Context, id uuid.UUID, kind runtime.DeviceKind, addr datatypes.EtherAddress) error {
	row := membershipRow(id, kind, addr)
	return c.mutate(ctx, mutation{
		op:      "remove tenant device",
		check:   func() error { return c.rt.CheckRemoveTenantDevice(id, kind, addr) },
		persist: func(ctx context.Context) error { return c.store.DeleteMembership(ctx, row) },
		apply:   func() error { return c.rt.RemoveTenantDevice(id, kind, addr) },
		undo:    func(ctx context.Context) error { return c.store.CreateMembership(ctx, row) },
	})
}
