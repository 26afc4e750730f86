package controller

import (
	"context"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// CreateSlice adds a slice to a tenant and pushes it to the member devices.
func (c *Controller) CreateSlice(ctx context.Context, tenant uuid.UUID, s *runtime.Slice) error {
	row, err := sliceRow(tenant, s)
	if err != nil {
		return err
	}
	return c.mutate(ctx, mutation{
		op:      "create slice",
		check:   func() error { return c.rt.CheckAddSlice(tenant, s) },
		persist: func(ctx context.Context) error { return c.store.PutSlice(ctx, row) },
		apply:   func() error { return c.rt.AddSlice(tenant, s) },
		undo:    func(ctx context.Context) error { return c.store.DeleteSlice(ctx, tenant, s.DSCP) },
	})
}

// UpdateSlice replaces the properties of an existing slice.
func (c *Controller) UpdateSlice(ctx context.Context, tenant uuid.UUID, s *runtime.Slice) error {
	row, err := sliceRow(tenant, s)
	if err != nil {
		return err
	}
	var prev persistence.Slice
	return c.mutate(ctx, mutation{
		op: "update slice",
		check: func() error {
			if err := c.rt.CheckUpdateSlice(tenant, s); err != nil {
				return err
			}
			t, _ := c.rt.Tenant(tenant)
			prev, err = sliceRow(tenant, t.Slices[s.DSCP])
			return err
		},
		persist: func(ctx context.Context) error { return c.store.PutSlice(ctx, row) },
		apply:   func() error { return c.rt.UpdateSlice(tenant, s) },
		undo:    func(ctx context.Context) error { return c.store.PutSlice(ctx, prev) },
	})
}

// DeleteSlice removes a slice. Its traffic rules are removed with it.
func (c *Controller) DeleteSlice(ctx context.Context, tenant uuid.UUID, dscp datatypes.DSCP) error {
	var rules []string
	return c.mutate(ctx, mutation{
		op: "delete slice",
		check: func() error {
			if err := c.rt.CheckRemoveSlice(tenant, dscp); err != nil {
				return err
			}
			t, _ := c.rt.Tenant(tenant)
			rules = rules[:0]
			for _, tr := range t.TrafficRules {
				if tr.DSCP == dscp {
					rules = append(rules, tr.Match.String())
				}
			}
			return nil
		},
		persist: func(ctx context.Context) error {
			for _, m := range rules {
				if err := c.store.DeleteTrafficRule(ctx, tenant, m); err != nil {
					return err
				}
			}
			return c.store.DeleteSlice(ctx, tenant, dscp)
		},
		apply: func() error { return c.rt.RemoveSlice(tenant, dscp) },
	})
}
