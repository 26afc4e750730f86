package controller

import (
	"context"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
)

// PutIMSIMapping binds imsi to addr, replacing any previous binding.
func (c *Controller) PutIMSIMapping(ctx context.Context, imsi string, addr datatypes.EtherAddress) error {
	if imsi == "" {
		return errors.Invalidf(errors.ErrMissingParam, "imsi")
	}
	if addr.IsZero() {
		return errors.Invalidf(errors.ErrMissingParam, "addr")
	}
	var prev datatypes.EtherAddress
	var had bool
	return c.mutate(ctx, mutation{
		op: "put imsi mapping",
		check: func() error {
			prev, had = c.imsi[imsi]
			return nil
		},
		persist: func(ctx context.Context) error {
			return c.store.PutIMSIMapping(ctx, persistence.IMSIMapping{IMSI: imsi, Addr: addr})
		},
		apply: func() error {
			c.imsi[imsi] = addr
			return nil
		},
		undo: func(ctx context.Context) error {
			if had {
				return c.store.PutIMSIMapping(ctx, persistence.IMSIMapping{IMSI: imsi, Addr: prev})
			}
			return c.store.DeleteIMSIMapping(ctx, imsi)
		},
	})
}

// DeleteIMSIMapping drops the binding of imsi.
func (c *Controller) DeleteIMSIMapping(ctx context.Context, imsi string) error {
	return c.mutate(ctx, mutation{
		op: "delete imsi mapping",
		check: func() error {
			if _, ok := c.imsi[imsi]; !ok {
				return notFound("imsi", imsi)
			}
			return nil
		},
		persist: func(ctx context.Context) error { return c.store.DeleteIMSIMapping(ctx, imsi) },
		apply: func() error {
			delete(c.imsi, imsi)
			return nil
		},
	})
}

// IMSIMapping returns the MAC address bound to imsi.
func (c *Controller) IMSIMapping(ctx context.Context, imsi string) (datatypes.EtherAddress, error) {
	var addr datatypes.EtherAddress
	err := c.onLoop(ctx, func() error {
		a, ok := c.imsi[imsi]
		if !ok {
			return notFound("imsi", imsi)
		}
		addr = a
		return nil
	})
	return addr, err
}
