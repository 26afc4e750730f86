package controller

import (
	"context"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

func membershipRow(id uuid.UUID, kind runtime.DeviceKind, addr datatypes.EtherAddress) persistence.Membership {
	return persistence.Membership{Tenant: id, Kind: string(kind), Addr: addr}
}

// CreateDevice registers a device. It stays disconnected until it says
// hello.
func (c *Controller) CreateDevice(ctx context.Context, kind runtime.DeviceKind, addr datatypes.EtherAddress, label string) error {
	row := persistence.Device{Kind: string(kind), Addr: addr, Label: label}
	return c.mutate(ctx, mutation{
		op:      "create device",
		check:   func() error { return c.rt.CheckAddDevice(kind, addr) },
		persist: func(ctx context.Context) error { return c.store.CreateDevice(ctx, row) },
		apply:   func() error { return c.rt.AddDevice(kind, addr, label) },
		undo:    func(ctx context.Context) error { return c.store.DeleteDevice(ctx, string(kind), addr) },
	})
}

// DeleteDevice unregisters a device, closing its session.
func (c *Controller) DeleteDevice(ctx context.Context, kind runtime.DeviceKind, addr datatypes.EtherAddress) error {
	return c.mutate(ctx, mutation{
		op:      "delete device",
		check:   func() error { return c.rt.CheckRemoveDevice(kind, addr) },
		persist: func(ctx context.Context) error { return c.store.DeleteDevice(ctx, string(kind), addr) },
		apply:   func() error { return c.rt.RemoveDevice(kind, addr) },
	})
}

// AddACL puts a station on the allow or deny list.
func (c *Controller) AddACL(ctx context.Context, allow bool, addr datatypes.EtherAddress, label string) error {
	row := persistence.ACLEntry{Allow: allow, Addr: addr, Label: label}
	return c.mutate(ctx, mutation{
		op:      "add acl",
		check:   func() error { return c.rt.CheckAddACL(allow, addr) },
		persist: func(ctx context.Context) error { return c.store.CreateACL(ctx, row) },
		apply:   func() error { return c.rt.AddACL(allow, addr, label) },
		undo:    func(ctx context.Context) error { return c.store.DeleteACL(ctx, allow, addr) },
	})
}

// RemoveACL takes a station off the allow or deny list.
func (c *Controller) RemoveACL(ctx context.Context, allow bool, addr datatypes.EtherAddress) error {
	var label string
	return c.mutate(ctx, mutation{
		op: "remove acl",
		check: func() error {
			if err := c.rt.CheckRemoveACL(allow, addr); err != nil {
				return err
			}
			label = aclLabel(c.rt, allow, addr)
			return nil
		},
		persist: func(ctx context.Context) error { return c.store.DeleteACL(ctx, allow, addr) },
		apply:   func() error { return c.rt.RemoveACL(allow, addr) },
		undo: func(ctx context.Context) error {
			return c.store.CreateACL(ctx, persistence.ACLEntry{Allow: allow, Addr: addr, Label: label})
		},
	})
}

func aclLabel(rt *runtime.Runtime, allow bool, addr datatypes.EtherAddress) string {
	list := rt.Denied()
	if allow {
		list = rt.Allowed()
	}
	for _, e := range list {
		if e.Addr == addr {
			return e.Label
		}
	}
	return ""
}

// CreateFeed registers an energy feed.
func (c *Controller) CreateFeed(ctx context.Context, f runtime.Feed) error {
	row := persistence.Feed{ID: f.ID, Label: f.Label, Addr: f.Addr}
	return c.mutate(ctx, mutation{
		op:      "create feed",
		check:   func() error { return c.rt.CheckAddFeed(f.ID) },
		persist: func(ctx context.Context) error { return c.store.CreateFeed(ctx, row) },
		apply:   func() error { return c.rt.AddFeed(&runtime.Feed{ID: f.ID, Label: f.Label, Addr: f.Addr}) },
		undo:    func(ctx context.Context) error { return c.store.DeleteFeed(ctx, f.ID) },
	})
}

// DeleteFeed drops an energy feed.
func (c *Controller) DeleteFeed(ctx context.Context, id int) error {
	return c.mutate(ctx, mutation{
		op: "delete feed",
		check: func() error {
			if _, ok := c.rt.Feed(id); !ok {
				return notFound("feed", id)
			}
			return nil
		},
		persist: func(ctx context.Context) error { return c.store.DeleteFeed(ctx, id) },
		apply:   func() error { return c.rt.RemoveFeed(id) },
	})
}

// UpdateFeeds records readings. Either every id is known and all values are
// applied, or nothing changes.
func (c *Controller) UpdateFeeds(ctx context.Context, values map[int]float64) error {
	return c.onLoop(ctx, func() error {
		for id := range values {
			if _, ok := c.rt.Feed(id); !ok {
				return notFound("feed", id)
			}
		}
		for id, v := range values {
			if err := c.rt.UpdateFeed(id, v); err != nil {
				return err
			}
		}
		return nil
	})
}
