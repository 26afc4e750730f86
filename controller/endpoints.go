package controller

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// CreateEndpoint adds an endpoint with its virtual ports to a tenant. A nil
// endpoint id is generated.
func (c *Controller) CreateEndpoint(ctx context.Context, tenant uuid.UUID, e *runtime.Endpoint) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	ports := make([]persistence.VirtualPort, 0, len(e.Ports))
	for id, p := range e.Ports {
		p.PortID = id
		ports = append(ports, persistence.VirtualPort{Endpoint: e.ID, PortID: id, DPID: p.DPID, OFPort: p.OFPort, Iface: p.Iface})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].PortID < ports[j].PortID })
	row := persistence.Endpoint{Tenant: tenant, ID: e.ID, Label: e.Label, DPID: e.DPID}

	err := c.mutate(ctx, mutation{
		op:    "create endpoint",
		check: func() error { return c.rt.CheckAddEndpoint(tenant, e) },
		persist: func(ctx context.Context) error {
			if err := c.store.CreateEndpoint(ctx, row); err != nil {
				return err
			}
			for _, p := range ports {
				if err := c.store.CreateVirtualPort(ctx, p); err != nil {
					_ = c.store.DeleteEndpoint(context.WithoutCancel(ctx), tenant, e.ID)
					return err
				}
			}
			return nil
		},
		apply: func() error { return c.rt.AddEndpoint(tenant, e) },
		undo:  func(ctx context.Context) error { return c.store.DeleteEndpoint(ctx, tenant, e.ID) },
	})
	if err != nil {
		return uuid.Nil, err
	}
	return e.ID, nil
}

// DeleteEndpoint removes an endpoint and its ports.
func (c *Controller) DeleteEndpoint(ctx context.Context, tenant, id uuid.UUID) error {
	return c.mutate(ctx, mutation{
		op: "delete endpoint",
		check: func() error {
			t, ok := c.rt.Tenant(tenant)
			if !ok {
				return notFound("tenant", tenant)
			}
			if _, ok := t.Endpoints[id]; !ok {
				return notFound("endpoint", id)
			}
			return nil
		},
		persist: func(ctx context.Context) error { return c.store.DeleteEndpoint(ctx, tenant, id) },
		apply:   func() error { return c.rt.RemoveEndpoint(tenant, id) },
	})
}

// CreateTrafficRule steers the traffic matching tr.Match into slice tr.DSCP.
func (c *Controller) CreateTrafficRule(ctx context.Context, tenant uuid.UUID, tr *runtime.TrafficRule) error {
	row := persistence.TrafficRule{Tenant: tenant, Match: tr.Match.Key(), DSCP: tr.DSCP, Label: tr.Label}
	return c.mutate(ctx, mutation{
		op:      "create traffic rule",
		check:   func() error { return c.rt.CheckAddTrafficRule(tenant, tr) },
		persist: func(ctx context.Context) error { return c.store.CreateTrafficRule(ctx, row) },
		apply:   func() error { return c.rt.AddTrafficRule(tenant, tr) },
		undo:    func(ctx context.Context) error { return c.store.DeleteTrafficRule(ctx, tenant, row.Match) },
	})
}

// DeleteTrafficRule removes the rule whose match is equivalent to m.
func (c *Controller) DeleteTrafficRule(ctx context.Context, tenant uuid.UUID, m datatypes.Match) error {
	return c.mutate(ctx, mutation{
		op: "delete traffic rule",
		check: func() error {
			t, ok := c.rt.Tenant(tenant)
			if !ok {
				return notFound("tenant", tenant)
			}
			if _, ok := t.TrafficRules[m.Key()]; !ok {
				return notFound("traffic rule", m)
			}
			return nil
		},
		persist: func(ctx context.Context) error { return c.store.DeleteTrafficRule(ctx, tenant, m.Key()) },
		apply:   func() error { return c.rt.RemoveTrafficRule(tenant, m) },
	})
}
