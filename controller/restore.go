package controller

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// restore applies a snapshot to an empty registry. A row the registry
// refuses is logged and skipped.
func (c *Controller) restore(snap *persistence.Snapshot) {
	skip := func(what string, key any, err error) {
		if err != nil {
			c.logger.Warn("Persisted row skipped", "row", what, "key", key, "error", err)
		}
	}

	for _, row := range snap.Tenants {
		t, err := tenantFromRow(row)
		if err == nil {
			err = c.rt.AddTenant(t)
		}
		skip("tenant", row.ID, err)
	}
	for _, row := range snap.Devices {
		kind, err := runtime.ParseDeviceKind(row.Kind)
		if err == nil {
			err = c.rt.AddDevice(kind, row.Addr, row.Label)
		}
		skip("device", row.Addr, err)
	}
	for _, row := range snap.Memberships {
		kind, err := runtime.ParseDeviceKind(row.Kind)
		if err == nil {
			err = c.rt.AddTenantDevice(row.Tenant, kind, row.Addr)
		}
		skip("membership", row.Addr, err)
	}
	for _, row := range snap.ACL {
		skip("acl", row.Addr, c.rt.AddACL(row.Allow, row.Addr, row.Label))
	}
	for _, row := range snap.Slices {
		s, err := sliceFromRow(row)
		if err == nil {
			err = c.applySlice(row.Tenant, s)
		}
		skip("slice", row.DSCP, err)
	}

	ports := make(map[uuid.UUID][]persistence.VirtualPort)
	for _, p := range snap.VirtualPorts {
		ports[p.Endpoint] = append(ports[p.Endpoint], p)
	}
	for _, row := range snap.Endpoints {
		e := endpointFromRow(row, ports[row.ID])
		skip("endpoint", row.ID, c.rt.AddEndpoint(row.Tenant, e))
	}
	for _, row := range snap.TrafficRules {
		tr, err := trafficRuleFromRow(row)
		if err == nil {
			err = c.rt.AddTrafficRule(row.Tenant, tr)
		}
		skip("traffic rule", row.Match, err)
	}
	for _, row := range snap.Feeds {
		skip("feed", row.ID, c.rt.AddFeed(&runtime.Feed{ID: row.ID, Label: row.Label, Addr: row.Addr}))
	}
	for _, row := range snap.IMSIMappings {
		c.imsi[row.IMSI] = row.Addr
	}
}

// applySlice adds s or, for a DSCP the tenant already has (the default
// slice), replaces its properties.
func (c *Controller) applySlice(tenant uuid.UUID, s *runtime.Slice) error {
	if t, ok := c.rt.Tenant(tenant); ok {
		if _, exists := t.Slices[s.DSCP]; exists {
			return c.rt.UpdateSlice(tenant, s)
		}
	}
	return c.rt.AddSlice(tenant, s)
}

func tenantFromRow(row persistence.Tenant) (*runtime.Tenant, error) {
	bt, err := runtime.ParseBSSIDType(row.BSSIDType)
	if err != nil {
		return nil, err
	}
	t := runtime.NewTenant(row.ID, row.Name, row.Owner, bt, row.PLMN)
	t.Description = row.Description
	return t, nil
}

func tenantRow(t *runtime.Tenant) persistence.Tenant {
	return persistence.Tenant{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Owner:       t.Owner,
		BSSIDType:   string(t.BSSIDType),
		PLMN:        t.PLMN,
	}
}

func sliceFromRow(row persistence.Slice) (*runtime.Slice, error) {
	s := runtime.NewSlice(row.DSCP)
	if len(row.Descriptor) > 0 {
		if err := json.Unmarshal(row.Descriptor, s); err != nil {
			return nil, err
		}
	}
	s.DSCP = row.DSCP
	return s, nil
}

func sliceRow(tenant uuid.UUID, s *runtime.Slice) (persistence.Slice, error) {
	desc, err := json.Marshal(s)
	if err != nil {
		return persistence.Slice{}, err
	}
	return persistence.Slice{Tenant: tenant, DSCP: s.DSCP, Descriptor: desc}, nil
}

func endpointFromRow(row persistence.Endpoint, ports []persistence.VirtualPort) *runtime.Endpoint {
	e := &runtime.Endpoint{ID: row.ID, Label: row.Label, DPID: row.DPID, Ports: make(map[uint16]*runtime.VirtualPort, len(ports))}
	for _, p := range ports {
		e.Ports[p.PortID] = &runtime.VirtualPort{PortID: p.PortID, DPID: p.DPID, OFPort: p.OFPort, Iface: p.Iface}
	}
	return e
}

func trafficRuleFromRow(row persistence.TrafficRule) (*runtime.TrafficRule, error) {
	m, err := datatypes.ParseMatch(row.Match)
	if err != nil {
		return nil, err
	}
	return &runtime.TrafficRule{Match: m, DSCP: row.DSCP, Label: row.Label}, nil
}
