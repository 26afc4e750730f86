package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

func TestAddTenantValidation(t *testing.T) {
	r, _ := newTestRuntime(t)
	first := addTenant(t, r, "empower", BSSIDUnique, plmn)

	tests := []struct {
		name   string
		tenant *Tenant
		target error
	}{
		{"nil id", NewTenant(uuid.Nil, "x", "alice", BSSIDUnique, ""), errors.ErrMissingParam},
		{"empty name", NewTenant(uuid.New(), "", "alice", BSSIDUnique, ""), errors.ErrMissingParam},
		{"duplicate id", NewTenant(first.ID, "other", "alice", BSSIDUnique, ""), errors.ErrAlreadyExists},
		{"duplicate name", NewTenant(uuid.New(), "empower", "alice", BSSIDUnique, ""), errors.ErrAlreadyExists},
		{"duplicate plmn", NewTenant(uuid.New(), "other", "alice", BSSIDUnique, plmn), errors.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.AddTenant(tt.tenant)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, errors.IsInvalid(err))
		})
	}
	assert.Len(t, r.Tenants(), 1)
}

func TestAddTenantRejectsBSSIDCollision(t *testing.T) {
	r, _ := newTestRuntime(t)
	first := addTenant(t, r, "a", BSSIDUnique, "")
	id := first.ID
	id[15] ^= 0xff // same leading six bytes

	err := r.AddTenant(NewTenant(id, "b", "alice", BSSIDUnique, ""))
	assert.ErrorIs(t, err, errors.ErrDuplicateBSSID)
}

func TestAddTenantWithUnknownMember(t *testing.T) {
	r, _ := newTestRuntime(t)
	tenant := NewTenant(uuid.New(), "empower", "alice", BSSIDUnique, "")
	tenant.WTPs[wtp1] = struct{}{}

	assert.ErrorIs(t, r.AddTenant(tenant), errors.ErrNotFound)
	_, ok := r.Tenant(tenant.ID)
	assert.False(t, ok)
}

func TestRemoveTenantCascades(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	link := onlineWTP(t, r, nil, wtp1, b1)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	associate(t, r, b1, tenant)
	rec := record(r)
	link.reset()

	require.NoError(t, r.RemoveTenant(tenant.ID))

	_, ok := r.LVAP(sta1)
	assert.False(t, ok)
	assert.Len(t, sentOf[*lvapp.DelLVAP](link), 1)
	assert.Len(t, rec.ofType(EventLVAPLeave), 1)
	removed := rec.ofType(EventTenantRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, tenant.ID, removed[0].Tenant)
	assert.Equal(t, "empower", removed[0].Attrs["tenant_name"])
	assert.ErrorIs(t, r.RemoveTenant(tenant.ID), errors.ErrNotFound)
}

func TestRemoveTenantDeviceDropsItsLVAPs(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	onlineWTP(t, r, nil, wtp1, b1)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	associate(t, r, b1, tenant)

	require.NoError(t, r.RemoveTenantDevice(tenant.ID, KindWTP, wtp1))
	assert.Empty(t, tenant.LVAPs)
	assert.False(t, tenant.HasMember(KindWTP, wtp1))
	checkLVAPInvariants(t, r)
}

func TestRemoveDevice(t *testing.T) {
	r, _ := newTestRuntime(t)
	link := onlineWTP(t, r, nil, wtp1, block(wtp1, radio1, 6))
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	rec := record(r)

	require.NoError(t, r.RemoveDevice(KindWTP, wtp1))
	_, ok := r.WTP(wtp1)
	assert.False(t, ok)
	assert.NotEmpty(t, link.closed)
	assert.False(t, tenant.HasMember(KindWTP, wtp1))
	assert.Len(t, rec.ofType(EventWTPDown), 1)
	assert.ErrorIs(t, r.RemoveDevice(KindWTP, wtp1), errors.ErrNotFound)
}

func TestAddDeviceValidation(t *testing.T) {
	r, _ := newTestRuntime(t)
	require.NoError(t, r.AddDevice(KindWTP, wtp1, "ap"))
	assert.ErrorIs(t, r.AddDevice(KindWTP, wtp1, "ap"), errors.ErrAlreadyExists)
	assert.ErrorIs(t, r.AddDevice(KindWTP, datatypes.EtherAddress{}, "zero"), errors.ErrInvalidAddress)

	w, ok := r.WTP(wtp1)
	require.True(t, ok)
	assert.Equal(t, StateDisconnected, w.State)
	assert.Equal(t, "ap", w.Label)
}

func TestACLEntries(t *testing.T) {
	r, _ := newTestRuntime(t)
	assert.True(t, r.Permitted(sta1))

	require.NoError(t, r.AddACL(true, sta1, "phone"))
	assert.ErrorIs(t, r.AddACL(true, sta1, "phone"), errors.ErrAlreadyExists)
	assert.True(t, r.Permitted(sta1))
	assert.False(t, r.Permitted(wtp1))

	require.NoError(t, r.AddACL(false, sta1, ""))
	assert.False(t, r.Permitted(sta1), "deny wins over allow")

	require.NoError(t, r.RemoveACL(false, sta1))
	require.NoError(t, r.RemoveACL(true, sta1))
	assert.True(t, r.Permitted(wtp1))
	assert.ErrorIs(t, r.RemoveACL(true, sta1), errors.ErrNotFound)
}
