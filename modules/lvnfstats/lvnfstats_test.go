package lvnfstats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

const testParams = `{"cpp":"dd:00:00:00:00:01","lvnf_id":"fw-1"}`

func newFramework(t *testing.T) (*runtime.Runtime, *module.Framework, *testutil.Scheduler, uuid.UUID) {
	t.Helper()
	rt, _ := testutil.NewRuntime(t)
	tenant := testutil.Tenant(t, rt, "nfv", nil, nil)
	reg := module.NewRegistry()
	require.NoError(t, reg.Register(Registration()))
	sched := &testutil.Scheduler{}
	fw := module.NewFramework(rt, sched, reg)
	t.Cleanup(fw.Close)
	return rt, fw, sched, tenant.ID
}

func TestNewValidates(t *testing.T) {
	_, err := New(json.RawMessage(`{"cpp":"dd:00:00:00:00:01"}`))
	assert.True(t, errors.Is(err, errors.ErrMissingParam))
	_, err = New(json.RawMessage(`{"cpp":"dd:00:00:00:00:01","lvnf_id":""}`))
	assert.True(t, errors.IsInvalid(err))
}

func TestSinglePollUnloadsAfterResponse(t *testing.T) {
	rt, fw, sched, tenant := newFramework(t)
	link := testutil.OnlineCPP(t, rt, testutil.CPP1)
	link.Reset()

	var calls int
	m, created, err := fw.Add(Name, tenant, json.RawMessage(testParams), func(module.Module) { calls++ })
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, module.KindSingle, m.Info().Kind)
	assert.Zero(t, sched.Pending())

	reqs := testutil.SentOf[*lvnfp.LVNFStatsRequest](link)
	require.Len(t, reqs, 1)
	assert.Equal(t, m.Info().ID, reqs[0].ModuleID)
	assert.Equal(t, "fw-1", reqs[0].LVNFID)

	fw.HandleLVNFP(testutil.CPP1, &lvnfp.LVNFStatsResponse{
		ModuleID: m.Info().ID,
		LVNFID:   "fw-1",
		Retcode:  200,
		Stats:    map[string]uint64{"rx_packets": 12},
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(12), m.(*LVNFStats).Stats["rx_packets"])
	_, ok := fw.Module(Name, tenant, m.Info().ID)
	assert.False(t, ok)
}

func TestFailedRetcodeSkipsCallbacks(t *testing.T) {
	rt, fw, _, tenant := newFramework(t)
	testutil.OnlineCPP(t, rt, testutil.CPP1)

	var calls int
	raw := json.RawMessage(`{"cpp":"dd:00:00:00:00:01","lvnf_id":"fw-1","every":1000}`)
	m, _, err := fw.Add(Name, tenant, raw, func(module.Module) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, module.KindPeriodic, m.Info().Kind)

	fw.HandleLVNFP(testutil.CPP1, &lvnfp.LVNFStatsResponse{ModuleID: m.Info().ID, LVNFID: "fw-1", Retcode: 404})
	assert.Zero(t, calls)
	assert.Empty(t, m.(*LVNFStats).Stats)
	_, ok := fw.Module(Name, tenant, m.Info().ID)
	assert.True(t, ok)
}

func TestOfflineCPPFailsStart(t *testing.T) {
	rt, fw, _, tenant := newFramework(t)
	require.NoError(t, rt.AddDevice(runtime.KindCPP, testutil.CPP1, "cpp"))

	_, _, err := fw.Add(Name, tenant, json.RawMessage(testParams), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeviceOffline))
	assert.Empty(t, fw.Modules(Name, tenant))
}

func TestCPPDownUnloadsPeriodicPoll(t *testing.T) {
	rt, fw, _, tenant := newFramework(t)
	link := testutil.OnlineCPP(t, rt, testutil.CPP1)

	raw := json.RawMessage(`{"cpp":"dd:00:00:00:00:01","lvnf_id":"fw-1","every":500}`)
	m, _, err := fw.Add(Name, tenant, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, m.Info().Every.Duration())

	require.True(t, rt.Disconnected(runtime.KindCPP, testutil.CPP1, link))
	assert.Empty(t, fw.Modules(Name, tenant))
}
