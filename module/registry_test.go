package module

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	factory := func(json.RawMessage) (Module, error) { return nil, nil }
	r := NewRegistry()
	require.NoError(t, r.Register(Registration{Name: "a", Kind: KindTrigger, Factory: factory}))

	for name, reg := range map[string]Registration{
		"no name":    {Kind: KindSingle, Factory: factory},
		"no factory": {Name: "b", Kind: KindSingle},
		"bad kind":   {Name: "c", Kind: "sometimes", Factory: factory},
		"duplicate":  {Name: "a", Kind: KindSingle, Factory: factory},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.IsInvalid(r.Register(reg)))
		})
	}
	require.Len(t, r.Registrations(), 1)
	_, ok := r.Lookup("a")
	assert.True(t, ok)
}

func TestIntervalIsMilliseconds(t *testing.T) {
	var params struct {
		Every Interval `json:"every"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"every":1500}`), &params))
	assert.Equal(t, int64(1500), params.Every.Duration().Milliseconds())
	out, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"every":1500}`, string(out))
}
