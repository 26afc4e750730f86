package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
)

func TestRegister(t *testing.T) {
	reg := module.NewRegistry()
	require.NoError(t, Register(reg))

	var names []string
	for _, r := range reg.Registrations() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bin_counter", "lvnf_stats", "mac_reports", "ue_measurements"}, names)

	err := Register(reg)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterNilRegistry(t *testing.T) {
	err := Register(nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
