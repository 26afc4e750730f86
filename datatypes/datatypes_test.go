package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

func TestParseEtherAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"colon lowercase", "aa:00:00:00:00:01", "aa:00:00:00:00:01", false},
		{"dash uppercase", "AA-BB-CC-DD-EE-FF", "aa:bb:cc:dd:ee:ff", false},
		{"too short", "aa:bb:cc", "", true},
		{"not hex", "zz:00:00:00:00:01", "", true},
		{"no separators", "aabbccddeeff", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseEtherAddress(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidAddress))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestEtherAddressXorIsInvolution(t *testing.T) {
	a := MustParseEtherAddress("11:22:33:44:55:66")
	k := MustParseEtherAddress("02:ab:cd:ef:01:23")
	assert.Equal(t, a, a.Xor(k).Xor(k))
	assert.True(t, a.Xor(a).IsZero())
}

func TestEtherAddressAsJSONKey(t *testing.T) {
	in := map[EtherAddress]int{MustParseEtherAddress("aa:00:00:00:00:01"): 7}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"aa:00:00:00:00:01":7}`, string(data))

	var out map[EtherAddress]int
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestDPID(t *testing.T) {
	d, err := ParseDPID("00:00:00:00:00:00:00:2a")
	require.NoError(t, err)
	assert.Equal(t, DPID(42), d)
	assert.Equal(t, "00:00:00:00:00:00:00:2a", d.String())

	_, err = ParseDPID("00:2a")
	assert.Error(t, err)
}

func TestParseSSID(t *testing.T) {
	_, err := ParseSSID("empower")
	require.NoError(t, err)

	_, err = ParseSSID("this-ssid-is-definitely-longer-than-32")
	assert.Error(t, err)
}

func TestPLMNIDWireForm(t *testing.T) {
	tests := []struct {
		plmn string
		raw  [3]byte
	}{
		{"00101", [3]byte{0x00, 0x10, 0x1f}},
		{"222930", [3]byte{0x22, 0x29, 0x30}},
		{"", [3]byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.plmn, func(t *testing.T) {
			p := PLMNID(tt.plmn)
			assert.Equal(t, tt.raw, p.Bytes())
			back, err := PLMNIDFromBytes(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, p, back)
		})
	}

	_, err := ParsePLMNID("0010a")
	assert.Error(t, err)
}

func TestParseDSCP(t *testing.T) {
	tests := []struct {
		in      string
		want    DSCP
		wantErr bool
	}{
		{"0x20", 0x20, false},
		{"32", 0x20, false},
		{"0x3F", 0x3f, false},
		{"0x40", 0, true},
		{"64", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDSCP(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidDSCP))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "0x20", DSCP(0x20).String())
}

func TestMatch(t *testing.T) {
	m, err := ParseMatch("tp_dst=80, dl_vlan=100,nw_proto=6")
	require.NoError(t, err)
	assert.Equal(t, "dl_vlan=100,nw_proto=6,tp_dst=80", m.String())

	other, err := ParseMatch("nw_proto=6,tp_dst=80,dl_vlan=100")
	require.NoError(t, err)
	assert.True(t, m.Equivalent(other))

	different, err := ParseMatch("nw_proto=17,tp_dst=80,dl_vlan=100")
	require.NoError(t, err)
	assert.False(t, m.Equivalent(different))

	_, err = ParseMatch("tp_dst")
	assert.Error(t, err)
	_, err = ParseMatch("tp_dst=80,tp_dst=81")
	assert.Error(t, err)
}

func TestMatchJSON(t *testing.T) {
	var fromObject Match
	require.NoError(t, json.Unmarshal([]byte(`{"tp_dst":80,"dl_type":"0x800"}`), &fromObject))
	assert.Equal(t, "dl_type=2048,tp_dst=80", fromObject.String())

	data, err := json.Marshal(fromObject)
	require.NoError(t, err)
	assert.Equal(t, `"dl_type=2048,tp_dst=80"`, string(data))
}
