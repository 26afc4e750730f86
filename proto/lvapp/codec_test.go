package lvapp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

var (
	wtp1  = datatypes.MustParseEtherAddress("aa:00:00:00:00:01")
	sta   = datatypes.MustParseEtherAddress("11:22:33:44:55:66")
	hw    = datatypes.MustParseEtherAddress("bb:00:00:00:00:00")
	bssid = datatypes.MustParseEtherAddress("02:ca:fe:00:00:01")
	block = Block{HWAddr: hw, Channel: 6, Band: BandL20}
)

func sampleMessages() []Message {
	return []Message{
		&Hello{WTP: wtp1, Period: 2000 * time.Millisecond},
		&ProbeRequest{WTP: wtp1, STA: sta, Block: block, SSID: ""},
		&ProbeResponse{STA: sta, SSID: "empower"},
		&AuthRequest{WTP: wtp1, STA: sta, BSSID: bssid},
		&AuthResponse{STA: sta, BSSID: bssid},
		&AssocRequest{WTP: wtp1, STA: sta, BSSID: bssid, SSID: "empower"},
		&AssocResponse{STA: sta},
		&AddLVAP{
			ModuleID: 7, Flags: FlagAuthenticated | FlagAssociated | FlagSetMask, AssocID: 1,
			Block: block, STA: sta, Encap: datatypes.EtherAddress{}, NetBSSID: bssid, LVAPBSSID: bssid,
			SSIDs: []datatypes.SSID{"empower", "guest"},
		},
		&DelLVAP{ModuleID: 8, STA: sta, CSASwitchMode: 1, CSASwitchCount: 3, Target: block},
		&StatusLVAP{
			Flags: FlagSetMask, AssocID: 2, WTP: wtp1, STA: sta, Block: block,
			NetBSSID: bssid, LVAPBSSID: bssid, SSIDs: []datatypes.SSID{"empower"},
		},
		&CapsRequest{},
		&CapsResponse{
			WTP:    wtp1,
			Blocks: []Block{block, {HWAddr: hw, Channel: 36, Band: BandHT20}},
			Ports:  []Port{{HWAddr: hw, PortID: 1, Iface: [10]byte{'w', 'l', 'a', 'n', '0'}}},
		},
		&LVAPStatusRequest{},
		&VAPStatusRequest{},
		&AddVAP{Block: block, NetBSSID: bssid, SSID: "shared"},
		&DelVAP{NetBSSID: bssid},
		&StatusVAP{WTP: wtp1, Block: block, NetBSSID: bssid, SSID: "shared"},
		&SetSlice{DSCP: 0x20, Flags: SliceFlagAMSDU, Quantum: 12000, Scheduler: 1, SSID: "empower"},
		&DelSlice{DSCP: 0x20, SSID: "empower"},
		&StatusSlice{WTP: wtp1, DSCP: 0x20, Quantum: 12000, SSID: "empower"},
		&BinCounterRequest{ModuleID: 9, STA: sta},
		&BinCounterResponse{
			ModuleID: 9, WTP: wtp1, STA: sta,
			TX: []Sample{{Size: 64, Count: 10}, {Size: 1500, Count: 2}},
			RX: []Sample{{Size: 128, Count: 4}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for i, msg := range sampleMessages() {
		t.Run(msg.Type().String(), func(t *testing.T) {
			frame, err := Encode(Header{Version: Version, Seq: uint32(i + 1)}, msg)
			require.NoError(t, err)

			h, decoded, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, msg.Type(), h.Type)
			assert.Equal(t, uint32(len(frame)), h.Length)
			assert.Equal(t, uint32(i+1), h.Seq)
			if diff := cmp.Diff(msg, decoded); diff != "" {
				t.Errorf("decoded message differs (-want +got):\n%s", diff)
			}

			again, err := Encode(h, decoded)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(frame, again), "re-encoding must reproduce the frame")
		})
	}
}

func TestHelloWireFormat(t *testing.T) {
	frame, err := Encode(Header{Version: Version, Seq: 1}, &Hello{WTP: wtp1, Period: 2 * time.Second})
	require.NoError(t, err)

	want := []byte{
		0x00, 0x04, 0x00, 0x00, 0x00, 0x14, 0x00, 0x00, 0x00, 0x01,
		0xaa, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x07, 0xd0,
	}
	assert.Equal(t, want, frame)
}

func TestParseHeaderRejectsShortDeclaredLength(t *testing.T) {
	_, err := ParseHeader([]byte{0x00, 0x04, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x01})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = ParseHeader([]byte{0x00, 0x04, 0x00})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrShortFrame))
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	frame, err := Encode(Header{Version: Version, Seq: 3}, &ProbeResponse{STA: sta, SSID: "empower"})
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(frame[:len(frame)-2])
		assert.Error(t, err)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		padded := append(append([]byte{}, frame...), 0xff)
		padded[5]++
		_, _, err := Decode(padded)
		assert.Error(t, err)
	})

	t.Run("ssid length past end", func(t *testing.T) {
		bad := append([]byte{}, frame...)
		bad[HeaderLen+6] = 0xfe
		_, _, err := Decode(bad)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("ssid longer than 32 bytes", func(t *testing.T) {
		long := datatypes.SSID(strings.Repeat("x", datatypes.MaxSSIDLength+1))
		for _, msg := range []Message{
			&ProbeResponse{STA: sta, SSID: long},
			&StatusLVAP{STA: sta, SSIDs: []datatypes.SSID{"empower", long}},
		} {
			raw, err := Encode(Header{Version: Version}, msg)
			require.NoError(t, err)
			_, _, err = Decode(raw)
			assert.ErrorIs(t, err, errors.ErrInvalidData, "%T", msg)
			assert.True(t, errors.IsInvalid(err), "%T", msg)
		}
	})

	t.Run("array count past end", func(t *testing.T) {
		caps, err := Encode(Header{}, &CapsResponse{WTP: wtp1})
		require.NoError(t, err)
		caps[HeaderLen+6] = 3
		_, _, err = Decode(caps)
		assert.Error(t, err)
	})
}

func TestDecodeUnknownTypePreservesBody(t *testing.T) {
	frame := []byte{0x00, 0x7f, 0x00, 0x00, 0x00, 0x0d, 0x00, 0x00, 0x00, 0x05, 0x01, 0x02, 0x03}
	h, msg, err := Decode(frame)
	require.NoError(t, err)

	unknown, ok := msg.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, MessageType(0x7f), h.Type)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, unknown.Body)

	again, err := Encode(h, msg)
	require.NoError(t, err)
	assert.Equal(t, frame, again)
}

func TestStatusLVAPFlags(t *testing.T) {
	m := &StatusLVAP{Flags: FlagAuthenticated | FlagSetMask}
	assert.True(t, m.Authenticated())
	assert.False(t, m.Associated())
	assert.True(t, m.SetMask())
}

func TestBandText(t *testing.T) {
	b, err := ParseBand("ht20")
	require.NoError(t, err)
	assert.Equal(t, BandHT20, b)
	assert.Equal(t, "L20", BandL20.String())

	_, err = ParseBand("VHT80")
	assert.Error(t, err)
}
