package runtime

import (
	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
)

// tenantBase derives the 6 byte BSSID base of a tenant: the leading bytes of
// its UUID with the locally administered bit set and the group bit cleared.
func tenantBase(id uuid.UUID) datatypes.EtherAddress {
	var base datatypes.EtherAddress
	copy(base[:], id[:6])
	base[0] = (base[0] | 0x02) &^ 0x01
	return base
}

// NetworkBSSID is the BSSID a unique tenant presents to station sta.
func NetworkBSSID(tenant uuid.UUID, sta datatypes.EtherAddress) datatypes.EtherAddress {
	return tenantBase(tenant).Xor(sta)
}

// SharedBSSID is the BSSID of the VAP a shared tenant hosts on radio hwaddr.
func SharedBSSID(tenant uuid.UUID, hwaddr datatypes.EtherAddress) datatypes.EtherAddress {
	return tenantBase(tenant).Xor(hwaddr)
}
