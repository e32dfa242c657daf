package persist

import (
	"fmt"
	"sort"
	"strings"
)

// AddressKey names one tracked address slot: either a bare chain name for the
// wallet-connected address, or "<chain>_manual_<n>" for a user-supplied one.
type AddressKey string

// Chain extracts the chain component of the key.
func (k AddressKey) Chain() (Chain, bool) {
	name, _, _ := strings.Cut(string(k), "_manual_")
	return ChainFromName(name)
}

// IsManual reports whether the key names a manually entered address.
func (k AddressKey) IsManual() bool {
	return strings.Contains(string(k), "_manual_")
}

// AddressMap tracks one connected address per chain plus any number of manual
// addresses. Cleared wholesale on disconnect or account change.
type AddressMap map[AddressKey]Address

// SetConnected records the wallet-derived address for chain, replacing any
// previous connected address. The address is validated pre-flight.
func (m AddressMap) SetConnected(chain Chain, addr Address) error {
	if err := ValidateAddress(chain, addr); err != nil {
		return err
	}
	m[AddressKey(chain.String())] = addr
	return nil
}

// AddManual records an extra user-supplied address for chain under the next
// free manual slot. Duplicate addresses for the same chain are rejected.
func (m AddressMap) AddManual(chain Chain, addr Address) (AddressKey, error) {
	if err := ValidateAddress(chain, addr); err != nil {
		return "", err
	}
	for key, existing := range m {
		if c, ok := key.Chain(); ok && c == chain && existing == addr {
			return "", fmt.Errorf("address %s already tracked for %s", addr, chain)
		}
	}
	n := 1
	for {
		key := AddressKey(fmt.Sprintf("%s_manual_%d", chain, n))
		if _, taken := m[key]; !taken {
			m[key] = addr
			return key, nil
		}
		n++
	}
}

// Remove deletes one entry by key.
func (m AddressMap) Remove(key AddressKey) {
	delete(m, key)
}

// EntriesForChain returns the addresses tracked for chain, connected first
// then manual slots in numeric order.
func (m AddressMap) EntriesForChain(chain Chain) []Address {
	keys := make([]AddressKey, 0, len(m))
	for key := range m {
		if c, ok := key.Chain(); ok && c == chain {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Address, 0, len(keys))
	// bare chain key sorts before chain_manual_*, so connected stays first
	for _, key := range keys {
		out = append(out, m[key])
	}
	return out
}

// Clone returns a copy of the map.
func (m AddressMap) Clone() AddressMap {
	out := make(AddressMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
