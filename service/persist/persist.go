// Package persist defines the canonical record shapes shared by every chain
// adapter. Upstream field-name inconsistencies never leak past the adapter
// boundary; everything downstream speaks these types.
package persist

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Chain identifies a supported blockchain network.
type Chain int

const (
	// ChainStargaze represents the Stargaze blockchain
	ChainStargaze Chain = iota
	// ChainOsmosis represents the Osmosis blockchain
	ChainOsmosis
	// ChainInjective represents the Injective blockchain
	ChainInjective
	// ChainInitia represents the Initia blockchain
	ChainInitia
	// ChainNeutron represents the Neutron blockchain
	ChainNeutron
	// ChainCosmosHub represents the Cosmos Hub blockchain
	ChainCosmosHub
	// ChainDungeon represents the Dungeon blockchain
	ChainDungeon
	// ChainOmniFlix represents the OmniFlix blockchain
	ChainOmniFlix
	// ChainForma represents the Forma EVM sidechain
	ChainForma
	// MaxChainValue is the highest valid chain value, and should always be
	// updated to point to the most recently added chain.
	MaxChainValue = ChainForma
)

var chainNames = map[Chain]string{
	ChainStargaze:  "stargaze",
	ChainOsmosis:   "osmosis",
	ChainInjective: "injective",
	ChainInitia:    "initia",
	ChainNeutron:   "neutron",
	ChainCosmosHub: "cosmoshub",
	ChainDungeon:   "dungeon",
	ChainOmniFlix:  "omniflix",
	ChainForma:     "forma",
}

// bech32Prefixes maps each Cosmos chain to its address prefix. Forma is EVM
// and validates as 0x + 40 hex instead.
var bech32Prefixes = map[Chain]string{
	ChainStargaze:  "stars",
	ChainOsmosis:   "osmo",
	ChainInjective: "inj",
	ChainInitia:    "init",
	ChainNeutron:   "neutron",
	ChainCosmosHub: "cosmos",
	ChainDungeon:   "dgn",
	ChainOmniFlix:  "omniflix",
}

// AllChains lists every supported chain in declaration order.
func AllChains() []Chain {
	out := make([]Chain, 0, int(MaxChainValue)+1)
	for c := ChainStargaze; c <= MaxChainValue; c++ {
		out = append(out, c)
	}
	return out
}

func (c Chain) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chain(%d)", int(c))
}

// ChainFromName resolves a chain by its lowercase name.
func ChainFromName(name string) (Chain, bool) {
	for c, n := range chainNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// MarshalText emits the chain's name, so JSON values and map keys carry
// "stargaze" rather than an enum ordinal.
func (c Chain) MarshalText() ([]byte, error) {
	if _, ok := chainNames[c]; !ok {
		return nil, fmt.Errorf("unknown chain %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts a chain name.
func (c *Chain) UnmarshalText(b []byte) error {
	chain, ok := ChainFromName(strings.ToLower(string(b)))
	if !ok {
		return fmt.Errorf("unknown chain %q", b)
	}
	*c = chain
	return nil
}

// EnvName returns the chain's name in environment-variable form.
func (c Chain) EnvName() string {
	return strings.ToUpper(c.String())
}

// IsEVM reports whether the chain uses hex addresses.
func (c Chain) IsEVM() bool { return c == ChainForma }

// Bech32Prefix returns the chain's address prefix, empty for EVM chains.
func (c Chain) Bech32Prefix() string { return bech32Prefixes[c] }

// Address is a wallet or contract address in the chain's native format.
type Address string

func (a Address) String() string { return string(a) }

// ErrInvalidAddress is returned when an address does not match its chain's
// format. It is raised pre-flight, before any network call.
type ErrInvalidAddress struct {
	Chain   Chain
	Address Address
}

func (e ErrInvalidAddress) Error() string {
	return fmt.Sprintf("invalid %s address: %s", e.Chain, e.Address)
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// ValidateAddress checks that addr matches the chain's address format.
func ValidateAddress(chain Chain, addr Address) error {
	if chain.IsEVM() {
		if !ethcommon.IsHexAddress(addr.String()) {
			return ErrInvalidAddress{Chain: chain, Address: addr}
		}
		return nil
	}

	prefix := chain.Bech32Prefix()
	s := addr.String()
	if !strings.HasPrefix(s, prefix+"1") {
		return ErrInvalidAddress{Chain: chain, Address: addr}
	}
	data := s[len(prefix)+1:]
	if len(data) < 32 || len(data) > 72 {
		return ErrInvalidAddress{Chain: chain, Address: addr}
	}
	for _, r := range data {
		if !strings.ContainsRune(bech32Charset, r) {
			return ErrInvalidAddress{Chain: chain, Address: addr}
		}
	}
	return nil
}
