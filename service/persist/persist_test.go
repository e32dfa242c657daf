package persist

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	valid := Address("stars1" + strings.Repeat("q", 38))

	t.Run("accepts well-formed bech32", func(t *testing.T) {
		assert.NoError(t, ValidateAddress(ChainStargaze, valid))
	})

	t.Run("rejects wrong prefix", func(t *testing.T) {
		osmo := Address("osmo1" + strings.Repeat("q", 38))
		assert.Error(t, ValidateAddress(ChainStargaze, osmo))
	})

	t.Run("rejects short data part", func(t *testing.T) {
		assert.Error(t, ValidateAddress(ChainStargaze, "stars1qqq"))
	})

	t.Run("rejects invalid charset", func(t *testing.T) {
		// 'b' and 'i' are not in the bech32 charset
		bad := Address("stars1" + strings.Repeat("b", 38))
		assert.Error(t, ValidateAddress(ChainStargaze, bad))
	})

	t.Run("validates EVM addresses as hex", func(t *testing.T) {
		assert.NoError(t, ValidateAddress(ChainForma, "0x52908400098527886E0F7030069857D2E4169EE7"))
		assert.Error(t, ValidateAddress(ChainForma, "0x123"))
		assert.Error(t, ValidateAddress(ChainForma, Address("forma1"+strings.Repeat("q", 38))))
	})
}

func TestChainNames(t *testing.T) {
	a := assert.New(t)

	for _, chain := range AllChains() {
		got, ok := ChainFromName(chain.String())
		a.True(ok, chain.String())
		a.Equal(chain, got)
	}

	_, ok := ChainFromName("bitcoin")
	a.False(ok)
}

func TestChainJSON(t *testing.T) {
	a := assert.New(t)

	b, err := json.Marshal(ChainOsmosis)
	require.NoError(t, err)
	a.Equal(`"osmosis"`, string(b))

	var chain Chain
	require.NoError(t, json.Unmarshal([]byte(`"OSMOSIS"`), &chain))
	a.Equal(ChainOsmosis, chain)
	a.Error(json.Unmarshal([]byte(`"bitcoin"`), &chain))

	// map keys carry names too
	b, err = json.Marshal(map[Chain]int{ChainStargaze: 1})
	require.NoError(t, err)
	a.Equal(`{"stargaze":1}`, string(b))

	decoded := map[Chain]int{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	a.Equal(1, decoded[ChainStargaze])
}

func TestAddressMap(t *testing.T) {
	connected := Address("stars1" + strings.Repeat("q", 38))
	manual := Address("stars1" + strings.Repeat("p", 38))

	t.Run("manual duplicates are rejected", func(t *testing.T) {
		m := AddressMap{}
		_, err := m.AddManual(ChainStargaze, manual)
		require.NoError(t, err)
		_, err = m.AddManual(ChainStargaze, manual)
		assert.Error(t, err)
	})

	t.Run("manual slots fill the next free index", func(t *testing.T) {
		m := AddressMap{}
		k1, err := m.AddManual(ChainStargaze, manual)
		require.NoError(t, err)
		assert.Equal(t, AddressKey("stargaze_manual_1"), k1)

		other := Address("stars1" + strings.Repeat("z", 38))
		k2, err := m.AddManual(ChainStargaze, other)
		require.NoError(t, err)
		assert.Equal(t, AddressKey("stargaze_manual_2"), k2)

		m.Remove(k1)
		k3, err := m.AddManual(ChainStargaze, manual)
		require.NoError(t, err)
		assert.Equal(t, AddressKey("stargaze_manual_1"), k3)
	})

	t.Run("entries list connected first", func(t *testing.T) {
		m := AddressMap{}
		_, err := m.AddManual(ChainStargaze, manual)
		require.NoError(t, err)
		require.NoError(t, m.SetConnected(ChainStargaze, connected))

		entries := m.EntriesForChain(ChainStargaze)
		require.Len(t, entries, 2)
		assert.Equal(t, connected, entries[0])
		assert.Equal(t, manual, entries[1])
	})

	t.Run("invalid addresses never enter the map", func(t *testing.T) {
		m := AddressMap{}
		assert.Error(t, m.SetConnected(ChainStargaze, "nonsense"))
		assert.Empty(t, m)
	})
}

func TestFormatAmount(t *testing.T) {
	a := assert.New(t)

	a.Equal(5.0, FormatAmount("5000000", 6))
	a.Equal(1.5, FormatAmount("1500000000000000000", 18))
	a.Equal(0.0, FormatAmount("not-a-number", 6))
}

func TestChainBalanceSnapshotNormalize(t *testing.T) {
	osmo := AssetBalance{Symbol: "OSMO", Amount: "5000000", Decimals: 6}
	osmo.Derive(0.5)
	usdc := AssetBalance{Symbol: "USDC", Amount: "12000000", Decimals: 6}
	usdc.Derive(1.0)
	zero := AssetBalance{Symbol: "DUST", Amount: "0", Decimals: 6}
	zero.Derive(3.0)

	snap := ChainBalanceSnapshot{Chain: ChainOsmosis, Assets: []AssetBalance{osmo, usdc, zero}}
	snap.Normalize()

	require.Len(t, snap.Assets, 2)
	assert.Equal(t, "USDC", snap.Assets[0].Symbol)
	assert.Equal(t, "OSMO", snap.Assets[1].Symbol)
	assert.InDelta(t, 5.0*0.5+12.0, snap.TotalValue, 1e-9)
}

func TestBuildOffersSnapshot(t *testing.T) {
	snap := BuildOffersSnapshot(map[string][]Offer{
		"Stargaze": {
			{AmountUSD: 10, Symbol: "STARS"},
			{AmountUSD: 5, Symbol: "STARS"},
		},
		"Superbolt": {
			{AmountUSD: 40, Symbol: "NTRN"},
		},
		"Intergaze": {},
	})

	require.Len(t, snap.Platforms, 3)
	assert.Equal(t, "Superbolt", snap.Platforms[0].Platform)
	assert.Equal(t, 40.0, snap.Platforms[0].TotalUSD)
	assert.Equal(t, "Stargaze", snap.Platforms[1].Platform)
	assert.Equal(t, 15.0, snap.Platforms[1].TotalUSD)
	assert.Equal(t, 55.0, snap.TotalUSD)
}

func TestValueUSD(t *testing.T) {
	a := assert.New(t)

	listed := NFTRecord{Listed: true, ListPrice: &PriceSnapshot{AmountUSD: 80}, Floor: &PriceSnapshot{AmountUSD: 30}}
	a.Equal(80.0, listed.ValueUSD())

	unlisted := NFTRecord{Floor: &PriceSnapshot{AmountUSD: 30}}
	a.Equal(30.0, unlisted.ValueUSD())

	bare := NFTRecord{}
	a.Equal(0.0, bare.ValueUSD())
}
