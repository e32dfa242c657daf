package multichain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
)

func testAddress(prefix string) persist.Address {
	return persist.Address(prefix + "1" + strings.Repeat("q", 38))
}

type fakeHoldings struct {
	mu      sync.Mutex
	records []persist.NFTRecord
	err     error
	block   chan struct{}
	calls   int
}

func (f *fakeHoldings) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.records, f.err
}

func (f *fakeHoldings) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBalances struct {
	assets []persist.AssetBalance
	err    error
}

func (f *fakeBalances) GetBalancesByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.AssetBalance, error) {
	return f.assets, f.err
}

func waitComplete(t *testing.T, p *Provider) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == StateComplete }, 5*time.Second, 10*time.Millisecond)
}

func TestSyncAddresses_FetchesAndCompletes(t *testing.T) {
	ctx := context.Background()

	holdings := &fakeHoldings{records: []persist.NFTRecord{
		{TokenIdentifiers: persist.TokenIdentifiers{Contract: "stars1nft", TokenID: "1"}, Chain: persist.ChainStargaze, Name: "one"},
		{TokenIdentifiers: persist.TokenIdentifiers{Contract: "stars1nft", TokenID: "2"}, Chain: persist.ChainStargaze, Name: "two"},
	}}
	balances := &fakeBalances{assets: []persist.AssetBalance{
		{Symbol: "STARS", Amount: "5000000", Decimals: 6, Denom: "ustars", IsNative: true, FormattedAmount: 5, Price: 2, USDValue: 10},
	}}

	var mu sync.Mutex
	var fetchedChains []persist.Chain
	var statusChanges []bool
	initialLoads := 0

	p := NewProvider(ProviderLookup{
		persist.ChainStargaze: {Holdings: holdings, Balances: balances},
	}, nil, nil, nil, nil, Hooks{
		OnAddressFetched: func(chain persist.Chain) {
			mu.Lock()
			fetchedChains = append(fetchedChains, chain)
			mu.Unlock()
		},
		OnFetchStatusChange: func(isFetching bool) {
			mu.Lock()
			statusChanges = append(statusChanges, isFetching)
			mu.Unlock()
		},
		OnInitialNFTLoadComplete: func() {
			mu.Lock()
			initialLoads++
			mu.Unlock()
		},
	})

	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))

	dispatched := p.SyncAddresses(ctx, addrs)
	assert.Equal(t, 1, dispatched)
	waitComplete(t, p)

	snap := p.Snapshot()
	assert.Len(t, snap.NFTs, 2)
	require.Contains(t, snap.Balances, persist.ChainStargaze)
	require.Len(t, snap.Balances[persist.ChainStargaze].Assets, 1)
	assert.Equal(t, "5000000", snap.Balances[persist.ChainStargaze].Assets[0].Amount)
	assert.Equal(t, 10.0, snap.Balances[persist.ChainStargaze].TotalValue)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []persist.Chain{persist.ChainStargaze}, fetchedChains)
	assert.Equal(t, []bool{true, false}, statusChanges)
	assert.Equal(t, 1, initialLoads)
}

func TestSyncAddresses_DoesNotRefetch(t *testing.T) {
	ctx := context.Background()
	holdings := &fakeHoldings{}

	p := NewProvider(ProviderLookup{
		persist.ChainStargaze: {Holdings: holdings},
	}, nil, nil, nil, nil, Hooks{})

	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))

	assert.Equal(t, 1, p.SyncAddresses(ctx, addrs))
	waitComplete(t, p)

	assert.Equal(t, 0, p.SyncAddresses(ctx, addrs))
	assert.Equal(t, 1, holdings.callCount())
}

func TestSyncAddresses_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()

	healthy := &fakeHoldings{records: []persist.NFTRecord{
		{TokenIdentifiers: persist.TokenIdentifiers{Contract: "osmo1nft", TokenID: "9"}, Chain: persist.ChainOsmosis},
	}}
	broken := &fakeHoldings{err: errors.New("indexer down")}

	p := NewProvider(ProviderLookup{
		persist.ChainOsmosis:  {Holdings: healthy},
		persist.ChainStargaze: {Holdings: broken},
	}, nil, nil, nil, nil, Hooks{})

	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainOsmosis, testAddress("osmo")))
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))

	assert.Equal(t, 2, p.SyncAddresses(ctx, addrs))
	waitComplete(t, p)

	snap := p.Snapshot()
	require.Len(t, snap.NFTs, 1)
	assert.Equal(t, persist.ChainOsmosis, snap.NFTs[0].Chain)
}

func TestReset_DropsInFlightResults(t *testing.T) {
	ctx := context.Background()

	block := make(chan struct{})
	holdings := &fakeHoldings{
		records: []persist.NFTRecord{{TokenIdentifiers: persist.TokenIdentifiers{Contract: "stars1nft", TokenID: "1"}, Chain: persist.ChainStargaze}},
		block:   block,
	}

	p := NewProvider(ProviderLookup{
		persist.ChainStargaze: {Holdings: holdings},
	}, nil, nil, nil, nil, Hooks{})

	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))

	p.SyncAddresses(ctx, addrs)
	require.Eventually(t, func() bool { return holdings.callCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	p.Reset()
	close(block)
	p.StopWait()

	snap := p.Snapshot()
	assert.Empty(t, snap.NFTs)
	assert.Equal(t, StateIdle, snap.State)
}

func TestRemoveManualAddress(t *testing.T) {
	ctx := context.Background()

	manualAddr := persist.Address("stars1" + strings.Repeat("p", 38))
	holdings := &fakeHoldings{records: []persist.NFTRecord{
		{TokenIdentifiers: persist.TokenIdentifiers{Contract: "c1", TokenID: "1"}, Chain: persist.ChainStargaze, SourceAddress: manualAddr},
		{TokenIdentifiers: persist.TokenIdentifiers{Contract: "c2", TokenID: "2"}, Chain: persist.ChainStargaze, DAOStaked: true, SourceAddress: testAddress("stars")},
	}}

	var mu sync.Mutex
	removals := 0
	p := NewProvider(ProviderLookup{
		persist.ChainStargaze: {Holdings: holdings},
	}, nil, nil, nil, nil, Hooks{
		OnManualAddressRemoved: func(chain persist.Chain) {
			mu.Lock()
			removals++
			mu.Unlock()
		},
	})

	addrs := persist.AddressMap{}
	key, err := addrs.AddManual(persist.ChainStargaze, manualAddr)
	require.NoError(t, err)

	p.SyncAddresses(ctx, addrs)
	waitComplete(t, p)
	require.Len(t, p.Snapshot().NFTs, 2)

	addrs.Remove(key)
	p.RemoveManualAddress(persist.ChainStargaze, manualAddr, addrs)

	// the chain has no tracked addresses left, so staked records purge too
	assert.Empty(t, p.Snapshot().NFTs)
	mu.Lock()
	assert.Equal(t, 1, removals)
	mu.Unlock()

	// the pair can be fetched again once re-added
	_, err = addrs.AddManual(persist.ChainStargaze, manualAddr)
	require.NoError(t, err)
	assert.Equal(t, 1, p.SyncAddresses(ctx, addrs))
}
