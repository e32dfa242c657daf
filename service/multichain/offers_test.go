package multichain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
)

type fakeOffers struct {
	platform string
	offers   []persist.Offer
	err      error
}

func (f fakeOffers) Platform() string { return f.platform }

func (f fakeOffers) GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error) {
	return f.offers, f.err
}

func TestAggregateOffers(t *testing.T) {
	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))
	require.NoError(t, addrs.SetConnected(persist.ChainNeutron, testAddress("neutron")))

	p := NewProvider(nil, nil, []OffersSource{
		{Chain: persist.ChainStargaze, Fetcher: fakeOffers{
			platform: "Stargaze",
			offers:   []persist.Offer{{AmountUSD: 10}, {AmountUSD: 5}},
		}},
		{Chain: persist.ChainNeutron, Fetcher: fakeOffers{
			platform: "Superbolt",
			offers:   []persist.Offer{{AmountUSD: 40}},
		}},
		// no osmosis address is tracked, so this source is never queried
		{Chain: persist.ChainOsmosis, Fetcher: fakeOffers{platform: "Backbone Labs (osmosis)"}},
	}, nil, nil, Hooks{})

	snap := p.aggregateOffers(context.Background(), addrs, price.Table{})

	require.Len(t, snap.Platforms, 2)
	assert.Equal(t, "Superbolt", snap.Platforms[0].Platform)
	assert.Equal(t, "Stargaze", snap.Platforms[1].Platform)
	assert.Equal(t, 55.0, snap.TotalUSD)
}

func TestAggregateOffers_PlatformFailureYieldsEmptyList(t *testing.T) {
	addrs := persist.AddressMap{}
	require.NoError(t, addrs.SetConnected(persist.ChainStargaze, testAddress("stars")))

	p := NewProvider(nil, nil, []OffersSource{
		{Chain: persist.ChainStargaze, Fetcher: fakeOffers{platform: "Stargaze", err: errors.New("down")}},
		{Chain: persist.ChainStargaze, Fetcher: fakeOffers{
			platform: "Other",
			offers:   []persist.Offer{{AmountUSD: 3}},
		}},
	}, nil, nil, Hooks{})

	snap := p.aggregateOffers(context.Background(), addrs, price.Table{})

	require.Len(t, snap.Platforms, 2)
	assert.Equal(t, "Other", snap.Platforms[0].Platform)
	assert.Equal(t, 3.0, snap.Platforms[0].TotalUSD)
	assert.Empty(t, snap.Platforms[1].Offers)
	assert.Equal(t, 3.0, snap.TotalUSD)
}
