package multichain

import (
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
)

// ChainAdapter bundles the fetch surfaces one chain exposes. Fields may be
// nil when a chain lacks that surface (e.g. no fungible balances on a pure
// marketplace indexer).
type ChainAdapter struct {
	Holdings common.HoldingsFetcher
	Balances common.BalanceFetcher
	Metadata common.TokenMetadataFetcher
}

// ProviderLookup maps each chain to its adapter. New chains must be added
// here and only here.
type ProviderLookup map[persist.Chain]ChainAdapter

// OffersSource pairs a marketplace offers fetcher with the chain whose
// addresses it should be queried with.
type OffersSource struct {
	Chain   persist.Chain
	Fetcher common.OffersFetcher
}
