package multichain

import (
	"context"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
)

// CombinedHoldingsProvider concatenates holdings from several sources for
// one chain, merging overlapping records by identity. A source failing is
// logged and skipped; the other sources still contribute. Used for chains
// whose wallet-held tokens come from the LCD while listings come from a
// marketplace API.
type CombinedHoldingsProvider struct {
	Sources []common.HoldingsFetcher
}

func (c CombinedHoldingsProvider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var merged []persist.NFTRecord
	for _, src := range c.Sources {
		records, err := src.GetNFTsByWalletAddress(ctx, address, prices)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("holdings source failed for %s", address)
			continue
		}
		merged = MergeRecords(merged, records)
	}
	return merged, nil
}

// FallbackHoldingsProvider calls its fallback when the primary source
// returns an error.
type FallbackHoldingsProvider struct {
	Primary  common.HoldingsFetcher
	Fallback common.HoldingsFetcher
}

func (f FallbackHoldingsProvider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	records, err := f.Primary.GetNFTsByWalletAddress(ctx, address, prices)
	if err != nil {
		logger.For(ctx).WithError(err).Warn("failed to get holdings from primary in failure fallback")
		return f.Fallback.GetNFTsByWalletAddress(ctx, address, prices)
	}
	return records, nil
}
