package multichain

import (
	"context"
	"sync"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
)

// fetchOffersOnce fans out to every offers source on the first address sync
// of a generation. Offers are cheap to refetch wholesale, so unlike NFT
// holdings they are not tracked per address; a Reset clears the flag and
// the next sync refetches everything.
func (p *Provider) fetchOffersOnce(ctx context.Context, gen uint64, addrs persist.AddressMap, prices price.Table) {
	p.mu.Lock()
	if p.offersFetched || gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.offersFetched = true
	p.mu.Unlock()

	p.pool.Submit(func() {
		snapshot := p.aggregateOffers(ctx, addrs, prices)

		p.mu.Lock()
		if gen == p.generation {
			p.offers = snapshot
		}
		p.mu.Unlock()
	})
}

// aggregateOffers queries each marketplace for every tracked address on its
// chain and groups the results by platform. One platform failing yields an
// empty list for that platform only.
func (p *Provider) aggregateOffers(ctx context.Context, addrs persist.AddressMap, prices price.Table) persist.OffersSnapshot {
	byPlatform := map[string][]persist.Offer{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, source := range p.Offers {
		entries := addrs.EntriesForChain(source.Chain)
		if len(entries) == 0 {
			continue
		}
		source := source
		wg.Add(1)
		go func() {
			defer wg.Done()
			var offers []persist.Offer
			for _, address := range entries {
				fetched, err := source.Fetcher.GetOffersByWalletAddress(ctx, address, prices)
				if err != nil {
					logger.For(ctx).WithError(err).Warnf("failed to fetch offers from %s for %s", source.Fetcher.Platform(), address)
					continue
				}
				offers = append(offers, fetched...)
			}
			mu.Lock()
			byPlatform[source.Fetcher.Platform()] = append(byPlatform[source.Fetcher.Platform()], offers...)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return persist.BuildOffersSnapshot(byPlatform)
}
