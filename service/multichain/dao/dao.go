// Package dao resolves DAO-staked NFTs. A staked token leaves the owner's
// plain wallet-held query but is still attributable to them through the
// DAO's voting-power contract.
package dao

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/service/reqcache"
	"github.com/cosmofolio/go-cosmofolio/util"
)

const defaultIndexerURL = "https://indexer.daodao.zone"

// Config describes one DAO staking contract and the collection it stakes.
type Config struct {
	Chain          persist.Chain
	Name           string
	VotingContract persist.Address
	Collection     persist.Address
}

// DefaultRegistry lists the NFT-staking DAOs tracked out of the box. Each
// entry's voting contract is a cw721-staking module whose stakers retain
// attribution of the escrowed tokens.
func DefaultRegistry() []Config {
	return []Config{
		{
			Chain:          persist.ChainStargaze,
			Name:           "Bad Kids",
			VotingContract: "stars1y7ptq0qk9ad4gx9uhx5xn4hr28vcs4ikzmmqw6yy5mxqjmm2mzfs2mql30",
			Collection:     "stars19jq6mj84cnt9p7sagjxqf8hxtczwc8wlpuwe4sh62w45aheseues57n420",
		},
		{
			Chain:          persist.ChainStargaze,
			Name:           "Pixel Wizards",
			VotingContract: "stars1fx74nkqkw2748av8j7ew7r3xt9cgjqduwn8m0ur5lhe49uhlsasszc5fhr",
			Collection:     "stars1v8avajk64z7pppeu45ce6vv8wuxmwacdff484lqvv0vnka0cwgdqdk64sf",
		},
		{
			Chain:          persist.ChainOsmosis,
			Name:           "Mad Scientists",
			VotingContract: "osmo1g0e9hn2y7hl4frk8e7m2eccjp7rdmz5z0hyduqtvmf2qgrsqt9esrdqnvy",
			Collection:     "osmo1r0pzw36v3g05xnyu0sxzfl0jvv7cmmck706dirx2vacnsy2ikmvs57xhr0",
		},
		{
			Chain:          persist.ChainDungeon,
			Name:           "Dungeon Crawlers",
			VotingContract: "dgn1jgstkrn4mzjwxqa8pfh3rrkvtdjzszqz0mdrc0zwqhxqjv2p0t8qe6g7hk",
			Collection:     "dgn1sthrn5ep8ls5vzz8f9gp89khhmedahhdqd244dh9uqzk3hx2pzrs0g0f4c",
		},
	}
}

// Resolver queries the DAO indexer for staked token IDs, falling back to a
// direct smart query against the chain's LCD when the indexer is down, and
// backfills metadata for tokens the wallet-held query never saw.
type Resolver struct {
	daos       []Config
	indexerURL string
	httpClient *http.Client
	fallbacks  map[persist.Chain]common.StakedTokenIDFetcher
	metadata   map[persist.Chain]common.TokenMetadataFetcher
	cache      *reqcache.Cache
}

// NewResolver creates a Resolver over the given DAO registry.
func NewResolver(daos []Config, httpClient *http.Client, indexerURL string, cache *reqcache.Cache) *Resolver {
	if indexerURL == "" {
		indexerURL = defaultIndexerURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		daos:       daos,
		indexerURL: indexerURL,
		httpClient: httpClient,
		fallbacks:  map[persist.Chain]common.StakedTokenIDFetcher{},
		metadata:   map[persist.Chain]common.TokenMetadataFetcher{},
		cache:      cache,
	}
}

// RegisterChain wires the per-chain fallback and metadata fetchers, normally
// the chain's LCD adapter.
func (r *Resolver) RegisterChain(chain persist.Chain, fallback common.StakedTokenIDFetcher, metadata common.TokenMetadataFetcher) {
	if fallback != nil {
		r.fallbacks[chain] = fallback
	}
	if metadata != nil {
		r.metadata[chain] = metadata
	}
}

// DAOsForChain returns the registered DAOs on chain.
func (r *Resolver) DAOsForChain(chain persist.Chain) []Config {
	return util.Filter(r.daos, func(d Config) bool { return d.Chain == chain }, true)
}

// ResolveStaked returns records for every NFT address has staked into the
// chain's registered DAOs. Per-DAO failures are isolated and logged; the
// remaining DAOs still contribute.
func (r *Resolver) ResolveStaked(ctx context.Context, chain persist.Chain, address persist.Address, prices price.Table) []persist.NFTRecord {
	var records []persist.NFTRecord
	for _, d := range r.DAOsForChain(chain) {
		ids, err := r.stakedTokenIDs(ctx, d, address)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to resolve %s stake of %s", d.Name, address)
			continue
		}
		for _, id := range ids {
			rec := r.tokenRecord(ctx, d, id, prices)
			rec.DAOStaked = true
			rec.DAOName = d.Name
			rec.DAOAddress = d.VotingContract
			rec.SourceAddress = address
			records = append(records, rec)
		}
	}
	return records
}

func (r *Resolver) stakedTokenIDs(ctx context.Context, d Config, address persist.Address) ([]string, error) {
	ids, err := r.indexerStakedTokenIDs(ctx, d, address)
	if err == nil {
		return ids, nil
	}
	logger.For(ctx).WithError(err).Warnf("dao indexer failed for %s, falling back to smart query", d.Name)

	fallback, ok := r.fallbacks[d.Chain]
	if !ok {
		return nil, fmt.Errorf("no fallback fetcher for %s: %w", d.Chain, err)
	}
	return fallback.GetStakedTokenIDs(ctx, d.VotingContract, address)
}

func (r *Resolver) indexerStakedTokenIDs(ctx context.Context, d Config, address persist.Address) ([]string, error) {
	u := fmt.Sprintf("%s/%s/contract/%s/daoVotingCw721Staked/stakedNfts?address=%s", r.indexerURL, d.Chain, d.VotingContract, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, util.GetErrFromResp(resp)
	}

	var ids []string
	if err := util.UnmarshallBody(&ids, resp.Body); err != nil {
		return nil, err
	}
	return ids, nil
}

// tokenRecord backfills metadata for a staked token through the request
// cache. When the chain has no metadata fetcher or the fetch fails, a minimal
// record keeps the token visible rather than dropping it.
func (r *Resolver) tokenRecord(ctx context.Context, d Config, tokenID string, prices price.Table) persist.NFTRecord {
	ti := persist.TokenIdentifiers{Contract: d.Collection, TokenID: tokenID}

	fetcher, ok := r.metadata[d.Chain]
	if ok {
		key := reqcache.Key("dao.token_metadata", d.Chain.String(), ti.Contract, ti.TokenID)
		rec, err := reqcache.Execute(ctx, r.cache, key, func(ctx context.Context) (persist.NFTRecord, error) {
			return fetcher.GetNFTByTokenIdentifiers(ctx, ti, prices)
		})
		if err == nil {
			return rec
		}
		logger.For(ctx).WithError(err).Warnf("failed to backfill metadata for staked %s", ti)
	}

	return persist.NFTRecord{
		TokenIdentifiers: ti,
		Name:             fmt.Sprintf("%s #%s", d.Name, tokenID),
		Chain:            d.Chain,
		CollectionName:   d.Name,
	}
}
