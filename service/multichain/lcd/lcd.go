// Package lcd is the generic Cosmos chain adapter. It speaks to a chain's
// REST/LCD endpoint for bank balances, CW721 ownership queries and smart
// contract queries, and normalizes results into canonical records.
package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/service/reqcache"
	"github.com/cosmofolio/go-cosmofolio/util"
	"github.com/cosmofolio/go-cosmofolio/util/retry"
)

const (
	tokensPageSize = 50
	balanceTimeout = 15 * time.Second
)

// AssetConfig describes one fungible denom tracked on a chain.
type AssetConfig struct {
	Denom       string
	Symbol      string
	Decimals    uint8
	IsNative    bool
	OriginChain persist.Chain
}

// CollectionConfig describes one CW721 collection tracked on a chain.
type CollectionConfig struct {
	Contract persist.Address
	Name     string
}

// Config wires a Provider to one chain.
type Config struct {
	Chain       persist.Chain
	LCDURL      string
	Assets      []AssetConfig
	Collections []CollectionConfig
	// UseRelay routes contract queries through the CORS relay rotation for
	// endpoints that reject direct browser-origin traffic.
	UseRelay bool
}

// Provider is the REST/LCD adapter for one Cosmos chain.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	retryer    *retry.Retryer
	cache      *reqcache.Cache
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.BalanceFetcher = (*Provider)(nil)
var _ common.TokenMetadataFetcher = (*Provider)(nil)
var _ common.StakedTokenIDFetcher = (*Provider)(nil)

// NewProvider creates an LCD adapter for cfg's chain.
func NewProvider(cfg Config, httpClient *http.Client, retryer *retry.Retryer, cache *reqcache.Cache) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if retryer == nil {
		retryer = retry.New(httpClient)
	}
	return &Provider{cfg: cfg, httpClient: httpClient, retryer: retryer, cache: cache}
}

// Chain returns the chain this provider serves.
func (p *Provider) Chain() persist.Chain { return p.cfg.Chain }

// SmartQuery runs a CosmWasm smart query, base64-encoding the JSON body per
// LCD convention, and decodes the response's data field into out.
func (p *Provider) SmartQuery(ctx context.Context, contract persist.Address, query any, out any) error {
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s", p.cfg.LCDURL, contract, base64.StdEncoding.EncodeToString(body))

	resp, err := p.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return util.GetErrFromResp(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := util.UnmarshallBody(&envelope, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}

func (p *Provider) get(ctx context.Context, u string) (*http.Response, error) {
	if p.cfg.UseRelay {
		return p.retryer.DoRelayed(ctx, retry.RequestSpec{Method: http.MethodGet, URL: u})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return p.retryer.Do(req)
}

// GetNFTsByWalletAddress walks every configured collection, paginating the
// CW721 tokens query until a short page, and fetches each token's metadata
// through the request cache. A collection failing is logged and skipped; the
// other collections still contribute.
func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	for _, coll := range p.cfg.Collections {
		ids, err := p.ownedTokenIDs(ctx, coll.Contract, address)
		if err != nil {
			logger.For(ctx).WithError(err).Warnf("failed to list %s tokens of %s on %s", coll.Name, address, p.cfg.Chain)
			continue
		}
		for _, id := range ids {
			rec, err := p.nftRecord(ctx, coll, id, prices)
			if err != nil {
				logger.For(ctx).WithError(err).Warnf("failed to fetch %s #%s on %s", coll.Name, id, p.cfg.Chain)
				continue
			}
			rec.SourceAddress = address
			records = append(records, rec)
		}
	}
	return records, nil
}

func (p *Provider) ownedTokenIDs(ctx context.Context, contract persist.Address, owner persist.Address) ([]string, error) {
	var all []string
	startAfter := ""
	for {
		query := map[string]any{"tokens": map[string]any{"owner": owner.String(), "limit": tokensPageSize}}
		if startAfter != "" {
			query["tokens"].(map[string]any)["start_after"] = startAfter
		}

		var page struct {
			Tokens []string `json:"tokens"`
		}
		if err := p.SmartQuery(ctx, contract, query, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Tokens...)
		if len(page.Tokens) < tokensPageSize {
			return all, nil
		}
		startAfter = page.Tokens[len(page.Tokens)-1]
	}
}

type nftInfo struct {
	TokenURI  string `json:"token_uri"`
	Extension struct {
		Name        string            `json:"name"`
		Image       string            `json:"image"`
		Attributes  []common.RawTrait `json:"attributes"`
		Traits      []common.RawTrait `json:"traits"`
		Description string            `json:"description"`
	} `json:"extension"`
}

func (p *Provider) nftRecord(ctx context.Context, coll CollectionConfig, tokenID string, prices price.Table) (persist.NFTRecord, error) {
	info, err := p.nftInfoCached(ctx, coll.Contract, tokenID)
	if err != nil {
		return persist.NFTRecord{}, err
	}

	traits := info.Extension.Attributes
	if len(traits) == 0 {
		traits = info.Extension.Traits
	}

	name := info.Extension.Name
	if name == "" {
		name = fmt.Sprintf("%s #%s", coll.Name, tokenID)
	}

	return persist.NFTRecord{
		TokenIdentifiers: persist.TokenIdentifiers{Contract: coll.Contract, TokenID: tokenID},
		Name:             name,
		Chain:            p.cfg.Chain,
		CollectionName:   coll.Name,
		ImageURL:         util.IPFSToGateway(util.FirstNonEmpty(info.Extension.Image, info.TokenURI)),
		Traits:           common.NormalizeTraits(traits),
	}, nil
}

func (p *Provider) nftInfoCached(ctx context.Context, contract persist.Address, tokenID string) (nftInfo, error) {
	key := reqcache.Key("lcd.nft_info", p.cfg.Chain.String(), contract, tokenID)
	return reqcache.Execute(ctx, p.cache, key, func(ctx context.Context) (nftInfo, error) {
		var info nftInfo
		err := p.SmartQuery(ctx, contract, map[string]any{"nft_info": map[string]any{"token_id": tokenID}}, &info)
		return info, err
	})
}

// GetNFTByTokenIdentifiers backfills a single token, typically one discovered
// only through a staking query.
func (p *Provider) GetNFTByTokenIdentifiers(ctx context.Context, ti persist.TokenIdentifiers, prices price.Table) (persist.NFTRecord, error) {
	coll, ok := util.FindFirst(p.cfg.Collections, func(c CollectionConfig) bool { return c.Contract == ti.Contract })
	if !ok {
		coll = CollectionConfig{Contract: ti.Contract, Name: ti.Contract.String()}
	}
	rec, err := p.nftRecord(ctx, coll, ti.TokenID, prices)
	if err != nil {
		return persist.NFTRecord{}, common.ErrProviderTokenNotFound{Chain: p.cfg.Chain, Token: ti}
	}
	return rec, nil
}

// GetStakedTokenIDs queries a DAO voting contract directly. The response
// shape is either a bare array or {"tokens": [...]} depending on contract
// version.
func (p *Provider) GetStakedTokenIDs(ctx context.Context, daoContract persist.Address, address persist.Address) ([]string, error) {
	var raw json.RawMessage
	if err := p.SmartQuery(ctx, daoContract, map[string]any{"staked_nfts": map[string]any{"address": address.String()}}, &raw); err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}
	var wrapped struct {
		Tokens []string `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized staked_nfts response: %w", err)
	}
	return wrapped.Tokens, nil
}

type bankBalancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

// GetBalancesByWalletAddress fetches bank balances with a hard timeout. Any
// failure degrades to a zero contribution for this chain rather than failing
// the aggregation.
func (p *Provider) GetBalancesByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.AssetBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s?pagination.limit=200", p.cfg.LCDURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.For(ctx).WithError(err).Warnf("failed to fetch %s balances for %s", p.cfg.Chain, address)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.For(ctx).Warnf("bank balances for %s on %s returned %s", address, p.cfg.Chain, resp.Status)
		return nil, nil
	}

	var body bankBalancesResponse
	if err := util.UnmarshallBody(&body, resp.Body); err != nil {
		logger.For(ctx).WithError(err).Warnf("failed to decode %s balances for %s", p.cfg.Chain, address)
		return nil, nil
	}

	var out []persist.AssetBalance
	for _, bal := range body.Balances {
		cfg, ok := util.FindFirst(p.cfg.Assets, func(a AssetConfig) bool { return a.Denom == bal.Denom })
		if !ok {
			continue
		}
		asset := persist.AssetBalance{
			Symbol:      cfg.Symbol,
			Amount:      bal.Amount,
			Decimals:    cfg.Decimals,
			Denom:       cfg.Denom,
			IsNative:    cfg.IsNative,
			OriginChain: cfg.OriginChain,
		}
		asset.Derive(prices.USD(cfg.Symbol))
		out = append(out, asset)
	}
	return out, nil
}
