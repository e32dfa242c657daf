// Package backbone adapts the Backbone Labs marketplace REST API, which
// serves listings and offers for several Cosmos chains. Their API rejects
// cross-origin traffic, so every call goes through the CORS relay rotation.
package backbone

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/util"
	"github.com/cosmofolio/go-cosmofolio/util/retry"
)

const (
	defaultAPIURL = "https://nft-api.backbonelabs.io/api/v1"
	pageSize      = 50
)

// Config binds a Provider to one of the chains Backbone serves.
type Config struct {
	Chain    persist.Chain
	Slug     string // chain identifier in Backbone URLs
	Symbol   string
	Denom    string
	Exponent uint8
}

// ConfigForChain returns the Backbone wiring for a supported chain.
func ConfigForChain(chain persist.Chain) (Config, bool) {
	switch chain {
	case persist.ChainOsmosis:
		return Config{Chain: chain, Slug: "osmosis", Symbol: "OSMO", Denom: "uosmo", Exponent: 6}, true
	case persist.ChainInjective:
		return Config{Chain: chain, Slug: "injective", Symbol: "INJ", Denom: "inj", Exponent: 18}, true
	case persist.ChainDungeon:
		return Config{Chain: chain, Slug: "dungeon", Symbol: "DGN", Denom: "udgn", Exponent: 6}, true
	}
	return Config{}, false
}

type bbToken struct {
	TokenID    string `json:"token_id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	Listed     bool   `json:"listed"`
	ListPrice  string `json:"list_price"`
	Collection struct {
		Address    string `json:"address"`
		Name       string `json:"name"`
		FloorPrice string `json:"floor_price"`
	} `json:"collection"`
	Attributes []common.RawTrait `json:"attributes"`
}

// Provider fetches listed NFTs and offers from Backbone for one chain.
type Provider struct {
	cfg     Config
	apiURL  string
	retryer *retry.Retryer
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.OffersFetcher = (*Provider)(nil)

func NewProvider(cfg Config, retryer *retry.Retryer, apiURL string) *Provider {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if retryer == nil {
		retryer = retry.New(nil)
	}
	return &Provider{cfg: cfg, apiURL: apiURL, retryer: retryer}
}

func (p *Provider) Platform() string {
	return fmt.Sprintf("Backbone Labs (%s)", p.cfg.Chain)
}

// GetNFTsByWalletAddress returns the address's escrowed marketplace listings.
// Wallet-held tokens come from the chain's LCD adapter; the combined provider
// merges the two views.
func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	for offset := 0; ; offset += pageSize {
		u := fmt.Sprintf("%s/%s/nfts?owner=%s&listed=true&limit=%d&offset=%d", p.apiURL, p.cfg.Slug, address, pageSize, offset)

		var page struct {
			NFTs []bbToken `json:"nfts"`
		}
		if err := p.getJSON(ctx, u, &page); err != nil {
			if offset > 0 {
				return records, nil
			}
			return nil, err
		}

		for _, t := range page.NFTs {
			records = append(records, p.tokenToRecord(t, address, prices))
		}
		if len(page.NFTs) < pageSize {
			return records, nil
		}
	}
}

func (p *Provider) tokenToRecord(t bbToken, owner persist.Address, prices price.Table) persist.NFTRecord {
	rec := persist.NFTRecord{
		TokenIdentifiers: persist.TokenIdentifiers{
			Contract: persist.Address(t.Collection.Address),
			TokenID:  t.TokenID,
		},
		Name:           t.Name,
		Chain:          p.cfg.Chain,
		CollectionName: t.Collection.Name,
		ImageURL:       util.IPFSToGateway(t.Image),
		Traits:         common.NormalizeTraits(t.Attributes),
		SourceAddress:  owner,
	}
	if t.Listed && t.ListPrice != "" {
		rec.Listed = true
		rec.ListPrice = p.priceSnapshot(t.ListPrice, prices)
	}
	if t.Collection.FloorPrice != "" {
		rec.Floor = p.priceSnapshot(t.Collection.FloorPrice, prices)
	}
	return rec
}

func (p *Provider) priceSnapshot(raw string, prices price.Table) *persist.PriceSnapshot {
	amount := persist.FormatAmount(raw, p.cfg.Exponent)
	return &persist.PriceSnapshot{
		Amount:    amount,
		AmountUSD: amount * prices.USD(p.cfg.Symbol),
		Denom:     p.cfg.Denom,
		Symbol:    p.cfg.Symbol,
	}
}

// GetOffersByWalletAddress fetches outstanding offers made by address.
func (p *Provider) GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error) {
	u := fmt.Sprintf("%s/%s/offers?maker=%s", p.apiURL, p.cfg.Slug, address)

	var body struct {
		Offers []struct {
			Amount     string `json:"amount"`
			Collection struct {
				Address string `json:"address"`
				Name    string `json:"name"`
				Image   string `json:"image"`
			} `json:"collection"`
		} `json:"offers"`
	}
	if err := p.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]persist.Offer, 0, len(body.Offers))
	for _, o := range body.Offers {
		snap := p.priceSnapshot(o.Amount, prices)
		out = append(out, persist.Offer{
			Amount:    snap.Amount,
			Symbol:    snap.Symbol,
			AmountUSD: snap.AmountUSD,
			Collection: persist.OfferCollection{
				Name:  o.Collection.Name,
				Image: util.IPFSToGateway(o.Collection.Image),
			},
			Link: fmt.Sprintf("https://app.backbonelabs.io/necropolis/collections/%s", o.Collection.Address),
		})
	}
	return out, nil
}

func (p *Provider) getJSON(ctx context.Context, u string, out any) error {
	resp, err := p.retryer.DoRelayed(ctx, retry.RequestSpec{Method: http.MethodGet, URL: u})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return util.GetErrFromResp(resp)
	}
	return util.UnmarshallBody(out, resp.Body)
}
