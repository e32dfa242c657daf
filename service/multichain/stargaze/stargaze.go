// Package stargaze is the Stargaze adapter. One GraphQL query returns
// wallet-held and listed tokens together with listing prices, rarity and
// traits, so no REST pagination split is needed.
package stargaze

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/machinebox/graphql"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/util"
)

const (
	defaultGraphQLEndpoint = "https://graphql.mainnet.stargaze-apis.com/graphql"
	pageSize               = 100
	starsExponent          = 6
)

const tokensQuery = `
query OwnedTokens($owner: String!, $limit: Int!, $offset: Int!) {
  tokens(ownerAddrOrName: $owner, limit: $limit, offset: $offset) {
    tokens {
      tokenId
      name
      rarityOrder
      isEscrowed
      collection { contractAddress name floorPrice floorPriceUsd }
      media { url }
      traits { name value }
      listPrice { amount denom symbol amountUsd }
      highestOffer { amount denom symbol amountUsd }
    }
  }
}`

const offersQuery = `
query OffersByMaker($maker: String!) {
  offers(fromAddr: $maker) {
    offers {
      price { amount denom symbol amountUsd }
      collection { contractAddress name media { url } }
    }
  }
}`

type gqlPrice struct {
	Amount    string  `json:"amount"`
	Denom     string  `json:"denom"`
	Symbol    string  `json:"symbol"`
	AmountUsd float64 `json:"amountUsd"`
}

type gqlToken struct {
	TokenID     string `json:"tokenId"`
	Name        string `json:"name"`
	RarityOrder int    `json:"rarityOrder"`
	IsEscrowed  bool   `json:"isEscrowed"`
	Collection  struct {
		ContractAddress string  `json:"contractAddress"`
		Name            string  `json:"name"`
		FloorPrice      string  `json:"floorPrice"`
		FloorPriceUsd   float64 `json:"floorPriceUsd"`
	} `json:"collection"`
	Media struct {
		URL string `json:"url"`
	} `json:"media"`
	Traits       []common.RawTrait `json:"traits"`
	ListPrice    *gqlPrice         `json:"listPrice"`
	HighestOffer *gqlPrice         `json:"highestOffer"`
}

// Provider is the Stargaze GraphQL adapter.
type Provider struct {
	client *graphql.Client
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.OffersFetcher = (*Provider)(nil)

// NewProvider creates a Stargaze adapter. An empty endpoint selects the
// mainnet indexer.
func NewProvider(httpClient *http.Client, endpoint string) *Provider {
	if endpoint == "" {
		endpoint = defaultGraphQLEndpoint
	}
	opts := []graphql.ClientOption{}
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	return &Provider{client: graphql.NewClient(endpoint, opts...)}
}

// Platform names the marketplace for offer aggregation.
func (p *Provider) Platform() string { return "Stargaze" }

// GetNFTsByWalletAddress pages through the owned-tokens query until a short
// page signals the end.
func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	for offset := 0; ; offset += pageSize {
		req := graphql.NewRequest(tokensQuery)
		req.Var("owner", address.String())
		req.Var("limit", pageSize)
		req.Var("offset", offset)

		var resp struct {
			Tokens struct {
				Tokens []gqlToken `json:"tokens"`
			} `json:"tokens"`
		}
		if err := p.client.Run(ctx, req, &resp); err != nil {
			// a later page failing keeps the pages already fetched
			if offset > 0 {
				logger.For(ctx).WithError(err).Warnf("stargaze tokens page at offset %d failed for %s", offset, address)
				return records, nil
			}
			return nil, err
		}

		for _, t := range resp.Tokens.Tokens {
			records = append(records, p.tokenToRecord(t, address, prices))
		}
		if len(resp.Tokens.Tokens) < pageSize {
			return records, nil
		}
	}
}

func (p *Provider) tokenToRecord(t gqlToken, owner persist.Address, prices price.Table) persist.NFTRecord {
	rec := persist.NFTRecord{
		TokenIdentifiers: persist.TokenIdentifiers{
			Contract: persist.Address(t.Collection.ContractAddress),
			TokenID:  t.TokenID,
		},
		Name:           t.Name,
		Chain:          persist.ChainStargaze,
		CollectionName: t.Collection.Name,
		ImageURL:       util.IPFSToGateway(t.Media.URL),
		RarityRank:     t.RarityOrder,
		Traits:         common.NormalizeTraits(t.Traits),
		SourceAddress:  owner,
	}

	if t.ListPrice != nil {
		rec.Listed = true
		rec.ListPrice = gqlPriceToSnapshot(*t.ListPrice, prices)
	}
	if t.HighestOffer != nil {
		rec.HighestOffer = gqlPriceToSnapshot(*t.HighestOffer, prices)
	}
	if t.Collection.FloorPrice != "" {
		floor := persist.FormatAmount(t.Collection.FloorPrice, starsExponent)
		rec.Floor = &persist.PriceSnapshot{
			Amount:    floor,
			AmountUSD: t.Collection.FloorPriceUsd,
			Denom:     "ustars",
			Symbol:    "STARS",
			Breakdown: []persist.DenomAmount{{Denom: "ustars", Symbol: "STARS", Amount: floor}},
		}
		if rec.Floor.AmountUSD == 0 {
			rec.Floor.AmountUSD = floor * prices.USD("STARS")
		}
	}
	return rec
}

func gqlPriceToSnapshot(gp gqlPrice, prices price.Table) *persist.PriceSnapshot {
	symbol := gp.Symbol
	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimPrefix(gp.Denom, "u"))
	}
	amount := persist.FormatAmount(gp.Amount, starsExponent)
	usd := gp.AmountUsd
	if usd == 0 {
		usd = amount * prices.USD(symbol)
	}
	return &persist.PriceSnapshot{Amount: amount, AmountUSD: usd, Denom: gp.Denom, Symbol: symbol}
}

// GetOffersByWalletAddress fetches the outstanding offers address has made.
func (p *Provider) GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error) {
	req := graphql.NewRequest(offersQuery)
	req.Var("maker", address.String())

	var resp struct {
		Offers struct {
			Offers []struct {
				Price      gqlPrice `json:"price"`
				Collection struct {
					ContractAddress string `json:"contractAddress"`
					Name            string `json:"name"`
					Media           struct {
						URL string `json:"url"`
					} `json:"media"`
				} `json:"collection"`
			} `json:"offers"`
		} `json:"offers"`
	}
	if err := p.client.Run(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := make([]persist.Offer, 0, len(resp.Offers.Offers))
	for _, o := range resp.Offers.Offers {
		snap := gqlPriceToSnapshot(o.Price, prices)
		out = append(out, persist.Offer{
			Amount:    snap.Amount,
			Symbol:    snap.Symbol,
			AmountUSD: snap.AmountUSD,
			Collection: persist.OfferCollection{
				Name:  o.Collection.Name,
				Image: util.IPFSToGateway(o.Collection.Media.URL),
			},
			Link: fmt.Sprintf("https://www.stargaze.zone/m/%s/tokens", o.Collection.ContractAddress),
		})
	}
	return out, nil
}

