// Package superbolt is the Neutron adapter, backed by the Superbolt
// marketplace GraphQL API.
package superbolt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/machinebox/graphql"

	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/util"
)

const (
	defaultEndpoint = "https://api.superbolt.wtf/api/graphql"
	pageSize        = 100
	ntrnExponent    = 6
)

const walletNFTsQuery = `
query WalletNfts($owner: String!, $limit: Int!, $offset: Int!) {
  nfts(owner: $owner, limit: $limit, offset: $offset) {
    tokenId
    name
    image
    inSale
    salePrice
    collection { address name }
    attributes { trait_type value }
  }
}`

const offersQuery = `
query WalletOffers($maker: String!) {
  offers(maker: $maker) {
    amount
    denom
    collection { address name image }
  }
}`

// Provider is the Superbolt adapter for Neutron.
type Provider struct {
	client *graphql.Client
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.OffersFetcher = (*Provider)(nil)

func NewProvider(httpClient *http.Client, endpoint string) *Provider {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	opts := []graphql.ClientOption{}
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	return &Provider{client: graphql.NewClient(endpoint, opts...)}
}

func (p *Provider) Platform() string { return "Superbolt" }

func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	for offset := 0; ; offset += pageSize {
		req := graphql.NewRequest(walletNFTsQuery)
		req.Var("owner", address.String())
		req.Var("limit", pageSize)
		req.Var("offset", offset)

		var resp struct {
			NFTs []struct {
				TokenID    string `json:"tokenId"`
				Name       string `json:"name"`
				Image      string `json:"image"`
				InSale     bool   `json:"inSale"`
				SalePrice  string `json:"salePrice"`
				Collection struct {
					Address string `json:"address"`
					Name    string `json:"name"`
				} `json:"collection"`
				Attributes []common.RawTrait `json:"attributes"`
			} `json:"nfts"`
		}
		if err := p.client.Run(ctx, req, &resp); err != nil {
			if offset > 0 {
				return records, nil
			}
			return nil, err
		}

		for _, n := range resp.NFTs {
			rec := persist.NFTRecord{
				TokenIdentifiers: persist.TokenIdentifiers{
					Contract: persist.Address(n.Collection.Address),
					TokenID:  n.TokenID,
				},
				Name:           n.Name,
				Chain:          persist.ChainNeutron,
				CollectionName: n.Collection.Name,
				ImageURL:       util.IPFSToGateway(n.Image),
				Traits:         common.NormalizeTraits(n.Attributes),
				SourceAddress:  address,
			}
			if n.InSale && n.SalePrice != "" {
				amount := persist.FormatAmount(n.SalePrice, ntrnExponent)
				rec.Listed = true
				rec.ListPrice = &persist.PriceSnapshot{
					Amount:    amount,
					AmountUSD: amount * prices.USD("NTRN"),
					Denom:     "untrn",
					Symbol:    "NTRN",
				}
			}
			records = append(records, rec)
		}
		if len(resp.NFTs) < pageSize {
			return records, nil
		}
	}
}

func (p *Provider) GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error) {
	req := graphql.NewRequest(offersQuery)
	req.Var("maker", address.String())

	var resp struct {
		Offers []struct {
			Amount     string `json:"amount"`
			Denom      string `json:"denom"`
			Collection struct {
				Address string `json:"address"`
				Name    string `json:"name"`
				Image   string `json:"image"`
			} `json:"collection"`
		} `json:"offers"`
	}
	if err := p.client.Run(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := make([]persist.Offer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		amount := persist.FormatAmount(o.Amount, ntrnExponent)
		out = append(out, persist.Offer{
			Amount:    amount,
			Symbol:    "NTRN",
			AmountUSD: amount * prices.USD("NTRN"),
			Collection: persist.OfferCollection{
				Name:  o.Collection.Name,
				Image: util.IPFSToGateway(o.Collection.Image),
			},
			Link: fmt.Sprintf("https://app.superbolt.wtf/browse/%s", o.Collection.Address),
		})
	}
	return out, nil
}
