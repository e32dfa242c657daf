// Package intergaze is the Initia adapter, backed by the Intergaze
// marketplace REST API with offset/limit pagination.
package intergaze

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/util"
)

const (
	defaultAPIURL = "https://api.intergaze-apis.com/api/v1"
	pageSize      = 100
	initExponent  = 6
)

type igToken struct {
	TokenID string `json:"tokenId"`
	Name    string `json:"name"`
	Media   struct {
		URL string `json:"url"`
	} `json:"media"`
	Collection struct {
		ContractAddress string `json:"contractAddress"`
		Name            string `json:"name"`
		FloorPrice      string `json:"floorPrice"`
	} `json:"collection"`
	Traits    []common.RawTrait `json:"traits"`
	ListPrice *struct {
		Amount string `json:"amount"`
		Denom  string `json:"denom"`
	} `json:"listPrice"`
	RarityRank int `json:"rarityRank"`
}

// Provider is the Intergaze adapter for Initia.
type Provider struct {
	apiURL     string
	httpClient *http.Client
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.OffersFetcher = (*Provider)(nil)

func NewProvider(httpClient *http.Client, apiURL string) *Provider {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{apiURL: apiURL, httpClient: httpClient}
}

func (p *Provider) Platform() string { return "Intergaze" }

// GetNFTsByWalletAddress pages the tokens endpoint until a short page.
func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	for offset := 0; ; offset += pageSize {
		u := fmt.Sprintf("%s/profiles/%s/tokens?limit=%d&offset=%d", p.apiURL, address, pageSize, offset)

		var page struct {
			Tokens []igToken `json:"tokens"`
		}
		if err := p.getJSON(ctx, u, &page); err != nil {
			if offset > 0 {
				return records, nil
			}
			return nil, err
		}

		for _, t := range page.Tokens {
			records = append(records, p.tokenToRecord(t, address, prices))
		}
		if len(page.Tokens) < pageSize {
			return records, nil
		}
	}
}

func (p *Provider) tokenToRecord(t igToken, owner persist.Address, prices price.Table) persist.NFTRecord {
	rec := persist.NFTRecord{
		TokenIdentifiers: persist.TokenIdentifiers{
			Contract: persist.Address(t.Collection.ContractAddress),
			TokenID:  t.TokenID,
		},
		Name:           t.Name,
		Chain:          persist.ChainInitia,
		CollectionName: t.Collection.Name,
		ImageURL:       util.IPFSToGateway(t.Media.URL),
		RarityRank:     t.RarityRank,
		Traits:         common.NormalizeTraits(t.Traits),
		SourceAddress:  owner,
	}
	if t.ListPrice != nil {
		amount := persist.FormatAmount(t.ListPrice.Amount, initExponent)
		rec.Listed = true
		rec.ListPrice = &persist.PriceSnapshot{
			Amount:    amount,
			AmountUSD: amount * prices.USD("INIT"),
			Denom:     t.ListPrice.Denom,
			Symbol:    "INIT",
		}
	}
	if t.Collection.FloorPrice != "" {
		floor := persist.FormatAmount(t.Collection.FloorPrice, initExponent)
		rec.Floor = &persist.PriceSnapshot{
			Amount:    floor,
			AmountUSD: floor * prices.USD("INIT"),
			Denom:     "uinit",
			Symbol:    "INIT",
		}
	}
	return rec
}

// GetOffersByWalletAddress fetches outstanding offers made by address.
func (p *Provider) GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error) {
	u := fmt.Sprintf("%s/offers/maker/%s", p.apiURL, address)

	var body struct {
		Offers []struct {
			Price struct {
				Amount string `json:"amount"`
				Denom  string `json:"denom"`
			} `json:"price"`
			Collection struct {
				ContractAddress string `json:"contractAddress"`
				Name            string `json:"name"`
				Media           struct {
					URL string `json:"url"`
				} `json:"media"`
			} `json:"collection"`
		} `json:"offers"`
	}
	if err := p.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	out := make([]persist.Offer, 0, len(body.Offers))
	for _, o := range body.Offers {
		amount := persist.FormatAmount(o.Price.Amount, initExponent)
		out = append(out, persist.Offer{
			Amount:    amount,
			Symbol:    "INIT",
			AmountUSD: amount * prices.USD("INIT"),
			Collection: persist.OfferCollection{
				Name:  o.Collection.Name,
				Image: util.IPFSToGateway(o.Collection.Media.URL),
			},
			Link: fmt.Sprintf("https://intergaze.xyz/m/%s", o.Collection.ContractAddress),
		})
	}
	return out, nil
}

func (p *Provider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return util.GetErrFromResp(resp)
	}
	return util.UnmarshallBody(out, resp.Body)
}
