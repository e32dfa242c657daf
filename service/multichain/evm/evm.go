// Package evm is the Forma sidechain adapter. Native balances come straight
// from an RPC node via ethclient; NFT holdings come from the chain's
// Blockscout-style indexer.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain/common"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/util"
)

const (
	defaultRPCURL     = "https://rpc.forma.art"
	defaultIndexerURL = "https://explorer.forma.art/api/v2"

	nativeSymbol   = "TIA"
	nativeDecimals = 18
	balanceTimeout = 15 * time.Second
)

// Provider is the Forma adapter.
type Provider struct {
	ethClient  *ethclient.Client
	indexerURL string
	httpClient *http.Client
}

var _ common.HoldingsFetcher = (*Provider)(nil)
var _ common.BalanceFetcher = (*Provider)(nil)

// NewProvider dials the Forma RPC node. Empty URLs select mainnet defaults.
func NewProvider(ctx context.Context, httpClient *http.Client, rpcURL, indexerURL string) (*Provider, error) {
	if rpcURL == "" {
		rpcURL = defaultRPCURL
	}
	if indexerURL == "" {
		indexerURL = defaultIndexerURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial forma rpc: %w", err)
	}
	return &Provider{ethClient: ec, indexerURL: indexerURL, httpClient: httpClient}, nil
}

// Close releases the underlying RPC connection.
func (p *Provider) Close() {
	p.ethClient.Close()
}

// GetBalancesByWalletAddress fetches the native balance. Failure degrades to
// a zero contribution.
func (p *Provider) GetBalancesByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.AssetBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()

	bal, err := p.ethClient.BalanceAt(ctx, ethcommon.HexToAddress(address.String()), nil)
	if err != nil {
		logger.For(ctx).WithError(err).Warnf("failed to fetch forma balance for %s", address)
		return nil, nil
	}
	if bal.Sign() == 0 {
		return nil, nil
	}

	asset := persist.AssetBalance{
		Symbol:      nativeSymbol,
		Amount:      new(big.Int).Set(bal).String(),
		Decimals:    nativeDecimals,
		Denom:       "atia",
		IsNative:    true,
		OriginChain: persist.ChainForma,
	}
	asset.Derive(prices.USD(nativeSymbol))
	return []persist.AssetBalance{asset}, nil
}

type indexerNFTPage struct {
	Items []struct {
		ID       string `json:"id"`
		ImageURL string `json:"image_url"`
		Metadata struct {
			Name       string            `json:"name"`
			Attributes []common.RawTrait `json:"attributes"`
		} `json:"metadata"`
		Token struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"token"`
	} `json:"items"`
	NextPageParams map[string]json.RawMessage `json:"next_page_params"`
}

// GetNFTsByWalletAddress pages the indexer's NFT endpoint until it reports no
// next page.
func (p *Provider) GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error) {
	var records []persist.NFTRecord
	u := fmt.Sprintf("%s/addresses/%s/nft?type=ERC-721", p.indexerURL, address)
	for u != "" {
		var page indexerNFTPage
		if err := p.getJSON(ctx, u, &page); err != nil {
			if len(records) > 0 {
				logger.For(ctx).WithError(err).Warnf("forma nft page failed for %s", address)
				return records, nil
			}
			return nil, err
		}

		for _, item := range page.Items {
			name := item.Metadata.Name
			if name == "" {
				name = fmt.Sprintf("%s #%s", item.Token.Name, item.ID)
			}
			records = append(records, persist.NFTRecord{
				TokenIdentifiers: persist.TokenIdentifiers{
					Contract: persist.Address(item.Token.Address),
					TokenID:  item.ID,
				},
				Name:           name,
				Chain:          persist.ChainForma,
				CollectionName: item.Token.Name,
				ImageURL:       util.IPFSToGateway(item.ImageURL),
				Traits:         common.NormalizeTraits(item.Metadata.Attributes),
				SourceAddress:  address,
			})
		}

		u = nextPageURL(p.indexerURL, address, page.NextPageParams)
	}
	return records, nil
}

func nextPageURL(base string, address persist.Address, params map[string]json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	u := fmt.Sprintf("%s/addresses/%s/nft?type=ERC-721", base, address)
	for k, raw := range params {
		// numbers stay in their JSON text form; %v on a decoded float64
		// would render large token ids in scientific notation
		v := string(raw)
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			v = s
		}
		u += "&" + k + "=" + url.QueryEscape(v)
	}
	return u
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
