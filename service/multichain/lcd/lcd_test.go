package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
	"github.com/cosmofolio/go-cosmofolio/service/reqcache"
)

// smartQueryHandler decodes the base64 CW721 query from the URL and routes it
// to the matching fake.
func smartQueryHandler(t *testing.T, route func(query map[string]json.RawMessage) (any, bool)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/smart/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		raw, err := base64.StdEncoding.DecodeString(parts[1])
		require.NoError(t, err)

		var query map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &query))

		out, ok := route(query)
		if !ok {
			http.NotFound(w, r)
			return
		}
		data, err := json.Marshal(out)
		require.NoError(t, err)
		json.NewEncoder(w).Encode(map[string]json.RawMessage{"data": data})
	}
}

func testProvider(srvURL string, collections []CollectionConfig, assets []AssetConfig) *Provider {
	return NewProvider(Config{
		Chain:       persist.ChainOsmosis,
		LCDURL:      srvURL,
		Assets:      assets,
		Collections: collections,
	}, nil, nil, reqcache.New())
}

func TestOwnedTokenIDs_PaginatesUntilShortPage(t *testing.T) {
	firstPage := make([]string, tokensPageSize)
	for i := range firstPage {
		firstPage[i] = fmt.Sprintf("%03d", i)
	}
	lastToken := firstPage[len(firstPage)-1]

	var pages int32
	srv := httptest.NewServer(smartQueryHandler(t, func(query map[string]json.RawMessage) (any, bool) {
		raw, ok := query["tokens"]
		if !ok {
			return nil, false
		}
		var args struct {
			Owner      string `json:"owner"`
			Limit      int    `json:"limit"`
			StartAfter string `json:"start_after"`
		}
		require.NoError(t, json.Unmarshal(raw, &args))
		assert.Equal(t, tokensPageSize, args.Limit)

		atomic.AddInt32(&pages, 1)
		if args.StartAfter == "" {
			return map[string]any{"tokens": firstPage}, true
		}
		assert.Equal(t, lastToken, args.StartAfter)
		return map[string]any{"tokens": []string{"100", "101"}}, true
	}))
	defer srv.Close()

	p := testProvider(srv.URL, nil, nil)
	ids, err := p.ownedTokenIDs(context.Background(), "osmo1contract", "osmo1owner")
	require.NoError(t, err)

	assert.Len(t, ids, tokensPageSize+2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&pages))
}

func TestGetNFTsByWalletAddress(t *testing.T) {
	var infoCalls int32
	srv := httptest.NewServer(smartQueryHandler(t, func(query map[string]json.RawMessage) (any, bool) {
		if _, ok := query["tokens"]; ok {
			return map[string]any{"tokens": []string{"7"}}, true
		}
		if raw, ok := query["nft_info"]; ok {
			atomic.AddInt32(&infoCalls, 1)
			var args struct {
				TokenID string `json:"token_id"`
			}
			require.NoError(t, json.Unmarshal(raw, &args))
			return map[string]any{
				"token_uri": "ipfs://QmMeta/7.json",
				"extension": map[string]any{
					"name":  "Mad Scientist #7",
					"image": "ipfs://QmImage/7.png",
					"attributes": []map[string]any{
						{"trait_type": "Hair", "value": "Wild"},
						{"name": "Lab", "value": "Osmosis"},
					},
				},
			}, true
		}
		return nil, false
	}))
	defer srv.Close()

	coll := []CollectionConfig{{Contract: "osmo1contract", Name: "Mad Scientists"}}
	p := testProvider(srv.URL, coll, nil)

	records, err := p.GetNFTsByWalletAddress(context.Background(), "osmo1owner", price.Table{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "Mad Scientist #7", got.Name)
	assert.Equal(t, "Mad Scientists", got.CollectionName)
	assert.Equal(t, persist.Address("osmo1owner"), got.SourceAddress)
	assert.Equal(t, "https://ipfs.io/ipfs/QmImage/7.png", got.ImageURL)
	require.Len(t, got.Traits, 2)
	assert.Equal(t, persist.Trait{Name: "Hair", Value: "Wild"}, got.Traits[0])
	assert.Equal(t, persist.Trait{Name: "Lab", Value: "Osmosis"}, got.Traits[1])

	// metadata settles in the request cache: refetching hits no upstream
	_, err = p.GetNFTsByWalletAddress(context.Background(), "osmo1owner", price.Table{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&infoCalls))
}

func TestGetStakedTokenIDs(t *testing.T) {
	t.Run("bare array response", func(t *testing.T) {
		srv := httptest.NewServer(smartQueryHandler(t, func(query map[string]json.RawMessage) (any, bool) {
			if _, ok := query["staked_nfts"]; ok {
				return []string{"1", "2"}, true
			}
			return nil, false
		}))
		defer srv.Close()

		p := testProvider(srv.URL, nil, nil)
		ids, err := p.GetStakedTokenIDs(context.Background(), "osmo1dao", "osmo1owner")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, ids)
	})

	t.Run("wrapped tokens response", func(t *testing.T) {
		srv := httptest.NewServer(smartQueryHandler(t, func(query map[string]json.RawMessage) (any, bool) {
			if _, ok := query["staked_nfts"]; ok {
				return map[string]any{"tokens": []string{"3"}}, true
			}
			return nil, false
		}))
		defer srv.Close()

		p := testProvider(srv.URL, nil, nil)
		ids, err := p.GetStakedTokenIDs(context.Background(), "osmo1dao", "osmo1owner")
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, ids)
	})
}

func TestGetBalancesByWalletAddress(t *testing.T) {
	assets := []AssetConfig{
		{Denom: "uosmo", Symbol: "OSMO", Decimals: 6, IsNative: true, OriginChain: persist.ChainOsmosis},
	}

	t.Run("derives display amounts and prices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/cosmos/bank/v1beta1/balances/osmo1owner")
			json.NewEncoder(w).Encode(map[string]any{"balances": []map[string]string{
				{"denom": "uosmo", "amount": "5000000"},
				{"denom": "ibc/unknown", "amount": "999"},
			}})
		}))
		defer srv.Close()

		p := testProvider(srv.URL, nil, assets)
		out, err := p.GetBalancesByWalletAddress(context.Background(), "osmo1owner", price.Table{"OSMO": 2.0})
		require.NoError(t, err)
		require.Len(t, out, 1)

		assert.Equal(t, "OSMO", out[0].Symbol)
		assert.Equal(t, 5.0, out[0].FormattedAmount)
		assert.Equal(t, 10.0, out[0].USDValue)
	})

	t.Run("upstream failure degrades to zero contribution", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		p := testProvider(srv.URL, nil, assets)
		out, err := p.GetBalancesByWalletAddress(context.Background(), "osmo1owner", price.Table{})
		assert.NoError(t, err)
		assert.Nil(t, out)
	})
}
