package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const geckoAPIBaseURL = "https://api.coingecko.com/api/v3"

// Map of symbols to coingecko coin identifiers
var symbolToGeckoID = map[string]string{
	"STARS": "stargaze",
	"OSMO":  "osmosis",
	"INJ":   "injective-protocol",
	"INIT":  "initia",
	"NTRN":  "neutron-3",
	"ATOM":  "cosmos",
	"DGN":   "dungeon",
	"FLIX":  "omniflix-network",
	"TIA":   "celestia",
	"USDC":  "usd-coin",
}

// CoinGeckoService resolves prices from the CoinGecko simple-price endpoint.
type CoinGeckoService struct {
	baseURL *url.URL
	hc      *http.Client
}

func NewCoinGeckoService(httpClient *http.Client) (*CoinGeckoService, error) {
	u, err := url.Parse(geckoAPIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CoinGeckoService{u, httpClient}, nil
}

func (s *CoinGeckoService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	idToSymbol := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if id, ok := symbolToGeckoID[sym]; ok {
			idToSymbol[id] = sym
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Table{}, nil
	}

	u, err := s.baseURL.Parse("simple/price")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko simple price: %s", resp.Status)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	t := make(Table, len(body))
	for id, quote := range body {
		if sym, ok := idToSymbol[id]; ok {
			t[sym] = quote.USD
		}
	}
	return t, nil
}
