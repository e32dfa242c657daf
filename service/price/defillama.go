package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const llamaAPIBaseURL = "https://coins.llama.fi/prices/current/"

// DefiLlama addresses coins as coingecko:<id>, so the same id map applies.
type DefiLlamaService struct {
	hc *http.Client
}

func NewDefiLlamaService(httpClient *http.Client) *DefiLlamaService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DefiLlamaService{httpClient}
}

func (s *DefiLlamaService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	coinToSymbol := make(map[string]string, len(symbols))
	coins := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if id, ok := symbolToGeckoID[sym]; ok {
			coin := "coingecko:" + id
			coinToSymbol[coin] = sym
			coins = append(coins, coin)
		}
	}
	if len(coins) == 0 {
		return Table{}, nil
	}

	u := llamaAPIBaseURL + strings.Join(coins, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("defillama current prices: %s", resp.Status)
	}

	var body struct {
		Coins map[string]struct {
			Price  float64 `json:"price"`
			Symbol string  `json:"symbol"`
		} `json:"coins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	t := make(Table, len(body.Coins))
	for coin, quote := range body.Coins {
		if sym, ok := coinToSymbol[coin]; ok {
			t[sym] = quote.Price
		}
	}
	return t, nil
}
