package persist

import (
	"math/big"
	"sort"
)

// AssetBalance is one fungible-token position on a chain.
type AssetBalance struct {
	Symbol          string  `json:"symbol"`
	Amount          string  `json:"amount"` // raw amount in the minimal denomination
	Decimals        uint8   `json:"decimals"`
	Denom           string  `json:"denom"`
	IsNative        bool    `json:"is_native"`
	OriginChain     Chain   `json:"origin_chain"`
	FormattedAmount float64 `json:"formatted_amount"`
	Price           float64 `json:"price"`
	USDValue        float64 `json:"usd_value"`
}

// Derive fills the computed fields from the raw amount and a unit price.
func (b *AssetBalance) Derive(price float64) {
	b.FormattedAmount = FormatAmount(b.Amount, b.Decimals)
	b.Price = price
	b.USDValue = b.FormattedAmount * price
}

// FormatAmount converts a raw minimal-denomination amount into display units.
func FormatAmount(raw string, decimals uint8) float64 {
	i, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0
	}
	f := new(big.Float).SetInt(i)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, div).Float64()
	return out
}

// ChainBalanceSnapshot is the fungible position set for one chain. Assets are
// kept sorted descending by USD value and TotalValue is their sum.
type ChainBalanceSnapshot struct {
	Chain      Chain          `json:"chain"`
	Assets     []AssetBalance `json:"assets"`
	TotalValue float64        `json:"total_value"`
}

// Normalize drops zero-amount assets, sorts the rest descending by value and
// recomputes the total.
func (s *ChainBalanceSnapshot) Normalize() {
	assets := make([]AssetBalance, 0, len(s.Assets))
	for _, a := range s.Assets {
		if a.FormattedAmount > 0 {
			assets = append(assets, a)
		}
	}
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].USDValue > assets[j].USDValue })
	total := 0.0
	for _, a := range assets {
		total += a.USDValue
	}
	s.Assets = assets
	s.TotalValue = total
}
