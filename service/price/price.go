// Package price resolves USD prices for the symbols the portfolio values
// holdings in. Sources are independent oracles; a cached, fallback-chained
// service fronts them.
package price

import (
	"context"
	"strings"
)

// Table maps an uppercase symbol to its USD price.
type Table map[string]float64

// USD returns the price for symbol, 0 when unknown.
func (t Table) USD(symbol string) float64 {
	return t[strings.ToUpper(symbol)]
}

// Merge overlays other onto t, keeping t's entries on conflict.
func (t Table) Merge(other Table) {
	for sym, p := range other {
		if _, ok := t[sym]; !ok {
			t[sym] = p
		}
	}
}

// Service resolves USD prices for a symbol set.
type Service interface {
	Prices(ctx context.Context, symbols ...string) (Table, error)
}

// FallbackService queries Primary and fills symbols it could not resolve from
// Fallback. A total primary failure degrades to the fallback alone.
type FallbackService struct {
	Primary  Service
	Fallback Service
}

func (s FallbackService) Prices(ctx context.Context, symbols ...string) (Table, error) {
	table, err := s.Primary.Prices(ctx, symbols...)
	if err != nil {
		return s.Fallback.Prices(ctx, symbols...)
	}

	missing := make([]string, 0)
	for _, sym := range symbols {
		if _, ok := table[strings.ToUpper(sym)]; !ok {
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return table, nil
	}

	backup, err := s.Fallback.Prices(ctx, missing...)
	if err != nil {
		// partial table is still useful
		return table, nil
	}
	table.Merge(backup)
	return table, nil
}
