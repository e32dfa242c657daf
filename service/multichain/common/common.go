// Package common holds the fetcher contracts every chain adapter implements
// and the raw upstream shapes shared between adapters.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
	"github.com/cosmofolio/go-cosmofolio/service/price"
)

// HoldingsFetcher fetches every NFT held by an address, wallet-held and
// listed alike. Partial results are first-class: a single page or address
// failing must not abort the rest.
type HoldingsFetcher interface {
	GetNFTsByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.NFTRecord, error)
}

// BalanceFetcher fetches the fungible balances of an address.
type BalanceFetcher interface {
	GetBalancesByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.AssetBalance, error)
}

// TokenMetadataFetcher fetches one NFT by its identifiers, used to backfill
// tokens discovered only through a staking query.
type TokenMetadataFetcher interface {
	GetNFTByTokenIdentifiers(ctx context.Context, ti persist.TokenIdentifiers, prices price.Table) (persist.NFTRecord, error)
}

// StakedTokenIDFetcher resolves the token IDs an address has staked into a
// DAO voting contract.
type StakedTokenIDFetcher interface {
	GetStakedTokenIDs(ctx context.Context, daoContract persist.Address, address persist.Address) ([]string, error)
}

// OffersFetcher fetches the outstanding offers an address has made on one
// marketplace platform.
type OffersFetcher interface {
	Platform() string
	GetOffersByWalletAddress(ctx context.Context, address persist.Address, prices price.Table) ([]persist.Offer, error)
}

// RawTrait tolerates the two attribute shapes upstreams use
// (trait_type/value vs name/value).
type RawTrait struct {
	TraitType string          `json:"trait_type"`
	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
}

// NormalizeTraits maps raw upstream attributes onto the canonical shape.
func NormalizeTraits(raw []RawTrait) []persist.Trait {
	if len(raw) == 0 {
		return nil
	}
	out := make([]persist.Trait, 0, len(raw))
	for _, t := range raw {
		name := t.TraitType
		if name == "" {
			name = t.Name
		}
		if name == "" {
			continue
		}
		out = append(out, persist.Trait{Name: name, Value: rawValueToString(t.Value)})
	}
	return out
}

func rawValueToString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.Trim(string(v), `"`)
}

// ErrProviderTokenNotFound is returned when a token lookup finds nothing.
type ErrProviderTokenNotFound struct {
	Chain persist.Chain
	Token persist.TokenIdentifiers
}

func (e ErrProviderTokenNotFound) Error() string {
	return fmt.Sprintf("%s not found on %s", e.Token, e.Chain)
}
