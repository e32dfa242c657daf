package persist

import "fmt"

// TokenIdentifiers uniquely identify one NFT instance. The source address is
// deliberately NOT part of identity: the same physical token can be
// discovered by both a wallet-held query and a staked query, and those two
// views must merge into one record.
type TokenIdentifiers struct {
	Contract Address `json:"contract"`
	TokenID  string  `json:"token_id"`
}

// Key returns the canonical merge key for the token.
func (t TokenIdentifiers) Key() string {
	return fmt.Sprintf("%s|%s", t.Contract, t.TokenID)
}

func (t TokenIdentifiers) String() string {
	return fmt.Sprintf("token(contract=%s, id=%s)", t.Contract, t.TokenID)
}

// Trait is one normalized attribute of an NFT. Upstreams disagree on field
// names (attributes vs traits, trait_type vs name); adapters map both onto
// this shape.
type Trait struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DenomAmount is one leg of a multi-denom price breakdown.
type DenomAmount struct {
	Denom  string  `json:"denom"`
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

// PriceSnapshot is a point-in-time valuation in display units.
type PriceSnapshot struct {
	Amount    float64       `json:"amount"`
	AmountUSD float64       `json:"amount_usd"`
	Denom     string        `json:"denom"`
	Symbol    string        `json:"symbol"`
	Breakdown []DenomAmount `json:"breakdown,omitempty"`
}

// NFTRecord is the canonical view of one NFT instance.
type NFTRecord struct {
	TokenIdentifiers
	Name           string         `json:"name"`
	Chain          Chain          `json:"chain"`
	CollectionName string         `json:"collection_name"`
	ImageURL       string         `json:"image_url"`
	Listed         bool           `json:"listed"`
	ListPrice      *PriceSnapshot `json:"list_price,omitempty"`
	DAOStaked      bool           `json:"dao_staked"`
	DAOName        string         `json:"dao_name,omitempty"`
	DAOAddress     Address        `json:"dao_address,omitempty"`
	RarityRank     int            `json:"rarity_rank,omitempty"`
	Traits         []Trait        `json:"traits,omitempty"`
	Floor          *PriceSnapshot `json:"floor,omitempty"`
	HighestOffer   *PriceSnapshot `json:"highest_offer,omitempty"`
	// SourceAddress records which tracked address produced the record. It is
	// informational only and never part of identity.
	SourceAddress Address `json:"source_address"`
}

// ValueUSD is the record's valuation proxy: its listing price when listed,
// otherwise the collection floor.
func (r NFTRecord) ValueUSD() float64 {
	if r.Listed && r.ListPrice != nil {
		return r.ListPrice.AmountUSD
	}
	if r.Floor != nil {
		return r.Floor.AmountUSD
	}
	return 0
}
