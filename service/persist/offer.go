package persist

import "sort"

// OfferCollection is the collection an offer was made against.
type OfferCollection struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Offer is one outstanding marketplace offer made by a tracked address.
type Offer struct {
	Amount     float64         `json:"amount"`
	Symbol     string          `json:"symbol"`
	AmountUSD  float64         `json:"amount_usd"`
	Collection OfferCollection `json:"collection"`
	Link       string          `json:"link"`
}

// PlatformOffers groups a platform's offers with their aggregate USD value.
type PlatformOffers struct {
	Platform string  `json:"platform"`
	TotalUSD float64 `json:"total_usd"`
	Offers   []Offer `json:"offers"`
}

// OffersSnapshot is the full cross-platform offer view. Platforms are sorted
// descending by aggregate value and TotalUSD is the sum of all platform
// aggregates, recomputed wholesale on every fetch cycle.
type OffersSnapshot struct {
	Platforms []PlatformOffers `json:"platforms"`
	TotalUSD  float64          `json:"total_usd"`
}

// BuildOffersSnapshot groups offers by platform, sums each group and computes
// the grand total.
func BuildOffersSnapshot(byPlatform map[string][]Offer) OffersSnapshot {
	snap := OffersSnapshot{Platforms: make([]PlatformOffers, 0, len(byPlatform))}
	for platform, offers := range byPlatform {
		p := PlatformOffers{Platform: platform, Offers: offers}
		for _, o := range offers {
			p.TotalUSD += o.AmountUSD
		}
		snap.Platforms = append(snap.Platforms, p)
		snap.TotalUSD += p.TotalUSD
	}
	sort.SliceStable(snap.Platforms, func(i, j int) bool {
		return snap.Platforms[i].TotalUSD > snap.Platforms[j].TotalUSD
	})
	return snap
}
