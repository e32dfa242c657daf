package multichain

import (
	"sort"

	"github.com/cosmofolio/go-cosmofolio/service/persist"
)

// SortCriterion selects the deterministic ordering recomputed after every
// merge, independent of task arrival order.
type SortCriterion int

const (
	// SortByValueDesc orders by USD valuation, highest first.
	SortByValueDesc SortCriterion = iota
	// SortByName orders alphabetically by token name.
	SortByName
	// SortByChain groups by chain, then name.
	SortByChain
)

// MergeRecords merges incoming into existing keyed by (contract, tokenId).
// The same physical token discovered by both a wallet-held query and a
// staked query collapses into one record: boolean flags OR together, DAO
// fields from the later record override when set, and listing/offer/floor
// data survives from whichever side has it. Output preserves insertion order
// of first appearance; callers re-sort per the active criterion before
// surfacing.
func MergeRecords(existing, incoming []persist.NFTRecord) []persist.NFTRecord {
	byKey := make(map[string]int, len(existing)+len(incoming))
	out := make([]persist.NFTRecord, 0, len(existing)+len(incoming))

	for _, batch := range [][]persist.NFTRecord{existing, incoming} {
		for _, rec := range batch {
			key := rec.Key()
			i, seen := byKey[key]
			if !seen {
				byKey[key] = len(out)
				out = append(out, rec)
				continue
			}
			out[i] = mergeRecord(out[i], rec)
		}
	}
	return out
}

func mergeRecord(base, next persist.NFTRecord) persist.NFTRecord {
	base.Listed = base.Listed || next.Listed
	if base.ListPrice == nil {
		base.ListPrice = next.ListPrice
	}
	if base.HighestOffer == nil {
		base.HighestOffer = next.HighestOffer
	}
	if base.Floor == nil {
		base.Floor = next.Floor
	}

	if next.DAOStaked {
		base.DAOStaked = true
	}
	if next.DAOName != "" {
		base.DAOName = next.DAOName
	}
	if next.DAOAddress != "" {
		base.DAOAddress = next.DAOAddress
	}

	if base.Name == "" {
		base.Name = next.Name
	}
	if base.CollectionName == "" {
		base.CollectionName = next.CollectionName
	}
	if base.ImageURL == "" {
		base.ImageURL = next.ImageURL
	}
	if base.RarityRank == 0 {
		base.RarityRank = next.RarityRank
	}
	if len(base.Traits) == 0 {
		base.Traits = next.Traits
	}
	if base.SourceAddress == "" {
		base.SourceAddress = next.SourceAddress
	}
	return base
}

// RemoveByAddress drops every record produced by the removed address.
// remainingForChain is the number of addresses still tracked for the chain
// after removal: when it reaches zero, the chain's staked records are purged
// too, because staked-NFT attribution cannot be re-verified once no address
// remains. That purge is a documented heuristic, not a guaranteed-correct
// invariant: a staked token could in principle belong to a still-tracked
// address on another key and be purged anyway.
func RemoveByAddress(records []persist.NFTRecord, chain persist.Chain, address persist.Address, remainingForChain int) []persist.NFTRecord {
	out := make([]persist.NFTRecord, 0, len(records))
	for _, rec := range records {
		if rec.Chain == chain && rec.SourceAddress == address {
			continue
		}
		if rec.Chain == chain && rec.DAOStaked && remainingForChain == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// SortRecords orders records deterministically per the criterion.
func SortRecords(records []persist.NFTRecord, by SortCriterion) {
	switch by {
	case SortByName:
		sort.SliceStable(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	case SortByChain:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].Chain != records[j].Chain {
				return records[i].Chain < records[j].Chain
			}
			return records[i].Name < records[j].Name
		})
	default:
		sort.SliceStable(records, func(i, j int) bool { return records[i].ValueUSD() > records[j].ValueUSD() })
	}
}

// FilterByChain returns the records on chain.
func FilterByChain(records []persist.NFTRecord, chain persist.Chain) []persist.NFTRecord {
	out := make([]persist.NFTRecord, 0)
	for _, rec := range records {
		if rec.Chain == chain {
			out = append(out, rec)
		}
	}
	return out
}
