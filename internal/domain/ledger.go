package domain

import (
	"cmp"
	"slices"
)

// CompareEntries orders ledger entries newest first: by resolved timestamp
// descending, then by ID descending so that among entries sharing a
// timestamp the one created later wins.
func CompareEntries(a, b *PriceEntry) int {
	if c := b.Timestamp.Time().Compare(a.Timestamp.Time()); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// SortEntries sorts entries into ledger order in place.
func SortEntries(entries []*PriceEntry) {
	slices.SortStableFunc(entries, CompareEntries)
}

// LatestEntry returns the entry that heads ledger order, or nil for an empty
// ledger. It is the recomputation rule for an item's current price.
func LatestEntry(entries []*PriceEntry) *PriceEntry {
	var latest *PriceEntry
	for _, e := range entries {
		if latest == nil || CompareEntries(e, latest) < 0 {
			latest = e
		}
	}
	return latest
}

// ApplyEntry copies e onto the item's current-price projection.
func (it *Item) ApplyEntry(e *PriceEntry) {
	it.CurrentPrice = e.Price
	it.Date = e.Timestamp
	it.ReferenceURI = e.ReferenceURI
}
