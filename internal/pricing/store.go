package pricing

import (
	"sort"
	"time"
)

// Store is the local price-point time series, keyed by SKU.
// It is not safe for concurrent use.
type Store struct {
	series map[string][]Point
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{series: make(map[string][]Point)}
}

// Append records a new observation at the end of the item's series.
func (s *Store) Append(sku string, p Point) {
	s.series[sku] = append(s.series[sku], p)
}

// Series returns a copy of the points recorded for sku.
func (s *Store) Series(sku string) []Point {
	pts := s.series[sku]
	if len(pts) == 0 {
		return nil
	}
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}

// Replace sets the whole series for sku. Used when loading persisted state.
func (s *Store) Replace(sku string, pts []Point) {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	s.series[sku] = cp
}

// SKUs returns tracked identifiers in lexical order.
func (s *Store) SKUs() []string {
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountTrackedItems returns the number of distinct SKUs in the store.
func (s *Store) CountTrackedItems() int {
	return len(s.series)
}

// OverCapacity reports whether the tracked SKU count exceeds maxEntries.
// The cap is advisory: nothing is evicted by count.
func (s *Store) OverCapacity(maxEntries int) bool {
	return maxEntries > 0 && len(s.series) > maxEntries
}

// Prune removes points of sku older than now - maxHistoryDays and returns
// how many were removed. The key stays even when the series becomes empty.
func (s *Store) Prune(sku string, now time.Time, maxHistoryDays int) int {
	pts, ok := s.series[sku]
	if !ok {
		return 0
	}
	kept := prunePoints(pts, cutoff(now, maxHistoryDays))
	removed := len(pts) - len(kept)
	s.series[sku] = kept
	return removed
}

// PruneAll prunes every series not named in skip and drops SKUs left
// without points.
func (s *Store) PruneAll(now time.Time, maxHistoryDays int, skip map[string]bool) (removedPoints, removedSKUs int) {
	c := cutoff(now, maxHistoryDays)
	for sku, pts := range s.series {
		if skip[sku] {
			continue
		}
		kept := prunePoints(pts, c)
		removedPoints += len(pts) - len(kept)
		if len(kept) == 0 {
			delete(s.series, sku)
			removedSKUs++
			continue
		}
		s.series[sku] = kept
	}
	return removedPoints, removedSKUs
}

// Oldest returns the earliest timestamp across all series.
func (s *Store) Oldest() (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, pts := range s.series {
		for _, p := range pts {
			if !found || p.Timestamp.Before(oldest) {
				oldest = p.Timestamp
				found = true
			}
		}
	}
	return oldest, found
}

func cutoff(now time.Time, maxHistoryDays int) time.Time {
	return now.Add(-time.Duration(maxHistoryDays) * day)
}

// prunePoints filters in place; timestamps equal to the cutoff are kept.
func prunePoints(pts []Point, c time.Time) []Point {
	kept := pts[:0]
	for _, p := range pts {
		if !p.Timestamp.Before(c) {
			kept = append(kept, p)
		}
	}
	return kept
}
