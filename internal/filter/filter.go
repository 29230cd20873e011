// Package filter applies user-configured criteria to normalized listings.
package filter

import "flatwatch/internal/model"

// Criteria is the process-wide set of acceptance rules. A nil field means
// "no constraint on that field"; it is never interpreted as zero.
// Criteria are read-only during a cycle and may change between cycles.
type Criteria struct {
	MaxPrice *int64
	MinRooms *int
}

// Accepts reports whether l satisfies every set criterion.
// Bounds are inclusive: price == MaxPrice passes.
func Accepts(l model.Listing, c Criteria) bool {
	if c.MaxPrice != nil && l.Price > *c.MaxPrice {
		return false
	}
	if c.MinRooms != nil && l.Rooms < *c.MinRooms {
		return false
	}
	return true
}
