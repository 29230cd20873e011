package filter_test

import (
	"testing"

	"flatwatch/internal/filter"
	"flatwatch/internal/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestAccepts_MaxPriceInclusive(t *testing.T) {
	c := filter.Criteria{MaxPrice: int64Ptr(1000)}

	tests := []struct {
		price int64
		want  bool
	}{
		{900, true},
		{1000, true}, // bound is inclusive
		{1001, false},
		{0, true},
	}
	for _, tt := range tests {
		got := filter.Accepts(model.Listing{Price: tt.price}, c)
		if got != tt.want {
			t.Errorf("Accepts(price=%d, max=1000) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestAccepts_UnsetMeansNoConstraint(t *testing.T) {
	// A zero-value Criteria must accept everything, including expensive
	// listings; unset is never treated as zero.
	l := model.Listing{Price: 150000, Rooms: 0}
	if !filter.Accepts(l, filter.Criteria{}) {
		t.Error("empty criteria rejected a listing")
	}
}

func TestAccepts_MinRooms(t *testing.T) {
	c := filter.Criteria{MinRooms: intPtr(3)}

	if filter.Accepts(model.Listing{Rooms: 2}, c) {
		t.Error("2 rooms accepted with MinRooms=3")
	}
	if !filter.Accepts(model.Listing{Rooms: 3}, c) {
		t.Error("3 rooms rejected with MinRooms=3 (bound is inclusive)")
	}
}

func TestAccepts_CombinedCriteria(t *testing.T) {
	c := filter.Criteria{MaxPrice: int64Ptr(30000), MinRooms: intPtr(2)}

	if !filter.Accepts(model.Listing{Price: 25000, Rooms: 3}, c) {
		t.Error("listing satisfying both criteria rejected")
	}
	if filter.Accepts(model.Listing{Price: 25000, Rooms: 1}, c) {
		t.Error("listing failing rooms criterion accepted")
	}
	if filter.Accepts(model.Listing{Price: 31000, Rooms: 3}, c) {
		t.Error("listing failing price criterion accepted")
	}
}
