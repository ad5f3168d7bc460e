package listing

import (
	"slices"
	"strings"
)

// SortMode selects an ordering for a listing set.
type SortMode string

const (
	// SortDefault keeps the server order (newest first).
	SortDefault SortMode = "default"
	SortTitle   SortMode = "title"
	SortPrice   SortMode = "price"
	SortSeller  SortMode = "seller"
)

// Next cycles default → title → price → seller → default.
func (m SortMode) Next() SortMode {
	switch m {
	case SortDefault:
		return SortTitle
	case SortTitle:
		return SortPrice
	case SortPrice:
		return SortSeller
	default:
		return SortDefault
	}
}

// ParseSortMode maps a user supplied name onto a SortMode, falling back to SortDefault.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortTitle:
		return SortTitle
	case SortPrice:
		return SortPrice
	case SortSeller:
		return SortSeller
	default:
		return SortDefault
	}
}

// Sorted returns a copy of listings ordered by mode. The sort is stable so
// equal keys keep server order. Listings without a parsable price sort last.
func Sorted(listings []Listing, mode SortMode) []Listing {
	out := slices.Clone(listings)

	switch mode {
	case SortTitle:
		slices.SortStableFunc(out, func(a, b Listing) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	case SortSeller:
		slices.SortStableFunc(out, func(a, b Listing) int {
			return strings.Compare(strings.ToLower(a.SellerAlias), strings.ToLower(b.SellerAlias))
		})
	case SortPrice:
		slices.SortStableFunc(out, func(a, b Listing) int {
			pa, okA := a.Price()
			pb, okB := b.Price()
			switch {
			case okA && okB:
				switch {
				case pa < pb:
					return -1
				case pa > pb:
					return 1
				}
				return 0
			case okA:
				return -1
			case okB:
				return 1
			}
			return 0
		})
	}

	return out
}

// IndexOf returns the position of the listing with id, or -1.
func IndexOf(listings []Listing, id string) int {
	return slices.IndexFunc(listings, func(l Listing) bool { return l.ID == id })
}
