// Package listing defines the classified-ad records returned by the tutti.ch
// query API, the per-page result shape, and the closed error taxonomy shared by
// the retrieval pipeline.
package listing

import "net/url"

// PageSize is the number of listings requested per page.
const PageSize = 30

// webBaseURL is where a listing can be opened in a browser.
const webBaseURL = "https://www.tutti.ch/de/vi/"

// Listing is one classified ad.
type Listing struct {
	// ID is stable per ad and usable as a key across re-sorts.
	ID string `json:"id"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// Timestamp is passed through as the server formats it.
	Timestamp string `json:"timestamp"`

	// FormattedPrice is currency-prefixed and locale-formatted (e.g. "CHF 1'250.–").
	FormattedPrice *string `json:"formatted_price,omitempty"`

	SellerAlias string `json:"seller_alias"`

	// ThumbnailURL is the normal rendition of the first image, if any.
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// Page is the result of fetching one offset window of a query.
type Page struct {
	// TotalCount is reported by the server and authoritative for the whole query.
	TotalCount int
	Listings   []Listing
}

// Price returns the parsed numeric price and whether one was present.
func (l Listing) Price() (float64, bool) {
	if l.FormattedPrice == nil {
		return 0, false
	}
	return ParsePrice(*l.FormattedPrice)
}

// WebURL returns the public page for the listing.
func (l Listing) WebURL() string {
	return webBaseURL + url.PathEscape(l.ID)
}

// PageCount returns ceil(totalCount / PageSize) clamped to maxPages.
// maxPages <= 0 means unbounded.
func PageCount(totalCount, maxPages int) int {
	if totalCount <= 0 {
		return 0
	}
	pages := (totalCount + PageSize - 1) / PageSize
	if maxPages > 0 && pages > maxPages {
		return maxPages
	}
	return pages
}
