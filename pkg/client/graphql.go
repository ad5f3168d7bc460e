package client

import (
	"encoding/json"
	"strings"

	"github.com/Sternrassler/tutti-client/pkg/listing"
)

// searchQuery is the GraphQL document sent with every page request.
const searchQuery = `
query SearchListingsByConstraints($query: String, $constraints: ListingSearchConstraints, $category: ID, $first: Int!, $offset: Int!, $sort: ListingSortMode!, $direction: SortDirection!) {
  searchListingsByQuery(
    query: $query
    constraints: $constraints
    category: $category
  ) {
    listings(first: $first, offset: $offset, sort: $sort, direction: $direction) {
      totalCount
      edges {
        node {
          listingID
          title
          body
          timestamp
          formattedPrice
          sellerInfo {
            alias
          }
          thumbnail {
            normalRendition: rendition(width: 235, height: 167) {
              src
            }
          }
        }
      }
    }
  }
}
`

// graphQLRequest is the POST body of a page request.
type graphQLRequest struct {
	Query     string          `json:"query"`
	Variables searchVariables `json:"variables"`
}

// searchVariables always serializes constraints and category as null.
type searchVariables struct {
	Query       string  `json:"query"`
	Constraints *string `json:"constraints"`
	Category    *string `json:"category"`
	First       int     `json:"first"`
	Offset      int     `json:"offset"`
	Direction   string  `json:"direction"`
	Sort        string  `json:"sort"`
}

func newSearchRequest(query string, offset int) graphQLRequest {
	return graphQLRequest{
		Query: searchQuery,
		Variables: searchVariables{
			Query:     query,
			First:     listing.PageSize,
			Offset:    offset,
			Direction: "DESCENDING",
			Sort:      "TIMESTAMP",
		},
	}
}

// graphQLResponse is the response envelope.
type graphQLResponse struct {
	Data   *searchData     `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type searchData struct {
	SearchListingsByQuery struct {
		Listings struct {
			TotalCount int `json:"totalCount"`
			Edges      []struct {
				Node listingNode `json:"node"`
			} `json:"edges"`
		} `json:"listings"`
	} `json:"searchListingsByQuery"`
}

type listingNode struct {
	ListingID      string  `json:"listingID"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	Timestamp      string  `json:"timestamp"`
	FormattedPrice *string `json:"formattedPrice"`
	SellerInfo     struct {
		Alias string `json:"alias"`
	} `json:"sellerInfo"`
	Thumbnail *struct {
		NormalRendition *struct {
			Src string `json:"src"`
		} `json:"normalRendition"`
	} `json:"thumbnail"`
}

func (n listingNode) toListing() listing.Listing {
	l := listing.Listing{
		ID:             n.ListingID,
		Title:          n.Title,
		Body:           n.Body,
		Timestamp:      n.Timestamp,
		FormattedPrice: n.FormattedPrice,
		SellerAlias:    n.SellerInfo.Alias,
	}
	if n.Thumbnail != nil && n.Thumbnail.NormalRendition != nil {
		src := n.Thumbnail.NormalRendition.Src
		l.ThumbnailURL = &src
	}
	return l
}

// serverErrors returns the server-reported error text, or "" when the
// envelope carries no errors.
func (r *graphQLResponse) serverErrors() string {
	raw := strings.TrimSpace(string(r.Errors))
	if raw == "" || raw == "null" || raw == "[]" {
		return ""
	}

	var list []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Errors, &list); err == nil {
		messages := make([]string, 0, len(list))
		for _, e := range list {
			if e.Message != "" {
				messages = append(messages, e.Message)
			}
		}
		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
	}
	return raw
}

// page maps the envelope's data onto a listing.Page.
func (d *searchData) page() *listing.Page {
	src := d.SearchListingsByQuery.Listings
	listings := make([]listing.Listing, 0, len(src.Edges))
	for _, edge := range src.Edges {
		listings = append(listings, edge.Node.toListing())
	}
	return &listing.Page{
		TotalCount: src.TotalCount,
		Listings:   listings,
	}
}
