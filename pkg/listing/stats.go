package listing

import "slices"

// HistogramBins is the number of buckets in PriceStats.Histogram.
const HistogramBins = 10

// PriceStats summarizes the parsable prices of a listing set.
type PriceStats struct {
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	Histogram []int   `json:"histogram"`
	BinWidth  float64 `json:"bin_width"`
}

// ComputePriceStats builds PriceStats over every listing with a parsable price.
// When all prices are equal every listing lands in the first bin.
func ComputePriceStats(listings []Listing) PriceStats {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if p, ok := l.Price(); ok {
			prices = append(prices, p)
		}
	}

	stats := PriceStats{Histogram: make([]int, HistogramBins)}
	if len(prices) == 0 {
		return stats
	}

	slices.Sort(prices)
	n := len(prices)

	var sum float64
	for _, p := range prices {
		sum += p
	}

	stats.Count = n
	stats.Min = prices[0]
	stats.Max = prices[n-1]
	stats.Mean = sum / float64(n)
	if n%2 == 0 {
		stats.Median = (prices[n/2-1] + prices[n/2]) / 2
	} else {
		stats.Median = prices[n/2]
	}

	if stats.Max == stats.Min {
		stats.Histogram[0] = n
		stats.BinWidth = 1
		return stats
	}

	stats.BinWidth = (stats.Max - stats.Min) / HistogramBins
	for _, p := range prices {
		bin := int((p - stats.Min) / stats.BinWidth)
		if bin >= HistogramBins {
			bin = HistogramBins - 1
		}
		stats.Histogram[bin]++
	}

	return stats
}
