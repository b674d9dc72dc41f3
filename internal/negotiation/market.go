package negotiation

import (
	"math"
	"sort"
)

// Comparable is a similar listing used as market evidence.
type Comparable struct {
	ListingID string    `json:"listing_id,omitempty"`
	Price     float64   `json:"price"`
	Condition Condition `json:"condition"`
	Sold      bool      `json:"sold"`
}

// MarketStats aggregates comparable prices.
type MarketStats struct {
	AvgPriceSold      float64 `json:"avg_price_sold"`
	MedianPriceSold   float64 `json:"median_price_sold"`
	AvgTimeToSellDays float64 `json:"avg_time_to_sell_days"`
	TotalComps        int     `json:"total_comps_found"`
}

// Product is the listing as presented to decision sources.
type Product struct {
	Title       string    `json:"title"`
	AskingPrice float64   `json:"asking_price"`
	Condition   Condition `json:"condition"`
	Extras      []string  `json:"extras,omitempty"`
}

// MarketContext is passed through to decision sources unchanged. The loop
// neither computes nor validates it.
type MarketContext struct {
	Product Product      `json:"product"`
	Comps   []Comparable `json:"platform_comps"`
	Stats   MarketStats  `json:"platform_stats"`
}

const defaultDaysToSell = 4.2

// SyntheticMarket fabricates comparables at fixed fractions of the asking
// price for listings with no real market data.
func SyntheticMarket(l Listing) MarketContext {
	ask := l.AskingPrice
	comps := []Comparable{
		{Price: math.Trunc(ask * 0.85), Condition: ConditionGood, Sold: true},
		{Price: math.Trunc(ask * 0.88), Condition: ConditionLikeNew, Sold: true},
		{Price: math.Trunc(ask * 0.90), Condition: ConditionGood, Sold: true},
		{Price: math.Trunc(ask * 0.92), Condition: ConditionLikeNew, Sold: true},
	}
	return MarketContext{
		Product: productOf(l),
		Comps:   comps,
		Stats: MarketStats{
			AvgPriceSold:      math.Trunc(ask * 0.87),
			MedianPriceSold:   math.Trunc(ask * 0.88),
			AvgTimeToSellDays: defaultDaysToSell,
			TotalComps:        len(comps),
		},
	}
}

// MarketFromComparables builds a context from real comparables. Only sold
// comparables count toward the stats; with none sold the stats are zero.
func MarketFromComparables(l Listing, comps []Comparable) MarketContext {
	m := MarketContext{
		Product: productOf(l),
		Comps:   append([]Comparable(nil), comps...),
		Stats:   MarketStats{TotalComps: len(comps)},
	}
	var prices []float64
	for _, c := range comps {
		if c.Sold {
			prices = append(prices, c.Price)
		}
	}
	if len(prices) == 0 {
		return m
	}
	sort.Float64s(prices)
	var sum float64
	for _, p := range prices {
		sum += p
	}
	m.Stats.AvgPriceSold = roundCents(sum / float64(len(prices)))
	m.Stats.MedianPriceSold = prices[len(prices)/2]
	m.Stats.AvgTimeToSellDays = defaultDaysToSell
	return m
}

func productOf(l Listing) Product {
	return Product{
		Title:       l.Title,
		AskingPrice: l.AskingPrice,
		Condition:   l.Condition,
		Extras:      append([]string(nil), l.Extras...),
	}
}
