package scout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zulandar/dealscout/internal/ledger"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/notify"
)

// ErrNoListings is returned when a hunt's search finds nothing.
var ErrNoListings = errors.New("scout: no listings found")

// DefaultTopN is how many listings a hunt negotiates when unspecified.
const DefaultTopN = 5

// Hunt event types, in the order they are emitted.
const (
	EventStatus              = "status"
	EventProductsFound       = "products_found"
	EventNegotiationComplete = "negotiation_complete"
	EventBestDeal            = "best_deal"
	EventComplete            = "complete"
	EventError               = "error"
)

// Event is a hunt progress update.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// HuntOpts describes a multi-seller hunt.
type HuntOpts struct {
	Query     string
	MaxBudget *float64 // search ceiling and buyer budget for every negotiation
	TopN      int
	WatchName string
}

// HuntReport is the outcome of a hunt.
type HuntReport struct {
	ID       string        `json:"id"`
	Query    listing.Query `json:"query"`
	Outcomes []Outcome     `json:"outcomes"`
	Best     *Outcome      `json:"best,omitempty"`
}

// Hunt searches for listings matching opts.Query, negotiates with up to TopN
// sellers in parallel and reports the best deal by savings. emit, if non-nil,
// receives progress events; calls are serialized.
func (s *Service) Hunt(ctx context.Context, opts HuntOpts, emit func(Event)) (*HuntReport, error) {
	var mu sync.Mutex
	send := func(typ string, data map[string]any) {
		if emit == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		emit(Event{Type: typ, Data: data})
	}

	report := &HuntReport{ID: uuid.NewString(), Query: listing.ParseQuery(opts.Query)}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	send(EventStatus, map[string]any{"hunt_id": report.ID, "message": "Searching for relevant products..."})

	filters := report.Query.Filters(topN)
	if b := opts.MaxBudget; b != nil && (filters.MaxPrice == nil || *b < *filters.MaxPrice) {
		filters.MaxPrice = b
	}
	rows, err := listing.Search(s.DB, filters)
	if err != nil {
		send(EventError, map[string]any{"message": err.Error()})
		return nil, err
	}
	if len(rows) == 0 {
		send(EventError, map[string]any{"message": "No products found"})
		return report, ErrNoListings
	}
	send(EventProductsFound, map[string]any{"count": len(rows)})

	n := 0
	tags := ledger.SaveOpts{HuntID: report.ID, WatchName: opts.WatchName}
	outcomes, err := s.batch(ctx, rows, opts.MaxBudget, tags, func(o Outcome) {
		mu.Lock()
		n++
		idx := n
		mu.Unlock()
		send(EventNegotiationComplete, map[string]any{
			"n":                idx,
			"id":               o.ID,
			"listing_id":       o.Result.ListingID,
			"status":           o.Result.Status,
			"negotiated_price": o.Result.NegotiatedPrice,
			"savings":          o.Result.Savings,
		})
	})
	report.Outcomes = outcomes
	if err != nil {
		s.logger().Printf("scout: hunt %s: %v", report.ID, err)
		send(EventError, map[string]any{"message": err.Error()})
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.Result.Status != negotiation.StatusSuccess {
			continue
		}
		if report.Best == nil || o.Result.Savings > report.Best.Result.Savings {
			report.Best = o
		}
	}

	if b := report.Best; b != nil {
		send(EventBestDeal, map[string]any{
			"id":             b.ID,
			"listing_id":     b.Result.ListingID,
			"title":          b.Listing.Title,
			"final_price":    b.Result.NegotiatedPrice,
			"original_price": b.Result.OriginalPrice,
			"savings":        b.Result.Savings,
		})
		s.notify(ctx, notify.HuntEvent(opts.Query, len(outcomes), b.Listing.Title, &b.Result))
	} else {
		send(EventStatus, map[string]any{"message": "No deal reached with any seller."})
		s.notify(ctx, notify.HuntEvent(opts.Query, len(outcomes), "", nil))
	}

	send(EventComplete, map[string]any{"message": fmt.Sprintf("All %d negotiations complete.", len(outcomes))})
	return report, nil
}
