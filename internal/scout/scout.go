// Package scout runs negotiations against stored listings: it loads the
// listing, assembles market context, drives the negotiation loop, persists
// the outcome and sends notifications.
package scout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zulandar/dealscout/internal/agent"
	"github.com/zulandar/dealscout/internal/ledger"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/notify"
	"gorm.io/gorm"
)

// minComparables is how many sold comparables are needed before real market
// data replaces the synthetic context.
const minComparables = 2

// Service negotiates on the buyer's behalf.
type Service struct {
	DB      *gorm.DB
	Options negotiation.Options
	Buyer   negotiation.DecisionSource
	Seller  negotiation.DecisionSource

	// Notifier, if set, receives one event per negotiation and per hunt.
	Notifier notify.Notifier
	Logger   *log.Logger
	// Parallelism bounds concurrent negotiations in NegotiateMany and Hunt.
	Parallelism int
	// Record wraps both decision sources so every exchange is kept in
	// agent_logs.
	Record bool
}

// Outcome is a persisted negotiation.
type Outcome struct {
	ID      string             `json:"id"`
	Listing models.Listing     `json:"listing"`
	Result  negotiation.Result `json:"result"`
}

func (s *Service) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Negotiate runs one negotiation over the listing with the given ID. budget
// overrides the buyer's derived ceiling when non-nil. observer, if non-nil,
// sees each transcript message as it is produced.
func (s *Service) Negotiate(ctx context.Context, listingID string, budget *float64, observer negotiation.Observer) (*Outcome, error) {
	m, err := listing.Get(s.DB, listingID)
	if err != nil {
		return nil, err
	}
	if err := negotiable(*m); err != nil {
		return nil, err
	}
	out, err := s.run(ctx, *m, budget, ledger.SaveOpts{}, observer)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.ResultEvent(m.Title, out.Result))
	return &out, nil
}

// NegotiateMany negotiates every listing concurrently. Outcomes keep the order
// of ids. done, if non-nil, is called as each negotiation finishes.
func (s *Service) NegotiateMany(ctx context.Context, ids []string, budget *float64, done func(Outcome)) ([]Outcome, error) {
	rows := make([]models.Listing, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, err := listing.Get(s.DB, id)
		if err != nil {
			return nil, err
		}
		if err := negotiable(*m); err != nil {
			return nil, err
		}
		rows = append(rows, *m)
	}
	outcomes, err := s.batch(ctx, rows, budget, ledger.SaveOpts{}, done)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		s.notify(ctx, notify.ResultEvent(o.Listing.Title, o.Result))
	}
	return outcomes, nil
}

// batch negotiates rows with bounded parallelism and returns outcomes in row
// order. Save failures are joined into the returned error.
func (s *Service) batch(ctx context.Context, rows []models.Listing, budget *float64, tags ledger.SaveOpts, done func(Outcome)) ([]Outcome, error) {
	byID := make(map[string]models.Listing, len(rows))
	items := make([]negotiation.BatchItem, 0, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
		items = append(items, negotiation.BatchItem{Listing: listing.ToDomain(m), Budget: budget})
	}

	var mu sync.Mutex
	outcomes := make(map[string]Outcome, len(rows))
	runner := func(ctx context.Context, item negotiation.BatchItem) (negotiation.Result, error) {
		out, err := s.run(ctx, byID[item.Listing.ID], item.Budget, tags, nil)
		if err != nil {
			return negotiation.Result{}, err
		}
		mu.Lock()
		outcomes[item.Listing.ID] = out
		mu.Unlock()
		return out.Result, nil
	}

	var finished func(negotiation.BatchResult)
	if done != nil {
		finished = func(br negotiation.BatchResult) {
			if br.Err != nil {
				return
			}
			mu.Lock()
			out := outcomes[br.ListingID]
			mu.Unlock()
			done(out)
		}
	}

	results := negotiation.RunBatch(ctx, items, s.Parallelism, runner, finished)
	ordered := make([]Outcome, 0, len(results))
	var errs []error
	for _, br := range results {
		if br.Err != nil {
			errs = append(errs, br.Err)
			continue
		}
		ordered = append(ordered, outcomes[br.ListingID])
	}
	return ordered, errors.Join(errs...)
}

// run negotiates m and persists the result.
func (s *Service) run(ctx context.Context, m models.Listing, budget *float64, tags ledger.SaveOpts, observer negotiation.Observer) (Outcome, error) {
	if tags.ID == "" {
		tags.ID = ledger.NewID()
	}
	buyer, seller := s.Buyer, s.Seller
	if s.Record {
		buyer = agent.Record(buyer, s.DB, tags.ID)
		seller = agent.Record(seller, s.DB, tags.ID)
	}

	runOpts := []negotiation.RunOption{negotiation.WithMarket(s.market(m))}
	if observer != nil {
		runOpts = append(runOpts, negotiation.WithObserver(observer))
	}
	res, err := negotiation.Run(ctx, listing.ToDomain(m), budget, s.Options, buyer, seller, runOpts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("scout: negotiate %s: %w", m.ID, err)
	}
	if _, err := ledger.Save(s.DB, res, tags); err != nil {
		return Outcome{}, fmt.Errorf("scout: %w", err)
	}
	return Outcome{ID: tags.ID, Listing: m, Result: res}, nil
}

// market builds the context passed to decision sources, preferring real sold
// comparables from the same category.
func (s *Service) market(m models.Listing) negotiation.MarketContext {
	l := listing.ToDomain(m)
	comps, err := listing.Comparables(s.DB, m, 10)
	if err != nil {
		s.logger().Printf("scout: %v; using synthetic market", err)
		return negotiation.SyntheticMarket(l)
	}
	sold := 0
	for _, c := range comps {
		if c.Sold {
			sold++
		}
	}
	if sold < minComparables {
		return negotiation.SyntheticMarket(l)
	}
	return negotiation.MarketFromComparables(l, comps)
}

func (s *Service) notify(ctx context.Context, evt notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, evt); err != nil {
		s.logger().Printf("scout: notify %q: %v", evt.Title, err)
	}
}

func negotiable(m models.Listing) error {
	if m.Status != listing.StatusActive {
		return fmt.Errorf("scout: listing %s is %s: %w", m.ID, m.Status, negotiation.ErrInvalidInput)
	}
	return nil
}
