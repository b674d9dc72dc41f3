package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/zulandar/dealscout/internal/negotiation"
)

// Rules is a deterministic offline strategy. The buyer opens at 80% of the
// asking price and closes half the gap to its budget each turn; the seller
// concedes in bounded steps toward its floor.
type Rules struct {
	party negotiation.Party
}

// NewRules returns the rule-based strategy for party.
func NewRules(party negotiation.Party) *Rules {
	return &Rules{party: party}
}

var _ negotiation.DecisionSource = (*Rules)(nil)

const (
	buyerOpeningFraction = 0.80
	lowballFraction      = 0.80
	insultFraction       = 0.50
	closeEnough          = 20.0
	lateTurn             = 6
	minConcession        = 10.0
	maxConcession        = 25.0
)

// Decide implements negotiation.DecisionSource.
func (r *Rules) Decide(_ context.Context, snap negotiation.Snapshot) (negotiation.RawDecision, error) {
	switch snap.Party {
	case negotiation.Buyer:
		if snap.Buyer == nil {
			return nil, fmt.Errorf("agent: buyer snapshot has no constraints")
		}
		return r.buyer(snap), nil
	case negotiation.Seller:
		if snap.Seller == nil {
			return nil, fmt.Errorf("agent: seller snapshot has no constraints")
		}
		return r.seller(snap), nil
	}
	return nil, fmt.Errorf("agent: unknown party %q", snap.Party)
}

func (r *Rules) buyer(snap negotiation.Snapshot) negotiation.RawDecision {
	b := snap.Buyer
	ceiling := cents(b.MaxBudget)
	sellerLast, hasSeller := last(snap.History, negotiation.Seller)
	buyerLast, hasBuyer := last(snap.History, negotiation.Buyer)

	if hasSeller && sellerLast <= ceiling {
		return decision(negotiation.ActionAccept, nil, 0.9,
			fmt.Sprintf("$%.2f works for me. Deal!", sellerLast))
	}
	if !hasBuyer {
		open := cents(math.Min(b.AskingPrice*buyerOpeningFraction, ceiling))
		msg := fmt.Sprintf("Hi! Would you take $%.2f?", open)
		if avg := snap.Market.Stats.AvgPriceSold; avg > 0 {
			msg = fmt.Sprintf("Hi! Similar items have sold for around $%.2f. Would you take $%.2f?", avg, open)
		}
		return decision(negotiation.ActionOffer, &open, 0.6, msg)
	}
	if atCeiling(snap.History, ceiling) >= 2 {
		return decision(negotiation.ActionWalkAway, nil, 0.8,
			fmt.Sprintf("Thanks, but $%.2f is the most I can pay.", ceiling))
	}
	next := cents(buyerLast + (ceiling-buyerLast)/2)
	if ceiling-next < 1 {
		next = ceiling
	}
	return decision(negotiation.ActionCounterOffer, &next, 0.7,
		fmt.Sprintf("I can stretch to $%.2f.", next))
}

func (r *Rules) seller(snap negotiation.Snapshot) negotiation.RawDecision {
	s := snap.Seller
	floor := cents(s.MinAcceptable)
	buyerLast, hasBuyer := last(snap.History, negotiation.Buyer)
	sellerLast, hasSeller := last(snap.History, negotiation.Seller)
	if !hasSeller {
		sellerLast = s.AskingPrice
	}

	if !hasBuyer {
		return decision(negotiation.ActionCounterOffer, &sellerLast, 0.6,
			fmt.Sprintf("The price is $%.2f.", sellerLast))
	}
	if buyerLast < s.AskingPrice*insultFraction {
		return decision(negotiation.ActionReject, nil, 0.9,
			"That's far too low, I'll wait for another buyer.")
	}
	if buyerLast >= floor && (buyerLast >= sellerLast || sellerLast-buyerLast <= closeEnough || snap.TurnNumber >= lateTurn) {
		return decision(negotiation.ActionAccept, &buyerLast, 0.85,
			fmt.Sprintf("You've got a deal at $%.2f.", buyerLast))
	}
	if !hasSeller && buyerLast <= s.AskingPrice*lowballFraction {
		ask := cents(s.AskingPrice)
		return decision(negotiation.ActionCounterOffer, &ask, 0.7,
			fmt.Sprintf("It's in great shape, I'm firm at $%.2f for now.", ask))
	}
	step := math.Min(maxConcession, math.Max(minConcession, (sellerLast-buyerLast)/3))
	counter := cents(math.Max(floor, sellerLast-step))
	return decision(negotiation.ActionCounterOffer, &counter, 0.7,
		fmt.Sprintf("I can come down to $%.2f.", counter))
}

func decision(a negotiation.Action, price *float64, confidence float64, msg string) negotiation.RawDecision {
	raw := negotiation.RawDecision{
		"action":     string(a),
		"message":    msg,
		"confidence": confidence,
	}
	if price != nil {
		raw["offer_price"] = *price
	}
	return raw
}

func last(history []negotiation.Turn, party negotiation.Party) (float64, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Party != party {
			continue
		}
		if p, ok := history[i].Price(); ok {
			return p, true
		}
	}
	return 0, false
}

func atCeiling(history []negotiation.Turn, ceiling float64) int {
	n := 0
	for _, t := range history {
		if p, ok := t.Price(); ok && t.Party == negotiation.Buyer && p >= ceiling {
			n++
		}
	}
	return n
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
