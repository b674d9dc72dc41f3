package negotiation

import (
	"context"
	"errors"
	"fmt"
)

// Loop alternates buyer and seller decisions over one listing until someone
// accepts, walks away, rejects, fails, or the turn budget runs out. A Loop
// holds no per-negotiation state and may run many negotiations concurrently.
type Loop struct {
	buyer  DecisionSource
	seller DecisionSource
	opts   Options
}

// NewLoop returns a Loop driving the given decision sources.
func NewLoop(buyer, seller DecisionSource, opts Options) *Loop {
	return &Loop{buyer: buyer, seller: seller, opts: opts.withDefaults()}
}

// Options returns the loop's effective options.
func (l *Loop) Options() Options { return l.opts }

// RunOption customizes a single run.
type RunOption func(*runConfig)

type runConfig struct {
	observer Observer
	market   *MarketContext
}

// WithObserver streams each transcript message to fn as it is appended. fn is
// called from the goroutine running the negotiation.
func WithObserver(fn Observer) RunOption {
	return func(c *runConfig) { c.observer = fn }
}

// WithMarket supplies the market context passed to both decision sources.
// Without it a synthetic context is derived from the asking price.
func WithMarket(m MarketContext) RunOption {
	return func(c *runConfig) { c.market = &m }
}

// Run negotiates over listing with a Loop built from opts and the two sources.
func Run(ctx context.Context, listing Listing, budget *float64, opts Options, buyer, seller DecisionSource, runOpts ...RunOption) (Result, error) {
	return NewLoop(buyer, seller, opts).Run(ctx, listing, budget, runOpts...)
}

// Run negotiates over listing. A non-nil budget replaces the derived buyer
// ceiling. Invalid input returns an error wrapping ErrInvalidInput before any
// decision source is called; every other outcome, including provider failure
// and cancellation, is reported through the Result.
func (l *Loop) Run(ctx context.Context, listing Listing, budget *float64, runOpts ...RunOption) (Result, error) {
	if err := l.opts.Validate(); err != nil {
		return Result{}, err
	}
	if l.buyer == nil || l.seller == nil {
		return Result{}, errors.New("negotiation: both decision sources are required")
	}
	if err := validateInput(listing, budget); err != nil {
		return Result{}, err
	}

	var cfg runConfig
	for _, o := range runOpts {
		o(&cfg)
	}
	market := SyntheticMarket(listing)
	if cfg.market != nil {
		market = *cfg.market
	}

	r := &run{
		loop:     l,
		listing:  listing,
		c:        DeriveConstraints(listing, budget, l.opts),
		market:   market,
		observer: cfg.observer,
	}
	state := r.drive(ctx)
	return Assemble(listing, r.c, r.history, r.messages, state, l.opts.Now()), nil
}

// run is the mutable state of one negotiation. It is owned by a single
// goroutine.
type run struct {
	loop     *Loop
	listing  Listing
	c        Constraints
	market   MarketContext
	observer Observer

	history  []Turn
	messages []Message
}

func (r *run) drive(ctx context.Context) State {
	opts := r.loop.opts
	r.system(fmt.Sprintf("Negotiation started for %s.", r.listing.Title))

	state := Running(1)
	for ; state.Turn <= opts.MaxTurns; state.Turn++ {
		n := state.Turn
		if err := ctx.Err(); err != nil {
			reason := fmt.Sprintf("cancelled before turn %d: %v", n, err)
			r.system("Negotiation cancelled.")
			return Failed(reason)
		}

		party, src := Buyer, r.loop.buyer
		if n%2 == 0 {
			party, src = Seller, r.loop.seller
		}

		raw, err := r.loop.decide(ctx, src, r.snapshot(party, n))
		if err != nil {
			reason := fmt.Sprintf("%s decision failed on turn %d: %v", party, n, err)
			opts.Logger.Printf("negotiation %s: %s", r.listing.ID, reason)
			r.system("Error: " + reason)
			return Failed(reason)
		}

		d, notes := normalize(party, raw, r.c, r.history)
		for _, note := range notes {
			opts.Logger.Printf("negotiation %s: turn %d %s: %s", r.listing.ID, n, party, note)
		}
		turn := Turn{
			Number:     n,
			Party:      party,
			Action:     d.Action,
			OfferPrice: d.OfferPrice,
			Message:    d.Message,
			Confidence: d.Confidence,
		}
		r.history = append(r.history, turn)
		r.turnMessage(turn)

		if next, done := r.transition(turn); done {
			return next
		}
		if HasConverged(r.history, opts.ConvergenceThreshold) {
			r.system("Offers are converging, consider accepting.")
		}
	}

	r.system(fmt.Sprintf("No agreement reached after %d turns.", opts.MaxTurns))
	return NoDeal(fmt.Sprintf("no agreement after %d turns", opts.MaxTurns))
}

// transition applies the terminal rules for the turn just recorded.
func (r *run) transition(t Turn) (State, bool) {
	switch {
	case t.Action == ActionAccept && t.Party == Buyer:
		r.system(fmt.Sprintf("Deal reached at $%.2f.", *t.OfferPrice))
		return Success(*t.OfferPrice), true
	case t.Action == ActionAccept && t.Party == Seller:
		r.system(fmt.Sprintf("Seller accepted $%.2f.", *t.OfferPrice))
		return Success(*t.OfferPrice), true
	case t.Action == ActionWalkAway:
		r.system("Buyer walked away.")
		return NoDeal("buyer walked away"), true
	case t.Action == ActionReject && t.Party == Seller:
		r.system("Seller rejected the offer.")
		return NoDeal("seller rejected the offer"), true
	}
	return State{}, false
}

func (r *run) snapshot(party Party, n int) Snapshot {
	snap := Snapshot{
		Party:      party,
		TurnNumber: n,
		Market:     r.market,
		History:    cloneTurns(r.history),
	}
	if party == Buyer {
		b := r.c.Buyer
		snap.Buyer = &b
	} else {
		s := r.c.Seller
		s.BundleEligible = append([]string(nil), s.BundleEligible...)
		snap.Seller = &s
	}
	return snap
}

func (r *run) system(content string) {
	r.append(Message{Role: RoleSystem, Content: content})
}

func (r *run) turnMessage(t Turn) {
	conf := t.Confidence
	m := Message{
		Role:       Role(t.Party),
		Content:    t.Message,
		Turn:       t.Number,
		Action:     t.Action,
		Confidence: &conf,
	}
	if t.OfferPrice != nil {
		m.OfferPrice = priceOf(*t.OfferPrice)
	}
	r.append(m)
}

func (r *run) append(m Message) {
	m.Timestamp = r.loop.opts.Now()
	r.messages = append(r.messages, m)
	if r.observer != nil {
		r.observer(m)
	}
}

type reply struct {
	raw RawDecision
	err error
}

// decide calls src with a bounded deadline. Cancelling ctx does not abort a
// call in flight; the loop stops at the next turn boundary instead.
func (l *Loop) decide(ctx context.Context, src DecisionSource, snap Snapshot) (RawDecision, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.DecisionTimeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{err: fmt.Errorf("decision source panicked: %v", p)}
			}
		}()
		raw, err := src.Decide(callCtx, snap)
		ch <- reply{raw: raw, err: err}
	}()

	select {
	case rep := <-ch:
		return rep.raw, rep.err
	case <-callCtx.Done():
		return nil, fmt.Errorf("timed out after %s", l.opts.DecisionTimeout)
	}
}
