package negotiation

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Now:    func() time.Time { return fixedNow },
		Logger: log.New(io.Discard, "", 0),
	}
}

func bike() Listing {
	return Listing{ID: "l1", Title: "Trek Marlin 5", AskingPrice: 450, Condition: ConditionGood, SellerID: "s1"}
}

// script replays decisions in order and fails the test when asked for more.
type script struct {
	t     *testing.T
	mu    sync.Mutex
	steps []RawDecision
	calls int
	snaps []Snapshot
}

func newScript(t *testing.T, steps ...RawDecision) *script {
	return &script{t: t, steps: steps}
}

func (s *script) Decide(_ context.Context, snap Snapshot) (RawDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	if s.calls >= len(s.steps) {
		s.t.Errorf("unexpected decision call %d for %s", s.calls+1, snap.Party)
		return RawDecision{}, nil
	}
	d := s.steps[s.calls]
	s.calls++
	return d, nil
}

func repeat(d RawDecision, n int) []RawDecision {
	out := make([]RawDecision, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestRun_HappyPath(t *testing.T) {
	buyer := newScript(t,
		RawDecision{"action": "offer", "offer_price": 380.0, "message": "Would you take $380?"},
		RawDecision{"action": "counter_offer", "offer_price": 420.0, "message": "Meet me at $420?"},
	)
	seller := newScript(t,
		RawDecision{"action": "counter_offer", "offer_price": 440.0, "message": "I could do $440."},
		RawDecision{"action": "accept", "message": "Deal."},
	)

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %q, want success (reason %q)", res.Status, res.Reason)
	}
	if res.NegotiatedPrice != 420 {
		t.Errorf("NegotiatedPrice = %v, want 420", res.NegotiatedPrice)
	}
	if res.Savings != 30 {
		t.Errorf("Savings = %v, want 30", res.Savings)
	}
	if res.SavingsPercent != 6.67 {
		t.Errorf("SavingsPercent = %v, want 6.67", res.SavingsPercent)
	}
	if res.TurnCount != 4 {
		t.Errorf("TurnCount = %d, want 4", res.TurnCount)
	}
	if !approx(res.MaxBudget, 427.5) || !approx(res.MinAcceptable, 396) {
		t.Errorf("bounds = %v/%v, want 427.5/396", res.MaxBudget, res.MinAcceptable)
	}
	if res.ListingID != "l1" || res.SellerID != "s1" {
		t.Errorf("ids = %q/%q", res.ListingID, res.SellerID)
	}
	if !res.CompletedAt.Equal(fixedNow) {
		t.Errorf("CompletedAt = %v, want %v", res.CompletedAt, fixedNow)
	}

	var contents []string
	for _, m := range res.Messages {
		contents = append(contents, string(m.Role)+": "+m.Content)
	}
	want := []string{
		"system: Negotiation started for Trek Marlin 5.",
		"buyer: Would you take $380?",
		"seller: I could do $440.",
		"buyer: Meet me at $420?",
		"system: Offers are converging, consider accepting.",
		"seller: Deal.",
		"system: Seller accepted $420.00.",
	}
	if !reflect.DeepEqual(contents, want) {
		t.Errorf("messages:\n%s\nwant:\n%s", strings.Join(contents, "\n"), strings.Join(want, "\n"))
	}
	if m := res.Messages[1]; m.Turn != 1 || m.Action != ActionOffer || m.OfferPrice == nil || *m.OfferPrice != 380 {
		t.Errorf("first buyer message = %+v", m)
	}
}

func TestRun_ConvergenceNoticeRepeats(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      int
	}{
		{"default threshold", 0, 2},
		{"exact matching", 0.01, 0},
		{"disabled", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buyer := newScript(t,
				RawDecision{"action": "offer", "offer_price": 420.0},
				RawDecision{"action": "counter_offer", "offer_price": 425.0},
			)
			seller := newScript(t,
				RawDecision{"action": "counter_offer", "offer_price": 430.0},
				RawDecision{"action": "accept"},
			)
			opts := testOptions()
			opts.ConvergenceThreshold = tt.threshold
			res, err := Run(context.Background(), bike(), nil, opts, buyer, seller)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			got := 0
			for _, m := range res.Messages {
				if m.Role == RoleSystem && strings.Contains(m.Content, "converging") {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("convergence notices = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRun_BuyerAccepts(t *testing.T) {
	buyer := newScript(t,
		RawDecision{"action": "offer", "offer_price": 380.0},
		RawDecision{"action": "accept"},
	)
	seller := newScript(t, RawDecision{"action": "counter_offer", "offer_price": 415.0})

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess || res.NegotiatedPrice != 415 {
		t.Fatalf("result = %s at %v, want success at 415", res.Status, res.NegotiatedPrice)
	}
	if last := res.Messages[len(res.Messages)-1].Content; last != "Deal reached at $415.00." {
		t.Errorf("last message = %q", last)
	}
}

func TestRun_SellerFloorEnforced(t *testing.T) {
	buyer := newScript(t,
		RawDecision{"action": "offer", "offer_price": 380.0},
		RawDecision{"action": "walk_away"},
	)
	seller := newScript(t, RawDecision{"action": "accept", "offer_price": 380.0})

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNoDeal {
		t.Fatalf("Status = %q, want no_deal", res.Status)
	}
	sellerMsg := res.Messages[2]
	if sellerMsg.Action != ActionCounterOffer || sellerMsg.OfferPrice == nil || !approx(*sellerMsg.OfferPrice, 396) {
		t.Errorf("seller message = %+v, want counter_offer at 396", sellerMsg)
	}
	if last := res.Messages[len(res.Messages)-1].Content; last != "Buyer walked away." {
		t.Errorf("last message = %q", last)
	}
}

func TestRun_SellerRejects(t *testing.T) {
	buyer := newScript(t, RawDecision{"action": "offer", "offer_price": 200.0})
	seller := newScript(t, RawDecision{"action": "reject"})

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNoDeal || res.TurnCount != 2 {
		t.Errorf("result = %s after %d turns, want no_deal after 2", res.Status, res.TurnCount)
	}
	if res.NegotiatedPrice != 450 || res.Savings != 0 {
		t.Errorf("price/savings = %v/%v, want 450/0", res.NegotiatedPrice, res.Savings)
	}
}

func TestRun_BuyerRejectDoesNotEnd(t *testing.T) {
	buyer := newScript(t,
		RawDecision{"action": "offer", "offer_price": 380.0},
		RawDecision{"action": "reject"},
		RawDecision{"action": "walk_away"},
	)
	seller := newScript(t,
		RawDecision{"action": "counter_offer", "offer_price": 449.0},
		RawDecision{"action": "counter_offer", "offer_price": 449.0},
	)
	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TurnCount != 5 {
		t.Errorf("TurnCount = %d, want 5", res.TurnCount)
	}
}

func TestRun_TurnExhaustion(t *testing.T) {
	buyer := newScript(t, repeat(RawDecision{"action": "counter_offer", "offer_price": 380.0}, 4)...)
	seller := newScript(t, repeat(RawDecision{"action": "counter_offer", "offer_price": 440.0}, 4)...)

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNoDeal {
		t.Errorf("Status = %q, want no_deal", res.Status)
	}
	if res.NegotiatedPrice != 450 || res.Savings != 0 || res.SavingsPercent != 0 {
		t.Errorf("price/savings = %v/%v/%v, want 450/0/0", res.NegotiatedPrice, res.Savings, res.SavingsPercent)
	}
	if res.TurnCount != 8 {
		t.Errorf("TurnCount = %d, want 8", res.TurnCount)
	}
	if last := res.Messages[len(res.Messages)-1].Content; last != "No agreement reached after 8 turns." {
		t.Errorf("last message = %q", last)
	}
	if buyer.calls != 4 || seller.calls != 4 {
		t.Errorf("calls = %d/%d, want 4/4", buyer.calls, seller.calls)
	}
}

func TestRun_ProviderFailure(t *testing.T) {
	calls := 0
	buyer := DecisionFunc(func(context.Context, Snapshot) (RawDecision, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("connection reset")
		}
		return RawDecision{"action": "offer", "offer_price": 380.0}, nil
	})
	seller := newScript(t, RawDecision{"action": "counter_offer", "offer_price": 440.0})

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("Status = %q, want error", res.Status)
	}
	if res.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", res.TurnCount)
	}
	if res.NegotiatedPrice != 450 || res.Savings != 0 {
		t.Errorf("price/savings = %v/%v, want 450/0", res.NegotiatedPrice, res.Savings)
	}
	if !strings.Contains(res.Reason, "turn 3") || !strings.Contains(res.Reason, "connection reset") {
		t.Errorf("Reason = %q", res.Reason)
	}
	if last := res.Messages[len(res.Messages)-1]; last.Role != RoleSystem || !strings.HasPrefix(last.Content, "Error: ") {
		t.Errorf("last message = %+v", last)
	}
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := DecisionFunc(func(context.Context, Snapshot) (RawDecision, error) {
		<-release
		return RawDecision{"action": "offer"}, nil
	})
	opts := testOptions()
	opts.DecisionTimeout = 20 * time.Millisecond

	start := time.Now()
	res, err := Run(context.Background(), bike(), nil, opts, slow, newScript(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusError || res.TurnCount != 0 {
		t.Errorf("result = %s after %d turns, want error after 0", res.Status, res.TurnCount)
	}
	if !strings.Contains(res.Reason, "timed out") {
		t.Errorf("Reason = %q, want timeout", res.Reason)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestRun_PanicIsProviderFailure(t *testing.T) {
	buyer := DecisionFunc(func(context.Context, Snapshot) (RawDecision, error) {
		panic("boom")
	})
	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, newScript(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusError || !strings.Contains(res.Reason, "boom") {
		t.Errorf("result = %s %q, want error mentioning boom", res.Status, res.Reason)
	}
}

func TestRun_CancelStopsAtTurnBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buyer := newScript(t, RawDecision{"action": "offer", "offer_price": 380.0})
	var sawCancelled bool
	seller := DecisionFunc(func(callCtx context.Context, _ Snapshot) (RawDecision, error) {
		cancel()
		sawCancelled = callCtx.Err() != nil
		return RawDecision{"action": "counter_offer", "offer_price": 440.0}, nil
	})

	res, err := Run(ctx, bike(), nil, testOptions(), buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawCancelled {
		t.Error("in-flight call saw cancellation")
	}
	if res.Status != StatusError || res.TurnCount != 2 {
		t.Errorf("result = %s after %d turns, want error after 2", res.Status, res.TurnCount)
	}
	if !strings.HasPrefix(res.Reason, "cancelled") {
		t.Errorf("Reason = %q", res.Reason)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	zero, neg, nan := 0.0, -10.0, math.NaN()
	tests := []struct {
		name    string
		listing Listing
		budget  *float64
	}{
		{"zero asking", Listing{AskingPrice: 0}, nil},
		{"negative asking", Listing{AskingPrice: -1}, nil},
		{"nan asking", Listing{AskingPrice: math.NaN()}, nil},
		{"inf asking", Listing{AskingPrice: math.Inf(1)}, nil},
		{"zero budget", bike(), &zero},
		{"negative budget", bike(), &neg},
		{"nan budget", bike(), &nan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			never := DecisionFunc(func(context.Context, Snapshot) (RawDecision, error) {
				t.Error("decision source called")
				return nil, nil
			})
			_, err := Run(context.Background(), tt.listing, tt.budget, testOptions(), never, never)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.MaxTurns = 3
	_, err := Run(context.Background(), bike(), nil, opts, newScript(t), newScript(t))
	if err == nil || !strings.Contains(err.Error(), "max_turns") {
		t.Errorf("error = %v, want max_turns violation", err)
	}
}

func TestRun_SnapshotsAreIsolated(t *testing.T) {
	buyer := DecisionFunc(func(_ context.Context, snap Snapshot) (RawDecision, error) {
		if snap.Party != Buyer || snap.Buyer == nil || snap.Seller != nil {
			t.Errorf("buyer snapshot = %+v", snap)
		}
		for i := range snap.History {
			snap.History[i].Action = ActionAccept
			if snap.History[i].OfferPrice != nil {
				*snap.History[i].OfferPrice = 1
			}
		}
		return RawDecision{"action": "offer", "offer_price": 380.0}, nil
	})
	seller := DecisionFunc(func(_ context.Context, snap Snapshot) (RawDecision, error) {
		if snap.Party != Seller || snap.Seller == nil || snap.Buyer != nil {
			t.Errorf("seller snapshot = %+v", snap)
		}
		if len(snap.History) != snap.TurnNumber-1 {
			t.Errorf("turn %d saw %d history entries", snap.TurnNumber, len(snap.History))
		}
		return RawDecision{"action": "counter_offer", "offer_price": 440.0}, nil
	})

	opts := testOptions()
	opts.MaxTurns = 4
	res, err := Run(context.Background(), bike(), nil, opts, buyer, seller)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, m := range res.Messages {
		if m.Role == RoleSystem {
			continue
		}
		if m.Action == ActionAccept || (m.OfferPrice != nil && *m.OfferPrice == 1) {
			t.Errorf("history was mutated through a snapshot: %+v", m)
		}
	}
}

func TestRun_MarketContext(t *testing.T) {
	market := MarketContext{Product: Product{Title: "custom"}}
	var got []MarketContext
	src := DecisionFunc(func(_ context.Context, snap Snapshot) (RawDecision, error) {
		got = append(got, snap.Market)
		if snap.Party == Buyer {
			return RawDecision{"action": "walk_away"}, nil
		}
		return RawDecision{"action": "reject"}, nil
	})
	if _, err := Run(context.Background(), bike(), nil, testOptions(), src, src, WithMarket(market)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Product.Title != "custom" {
		t.Errorf("market = %+v", got)
	}

	got = nil
	if _, err := Run(context.Background(), bike(), nil, testOptions(), src, src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Stats.TotalComps != 4 {
		t.Errorf("default market = %+v, want synthetic comps", got)
	}
}

func TestRun_ObserverSeesEveryMessage(t *testing.T) {
	var seen []Message
	buyer := newScript(t, RawDecision{"action": "offer", "offer_price": 400.0}, RawDecision{"action": "accept"})
	seller := newScript(t, RawDecision{"action": "counter_offer", "offer_price": 410.0})

	res, err := Run(context.Background(), bike(), nil, testOptions(), buyer, seller,
		WithObserver(func(m Message) { seen = append(seen, m) }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(seen, res.Messages) {
		t.Errorf("observer saw %d messages, result has %d", len(seen), len(res.Messages))
	}
}

// randomSource emits arbitrary, often malformed, decisions.
func randomSource(rng *rand.Rand) DecisionSource {
	actions := []any{"offer", "counter_offer", "accept", "reject", "walk_away", "bogus", nil, 3}
	prices := []any{nil, -5.0, 0.0, 250.0, 390.0, 400.0, 420.0, 440.0, 460.0, "$410", "n/a"}
	var mu sync.Mutex
	return DecisionFunc(func(context.Context, Snapshot) (RawDecision, error) {
		mu.Lock()
		defer mu.Unlock()
		return RawDecision{
			"action":      actions[rng.Intn(len(actions))],
			"offer_price": prices[rng.Intn(len(prices))],
			"confidence":  rng.Float64()*3 - 1,
		}, nil
	})
}

func TestRun_BoundsHoldForArbitraryDecisions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	budgets := []*float64{nil, priceOf(300), priceOf(410), priceOf(600)}
	for i := 0; i < 500; i++ {
		budget := budgets[i%len(budgets)]
		res, err := Run(context.Background(), bike(), budget, testOptions(), randomSource(rng), randomSource(rng))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.TurnCount > DefaultMaxTurns {
			t.Fatalf("TurnCount = %d, above max", res.TurnCount)
		}
		if math.Abs(res.Savings-math.Max(0, res.OriginalPrice-res.NegotiatedPrice)) > 0.005 {
			t.Fatalf("Savings = %v for %v -> %v", res.Savings, res.OriginalPrice, res.NegotiatedPrice)
		}
		if res.Status != StatusSuccess {
			continue
		}
		if res.NegotiatedPrice > res.MaxBudget+1e-9 {
			t.Fatalf("run %d: deal at %v above budget %v", i, res.NegotiatedPrice, res.MaxBudget)
		}
		if res.NegotiatedPrice < res.MinAcceptable-1e-9 {
			t.Fatalf("run %d: deal at %v below floor %v", i, res.NegotiatedPrice, res.MinAcceptable)
		}
		for _, m := range res.Messages {
			if m.Role != RoleSystem && m.Confidence != nil && (*m.Confidence < 0 || *m.Confidence > 1) {
				t.Fatalf("confidence %v out of range", *m.Confidence)
			}
		}
	}
}
