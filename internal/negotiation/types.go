// Package negotiation implements the buyer/seller turn-taking engine: decision
// normalization, fallback pricing, convergence detection, the turn loop and
// result assembly.
package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidInput is returned before any turn runs when the listing or the
// budget override cannot be negotiated over.
var ErrInvalidInput = errors.New("negotiation: invalid input")

// Party identifies which side of the table acts on a turn.
type Party string

// Parties.
const (
	Buyer  Party = "buyer"
	Seller Party = "seller"
)

// Action is a role's move on a turn.
type Action string

// Actions. Buyers may use all five; sellers only accept, reject and counter_offer.
const (
	ActionOffer        Action = "offer"
	ActionCounterOffer Action = "counter_offer"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
	ActionWalkAway     Action = "walk_away"
)

var allowedActions = map[Party]map[Action]bool{
	Buyer: {
		ActionOffer:        true,
		ActionCounterOffer: true,
		ActionAccept:       true,
		ActionReject:       true,
		ActionWalkAway:     true,
	},
	Seller: {
		ActionAccept:       true,
		ActionReject:       true,
		ActionCounterOffer: true,
	},
}

// Allows reports whether a is in the party's action vocabulary.
func (p Party) Allows(a Action) bool {
	return allowedActions[p][a]
}

// DefaultAction is substituted when a decision's action is missing or not allowed.
func (p Party) DefaultAction() Action {
	if p == Seller {
		return ActionReject
	}
	return ActionOffer
}

// Other returns the opposing party.
func (p Party) Other() Party {
	if p == Buyer {
		return Seller
	}
	return Buyer
}

// PriceBearing reports whether the action always carries an offer price.
func (a Action) PriceBearing() bool {
	return a == ActionOffer || a == ActionCounterOffer
}

// Condition is the listed item's condition.
type Condition string

// Conditions.
const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

// ParseCondition maps free-form condition text onto a Condition. Unknown
// values report false.
func ParseCondition(s string) (Condition, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	v = strings.ReplaceAll(v, " ", "-")
	switch Condition(v) {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return Condition(v), true
	}
	return "", false
}

// Listing is the product being negotiated over. It is not modified by a run.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	AskingPrice float64   `json:"asking_price"`
	Condition   Condition `json:"condition"`
	Extras      []string  `json:"extras,omitempty"`
	SellerID    string    `json:"seller_id,omitempty"`
}

// BuyerConstraints bound the buyer's decisions. MaxBudget is a hard ceiling.
// AskingPrice is the seller's standing ask, used when the buyer accepts
// before the seller has countered.
type BuyerConstraints struct {
	MaxBudget   float64 `json:"max_budget"`
	TargetPrice float64 `json:"target_price"`
	AskingPrice float64 `json:"asking_price"`
}

// SellerConstraints bound the seller's decisions. MinAcceptable is a hard floor.
type SellerConstraints struct {
	MinAcceptable  float64  `json:"min_acceptable"`
	AskingPrice    float64  `json:"asking_price"`
	BundleEligible []string `json:"can_bundle_extras,omitempty"`
}

// Constraints holds both roles' bounds for one negotiation.
type Constraints struct {
	Buyer  BuyerConstraints
	Seller SellerConstraints
}

// DeriveConstraints computes the role bounds for a listing. A non-nil budget
// becomes the buyer's ceiling directly; otherwise the ceiling is the asking
// price times the buyer budget multiplier.
func DeriveConstraints(l Listing, budget *float64, opts Options) Constraints {
	opts = opts.withDefaults()
	maxBudget := l.AskingPrice * opts.BuyerBudgetMultiplier
	if budget != nil {
		maxBudget = *budget
	}
	return Constraints{
		Buyer: BuyerConstraints{
			MaxBudget:   maxBudget,
			TargetPrice: maxBudget,
			AskingPrice: l.AskingPrice,
		},
		Seller: SellerConstraints{
			MinAcceptable:  l.AskingPrice * opts.SellerMinimumMultiplier,
			AskingPrice:    l.AskingPrice,
			BundleEligible: append([]string(nil), l.Extras...),
		},
	}
}

// Turn is one role's recorded action. Turns are append-only and ordered by Number.
type Turn struct {
	Number     int      `json:"turn"`
	Party      Party    `json:"party"`
	Action     Action   `json:"action"`
	OfferPrice *float64 `json:"offer_price,omitempty"`
	Message    string   `json:"message"`
	Confidence float64  `json:"confidence"`
}

// Price returns the turn's offer price, if any.
func (t Turn) Price() (float64, bool) {
	if t.OfferPrice == nil {
		return 0, false
	}
	return *t.OfferPrice, true
}

// Decision is a validated role decision for one turn.
type Decision struct {
	Action     Action
	OfferPrice *float64
	Message    string
	Confidence float64
}

// Raw converts the decision back into the untrusted shape decision sources
// produce, so it can be fed through Normalize again.
func (d Decision) Raw() RawDecision {
	raw := RawDecision{
		"action":     string(d.Action),
		"message":    d.Message,
		"confidence": d.Confidence,
	}
	if d.OfferPrice != nil {
		raw["offer_price"] = *d.OfferPrice
	} else {
		raw["offer_price"] = nil
	}
	return raw
}

// RawDecision is an untrusted decision as produced by a decision source. It is
// expected to resemble {action, offer_price, message, confidence}, but any key
// may be missing or carry the wrong type.
type RawDecision map[string]any

// Snapshot is the state handed to a decision source for one turn. Exactly one
// of Buyer and Seller is set, matching Party. History is a private copy.
type Snapshot struct {
	Party      Party              `json:"party"`
	TurnNumber int                `json:"turn_number"`
	Buyer      *BuyerConstraints  `json:"buyer_prefs,omitempty"`
	Seller     *SellerConstraints `json:"seller_prefs,omitempty"`
	Market     MarketContext      `json:"platform_data"`
	History    []Turn             `json:"history"`
}

// DecisionSource produces a raw decision for a role. Implementations talk to
// an external, non-deterministic provider; a returned error is treated as a
// provider failure and ends the negotiation.
type DecisionSource interface {
	Decide(ctx context.Context, snap Snapshot) (RawDecision, error)
}

// DecisionFunc adapts a function to DecisionSource.
type DecisionFunc func(ctx context.Context, snap Snapshot) (RawDecision, error)

// Decide calls f.
func (f DecisionFunc) Decide(ctx context.Context, snap Snapshot) (RawDecision, error) {
	return f(ctx, snap)
}

// Role is the author of a display message.
type Role string

// Message roles.
const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleSystem Role = "system"
)

// Message is one entry of the rendered transcript. Role messages carry a
// projection of their turn; system announcements carry only content.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Turn       int       `json:"turn,omitempty"`
	Action     Action    `json:"action,omitempty"`
	OfferPrice *float64  `json:"offer_price,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Observer receives each transcript message as soon as it is appended.
type Observer func(Message)

// Status classifies a finished negotiation.
type Status string

// Statuses.
const (
	StatusSuccess Status = "success"
	StatusNoDeal  Status = "no_deal"
	StatusError   Status = "error"
)

// Result is the terminal record of one negotiation.
type Result struct {
	ListingID       string    `json:"listing_id"`
	SellerID        string    `json:"seller_id"`
	OriginalPrice   float64   `json:"original_price"`
	NegotiatedPrice float64   `json:"negotiated_price"`
	Messages        []Message `json:"messages"`
	Status          Status    `json:"status"`
	Savings         float64   `json:"savings"`
	SavingsPercent  float64   `json:"savings_percent"`
	TurnCount       int       `json:"turn_count"`
	MaxBudget       float64   `json:"max_budget"`
	MinAcceptable   float64   `json:"min_acceptable"`
	Reason          string    `json:"reason,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

func priceOf(v float64) *float64 {
	return &v
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		if t.OfferPrice != nil {
			t.OfferPrice = priceOf(*t.OfferPrice)
		}
		out[i] = t
	}
	return out
}
