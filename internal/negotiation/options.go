package negotiation

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"
)

// Defaults for Options.
const (
	DefaultMaxTurns                = 8
	DefaultBuyerBudgetMultiplier   = 0.95
	DefaultSellerMinimumMultiplier = 0.88
	DefaultDecisionTimeout         = 30 * time.Second
)

// Options configures a negotiation. Zero fields take their defaults.
type Options struct {
	MaxTurns int
	// ConvergenceThreshold of zero means DefaultConvergenceThreshold (20),
	// so exact matching has to be asked for with a tiny positive value such
	// as 0.01. A negative value disables the convergence notice.
	ConvergenceThreshold    float64
	BuyerBudgetMultiplier   float64
	SellerMinimumMultiplier float64
	DecisionTimeout         time.Duration

	Now    func() time.Time
	Logger *log.Logger
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxTurns == 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.ConvergenceThreshold == 0 {
		o.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if o.BuyerBudgetMultiplier == 0 {
		o.BuyerBudgetMultiplier = DefaultBuyerBudgetMultiplier
	}
	if o.SellerMinimumMultiplier == 0 {
		o.SellerMinimumMultiplier = DefaultSellerMinimumMultiplier
	}
	if o.DecisionTimeout == 0 {
		o.DecisionTimeout = DefaultDecisionTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	var errs []string
	if o.MaxTurns < 2 || o.MaxTurns%2 != 0 {
		errs = append(errs, fmt.Sprintf("max_turns must be even and >= 2, got %d", o.MaxTurns))
	}
	if !(o.BuyerBudgetMultiplier > 0) || math.IsInf(o.BuyerBudgetMultiplier, 0) {
		errs = append(errs, fmt.Sprintf("buyer_budget_multiplier must be > 0, got %v", o.BuyerBudgetMultiplier))
	}
	if !(o.SellerMinimumMultiplier > 0) || o.SellerMinimumMultiplier > 1 {
		errs = append(errs, fmt.Sprintf("seller_minimum_multiplier must be in (0, 1], got %v", o.SellerMinimumMultiplier))
	}
	if o.DecisionTimeout < 0 {
		errs = append(errs, fmt.Sprintf("decision_timeout must be > 0, got %s", o.DecisionTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("negotiation: invalid options: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateInput rejects listings and budget overrides that cannot be
// negotiated over.
func validateInput(l Listing, budget *float64) error {
	if !(l.AskingPrice > 0) || math.IsInf(l.AskingPrice, 0) {
		return fmt.Errorf("%w: asking price must be > 0, got %v", ErrInvalidInput, l.AskingPrice)
	}
	if budget != nil && (!(*budget > 0) || math.IsInf(*budget, 0)) {
		return fmt.Errorf("%w: budget override must be > 0, got %v", ErrInvalidInput, *budget)
	}
	return nil
}
