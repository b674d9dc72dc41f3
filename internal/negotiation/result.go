package negotiation

import (
	"math"
	"time"
)

// Assemble builds the terminal Result for a finished negotiation. The final
// price is the agreed price on success and the asking price otherwise.
func Assemble(l Listing, c Constraints, history []Turn, messages []Message, state State, now time.Time) Result {
	final := l.AskingPrice
	if state.Phase == PhaseSuccess {
		final = state.Price
	}
	savings, pct := Savings(l.AskingPrice, final)
	return Result{
		ListingID:       l.ID,
		SellerID:        l.SellerID,
		OriginalPrice:   l.AskingPrice,
		NegotiatedPrice: final,
		Messages:        append([]Message(nil), messages...),
		Status:          state.Status(),
		Savings:         savings,
		SavingsPercent:  pct,
		TurnCount:       len(history),
		MaxBudget:       c.Buyer.MaxBudget,
		MinAcceptable:   c.Seller.MinAcceptable,
		Reason:          state.Reason,
		CompletedAt:     now,
	}
}

// Savings returns max(0, original-final) rounded to cents and that amount as a percentage of
// original, rounded to two decimals. The percentage is 0 when original is 0.
func Savings(original, final float64) (amount, percent float64) {
	amount = roundCents(math.Max(0, original-final))
	if original == 0 {
		return amount, 0
	}
	return amount, math.Round(amount/original*100*100) / 100
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
