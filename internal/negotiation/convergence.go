package negotiation

import "math"

// DefaultConvergenceThreshold is the gap, in currency units, under which the
// latest opposing offers are considered converged.
const DefaultConvergenceThreshold = 20.0

// HasConverged reports whether the latest buyer and seller prices are within
// threshold of each other. It needs at least two turns and a price from each
// side. The result is advisory and never ends a negotiation.
func HasConverged(history []Turn, threshold float64) bool {
	if len(history) < 2 {
		return false
	}
	buyer, seller, hasBuyer, hasSeller := lastOffers(history)
	if !hasBuyer || !hasSeller {
		return false
	}
	return math.Abs(buyer-seller) <= threshold
}
