package negotiation

// FallbackPrice estimates an offer when a decision omits a usable price. It
// returns the midpoint of the latest buyer and seller prices, whichever one of
// them exists, or 0 when neither does. Callers treat 0 as undetermined.
func FallbackPrice(history []Turn) float64 {
	buyer, seller, hasBuyer, hasSeller := lastOffers(history)
	switch {
	case hasBuyer && hasSeller:
		return (buyer + seller) / 2
	case hasBuyer:
		return buyer
	case hasSeller:
		return seller
	}
	return 0
}

// lastOffers scans history newest first for the latest priced turn of each
// party, stopping once both are found. A zero price is undetermined and
// skipped.
func lastOffers(history []Turn) (buyer, seller float64, hasBuyer, hasSeller bool) {
	for i := len(history) - 1; i >= 0 && !(hasBuyer && hasSeller); i-- {
		p, ok := history[i].Price()
		if !ok || p == 0 {
			continue
		}
		switch history[i].Party {
		case Buyer:
			if !hasBuyer {
				buyer, hasBuyer = p, true
			}
		case Seller:
			if !hasSeller {
				seller, hasSeller = p, true
			}
		}
	}
	return buyer, seller, hasBuyer, hasSeller
}

func lastPrice(history []Turn, party Party) (float64, bool) {
	b, s, hb, hs := lastOffers(history)
	if party == Buyer {
		return b, hb
	}
	return s, hs
}
