package negotiation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const defaultConfidence = 0.5

// Normalize turns an untrusted raw decision into a Decision that satisfies the
// party's action vocabulary and hard price bounds. It never fails: anything
// unusable is replaced with a safe default. Normalizing the Raw() form of a
// normalized Decision returns the same Decision.
func Normalize(party Party, raw RawDecision, c Constraints, history []Turn) Decision {
	d, _ := normalize(party, raw, c, history)
	return d
}

// normalize is Normalize plus a list of repairs applied, for logging.
func normalize(party Party, raw RawDecision, c Constraints, history []Turn) (Decision, []string) {
	var notes []string

	action, ok := coerceAction(raw["action"])
	if !ok || !party.Allows(action) {
		notes = append(notes, fmt.Sprintf("action %v replaced with %s", raw["action"], party.DefaultAction()))
		action = party.DefaultAction()
	}

	price, hasPrice := coercePrice(raw["offer_price"])
	if _, present := raw["offer_price"]; present && raw["offer_price"] != nil && !hasPrice {
		notes = append(notes, fmt.Sprintf("offer_price %v is not a usable number", raw["offer_price"]))
	}

	message := coerceMessage(raw["message"])
	confidence := coerceConfidence(raw["confidence"])

	d := Decision{Action: action, Message: message, Confidence: confidence}
	var clause string
	floorHit := false

	switch party {
	case Buyer:
		maxBudget := c.Buyer.MaxBudget
		switch action {
		case ActionOffer, ActionCounterOffer:
			if !hasPrice || price == 0 {
				price = FallbackPrice(history)
				if price == 0 {
					price = math.Min(c.Buyer.TargetPrice, c.Buyer.AskingPrice)
				}
				notes = append(notes, fmt.Sprintf("missing buyer price filled with %.2f", price))
			}
			if price > maxBudget {
				notes = append(notes, fmt.Sprintf("buyer price %.2f clamped to budget %.2f", price, maxBudget))
				price = maxBudget
			}
			d.OfferPrice = priceOf(price)
		case ActionAccept:
			agreed, found := lastPrice(history, Seller)
			if !found {
				agreed = c.Buyer.AskingPrice
			}
			if agreed > maxBudget {
				notes = append(notes, fmt.Sprintf("buyer accept at %.2f exceeds budget %.2f", agreed, maxBudget))
				d.Action = ActionCounterOffer
				d.OfferPrice = priceOf(maxBudget)
				clause = fmt.Sprintf(" That is above my budget, so my best offer is $%.2f.", maxBudget)
			} else {
				d.OfferPrice = priceOf(agreed)
			}
		default:
			d.OfferPrice = nil
		}

	case Seller:
		minAcceptable := c.Seller.MinAcceptable
		switch action {
		case ActionCounterOffer:
			if !hasPrice {
				price = FallbackPrice(history)
				notes = append(notes, fmt.Sprintf("missing seller price filled with %.2f", price))
			}
			if price < minAcceptable {
				notes = append(notes, fmt.Sprintf("seller price %.2f raised to floor %.2f", price, minAcceptable))
				price = minAcceptable
				floorHit = true
			}
			d.OfferPrice = priceOf(price)
		case ActionAccept:
			buyerLast, found := lastPrice(history, Buyer)
			if !found {
				// Nothing to accept yet; treat it as a counter at the stated
				// price or the asking price.
				counter := c.Seller.AskingPrice
				if hasPrice {
					counter = price
				}
				notes = append(notes, "seller accept with no buyer offer turned into counter_offer")
				d.Action = ActionCounterOffer
				if counter < minAcceptable {
					counter = minAcceptable
					floorHit = true
				}
				d.OfferPrice = priceOf(counter)
				clause = fmt.Sprintf(" My price is $%.2f.", counter)
				break
			}
			agreed := buyerLast
			if hasPrice && price < buyerLast {
				agreed = price
			}
			if agreed < minAcceptable {
				notes = append(notes, fmt.Sprintf("seller accept at %.2f is below floor %.2f", agreed, minAcceptable))
				d.Action = ActionCounterOffer
				d.OfferPrice = priceOf(minAcceptable)
				floorHit = true
				clause = fmt.Sprintf(" I can't go below $%.2f, so my counter is $%.2f.", minAcceptable, minAcceptable)
			} else {
				d.OfferPrice = priceOf(agreed)
			}
		default:
			d.OfferPrice = nil
		}
	}

	if d.Message == "" {
		d.Message = synthesizeMessage(party, d, floorHit, c)
	} else if clause != "" {
		d.Message += clause
	}
	return d, notes
}

func synthesizeMessage(party Party, d Decision, floorHit bool, c Constraints) string {
	var p float64
	if d.OfferPrice != nil {
		p = *d.OfferPrice
	}
	if party == Buyer {
		switch d.Action {
		case ActionAccept:
			return fmt.Sprintf("I accept your price of $%.2f.", p)
		case ActionReject:
			return "I can't accept that price."
		case ActionWalkAway:
			return "I'm going to walk away from this one."
		default:
			return fmt.Sprintf("I can offer $%.2f.", p)
		}
	}
	switch d.Action {
	case ActionAccept:
		return fmt.Sprintf("I accept your offer of $%.2f.", p)
	case ActionCounterOffer:
		if floorHit {
			return fmt.Sprintf("I cannot go below $%.2f.", c.Seller.MinAcceptable)
		}
		return fmt.Sprintf("I can offer $%.2f.", p)
	default:
		return fmt.Sprintf("I cannot go below $%.2f.", c.Seller.MinAcceptable)
	}
}

func coerceAction(v any) (Action, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "counter" || s == "counteroffer" {
		s = string(ActionCounterOffer)
	}
	if s == "walkaway" {
		s = string(ActionWalkAway)
	}
	if s == "" {
		return "", false
	}
	return Action(s), true
}

// coercePrice accepts numbers and numeric strings such as "$1,250.00". The
// result must be finite and non-negative.
func coercePrice(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func coerceMessage(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func coerceConfidence(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return defaultConfidence
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return defaultConfidence
		}
		f = n
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) {
		return defaultConfidence
	}
	return math.Min(1, math.Max(0, f))
}
