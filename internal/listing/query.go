package listing

import (
	"regexp"
	"strconv"
	"strings"
)

// Query is a free-text shopping request broken into structured filters.
type Query struct {
	Raw         string   `json:"raw"`
	Terms       []string `json:"terms"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	WithinMiles *float64 `json:"within_miles,omitempty"`
}

const number = `\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\b`

var (
	distanceRe = regexp.MustCompile(`(?i)\bwithin\s+(\d+(?:\.\d+)?)\s*(?:mi|miles?)\b`)
	betweenRe  = regexp.MustCompile(`(?i)\bbetween\s+` + number + `\s*and\s+` + number)
	rangeRe    = regexp.MustCompile(`(?i)` + number + `\s*(?:to|-)\s*` + number)
	maxRe      = regexp.MustCompile(`(?i)\b(?:under|below|less than|up to|max(?:imum)?|at most)\s+` + number)
	minRe      = regexp.MustCompile(`(?i)\b(?:over|above|more than|at least|min(?:imum)?)\s+` + number)
	wordRe     = regexp.MustCompile(`[a-z0-9][a-z0-9'+-]*`)
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "with": true, "in": true,
	"of": true, "and": true, "or": true, "i": true, "im": true, "i'm": true,
	"want": true, "need": true, "looking": true, "find": true, "me": true,
	"buy": true, "some": true, "any": true, "to": true, "my": true, "price": true,
	"dollars": true, "usd": true, "budget": true, "around": true, "is": true,
}

// ParseQuery extracts price bounds, a distance and search terms from text
// such as "mountain bike under $800 within 20 miles".
func ParseQuery(text string) Query {
	q := Query{Raw: text}
	rest := text

	if m := distanceRe.FindStringSubmatch(rest); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			q.WithinMiles = &v
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := maxRe.FindStringSubmatch(rest); m != nil {
		q.MaxPrice = amount(m[1], m[2])
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := minRe.FindStringSubmatch(rest); m != nil {
		q.MinPrice = amount(m[1], m[2])
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if q.MinPrice == nil && q.MaxPrice == nil {
		m := betweenRe.FindStringSubmatch(rest)
		if m == nil {
			m = rangeRe.FindStringSubmatch(rest)
		}
		if m != nil {
			lo, hi := amount(m[1], m[2]), amount(m[3], m[4])
			if lo != nil && hi != nil {
				if *lo > *hi {
					lo, hi = hi, lo
				}
				q.MinPrice, q.MaxPrice = lo, hi
				rest = strings.Replace(rest, m[0], " ", 1)
			}
		}
	}

	for _, w := range wordRe.FindAllString(strings.ToLower(rest), -1) {
		w = strings.Trim(w, "'-+")
		if w == "" || stopWords[w] {
			continue
		}
		q.Terms = append(q.Terms, w)
	}
	return q
}

// Filters converts q into search filters.
func (q Query) Filters(limit int) Filters {
	return Filters{
		Terms:    q.Terms,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Limit:    limit,
	}
}

func amount(digits, thousands string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return nil
	}
	if thousands != "" {
		v *= 1000
	}
	return &v
}
