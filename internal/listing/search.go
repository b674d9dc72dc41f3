package listing

import (
	"fmt"
	"strings"

	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gorm.io/gorm"
)

// DefaultSearchLimit caps search results when no limit is given.
const DefaultSearchLimit = 20

// Filters narrows a search over active listings.
type Filters struct {
	Terms     []string // every term must appear in title, description or category
	MinPrice  *float64
	MaxPrice  *float64
	Condition string
	Category  string
	Limit     int
}

// Search returns active listings matching f, cheapest first.
func Search(db *gorm.DB, f Filters) ([]models.Listing, error) {
	q := db.Model(&models.Listing{}).Where("status = ?", StatusActive)
	for _, term := range f.Terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(category) LIKE ? ESCAPE '!')", like, like, like)
	}
	if f.MinPrice != nil {
		q = q.Where("asking_price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("asking_price <= ?", *f.MaxPrice)
	}
	if f.Condition != "" {
		cond, ok := negotiation.ParseCondition(f.Condition)
		if !ok {
			return nil, fmt.Errorf("listing: unknown condition %q: %w", f.Condition, negotiation.ErrInvalidInput)
		}
		q = q.Where(&models.Listing{Condition: string(cond)})
	}
	if f.Category != "" {
		q = q.Where("category = ?", strings.ToLower(f.Category))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var out []models.Listing
	if err := q.Order("asking_price ASC, id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing: search: %w", err)
	}
	return out, nil
}

// Comparables returns up to limit other listings in the same category as l,
// most recent first. Sold listings report their sale price.
func Comparables(db *gorm.DB, l models.Listing, limit int) ([]negotiation.Comparable, error) {
	if l.Category == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Listing
	err := db.Where("category = ? AND id <> ? AND status IN ?", l.Category, l.ID, []string{StatusActive, StatusSold}).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing: comparables for %s: %w", l.ID, err)
	}

	comps := make([]negotiation.Comparable, 0, len(rows))
	for _, r := range rows {
		c := negotiation.Comparable{
			ListingID: r.ID,
			Price:     r.AskingPrice,
			Condition: ToDomain(r).Condition,
		}
		if r.Status == StatusSold {
			c.Sold = true
			if r.SoldPrice != nil {
				c.Price = *r.SoldPrice
			}
		}
		comps = append(comps, c)
	}
	return comps, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
