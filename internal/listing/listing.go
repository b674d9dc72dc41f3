// Package listing provides marketplace listing storage, search and the
// comparables used as market evidence during negotiations.
package listing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a listing does not exist.
var ErrNotFound = errors.New("listing: not found")

// Listing statuses.
const (
	StatusActive = "active"
	StatusSold   = "sold"
)

// CreateOpts holds parameters for creating a listing.
type CreateOpts struct {
	ID          string // optional; generated when empty
	Title       string
	Description string
	Category    string
	AskingPrice float64
	Condition   string // new, like-new, good, fair; default good
	Extras      []string
	SellerID    string
	Location    string
}

// ListFilters holds optional filters for listing listings.
type ListFilters struct {
	Status   string
	Category string
	SellerID string
	Limit    int
}

// NewID returns a sortable unique listing ID.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// Create validates opts and inserts a new active listing.
func Create(db *gorm.DB, opts CreateOpts) (*models.Listing, error) {
	l, err := build(opts)
	if err != nil {
		return nil, err
	}
	if err := db.Create(&l).Error; err != nil {
		return nil, fmt.Errorf("listing: create: %w", err)
	}
	return &l, nil
}

func build(opts CreateOpts) (models.Listing, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return models.Listing{}, fmt.Errorf("listing: title is required: %w", negotiation.ErrInvalidInput)
	}
	if !(opts.AskingPrice > 0) || math.IsInf(opts.AskingPrice, 0) {
		return models.Listing{}, fmt.Errorf("listing: asking price must be positive, got %v: %w", opts.AskingPrice, negotiation.ErrInvalidInput)
	}
	cond := negotiation.ConditionGood
	if opts.Condition != "" {
		c, ok := negotiation.ParseCondition(opts.Condition)
		if !ok {
			return models.Listing{}, fmt.Errorf("listing: unknown condition %q: %w", opts.Condition, negotiation.ErrInvalidInput)
		}
		cond = c
	}
	id := opts.ID
	if id == "" {
		id = NewID()
	}
	return models.Listing{
		ID:          id,
		Title:       title,
		Description: opts.Description,
		Category:    strings.ToLower(strings.TrimSpace(opts.Category)),
		AskingPrice: opts.AskingPrice,
		Condition:   string(cond),
		Extras:      joinExtras(opts.Extras),
		SellerID:    opts.SellerID,
		Location:    opts.Location,
		Status:      StatusActive,
	}, nil
}

// Get retrieves a listing by ID.
func Get(db *gorm.DB, id string) (*models.Listing, error) {
	var l models.Listing
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("listing: get %s: %w", id, err)
	}
	return &l, nil
}

// List returns listings matching filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Listing, error) {
	q := db.Model(&models.Listing{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", strings.ToLower(filters.Category))
	}
	if filters.SellerID != "" {
		q = q.Where("seller_id = ?", filters.SellerID)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var out []models.Listing
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing: list: %w", err)
	}
	return out, nil
}

// MarkSold records a sale, turning the listing into a sold comparable.
func MarkSold(db *gorm.DB, id string, price float64) error {
	if !(price > 0) {
		return fmt.Errorf("listing: sold price must be positive, got %v: %w", price, negotiation.ErrInvalidInput)
	}
	res := db.Model(&models.Listing{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     StatusSold,
		"sold_price": price,
	})
	if res.Error != nil {
		return fmt.Errorf("listing: mark sold %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ToDomain converts a stored listing into the negotiation input. Unknown
// conditions are treated as good.
func ToDomain(m models.Listing) negotiation.Listing {
	cond, ok := negotiation.ParseCondition(m.Condition)
	if !ok {
		cond = negotiation.ConditionGood
	}
	return negotiation.Listing{
		ID:          m.ID,
		Title:       m.Title,
		AskingPrice: m.AskingPrice,
		Condition:   cond,
		Extras:      splitExtras(m.Extras),
		SellerID:    m.SellerID,
	}
}

func joinExtras(extras []string) string {
	kept := make([]string, 0, len(extras))
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			kept = append(kept, e)
		}
	}
	return strings.Join(kept, ", ")
}

func splitExtras(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
