// Package ledger persists negotiation results and their transcripts.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a negotiation does not exist.
var ErrNotFound = errors.New("ledger: not found")

// SaveOpts tags a saved negotiation with where it came from.
type SaveOpts struct {
	ID        string // optional; generated when empty
	HuntID    string
	WatchName string
}

// ListFilters holds optional filters for listing negotiations.
type ListFilters struct {
	ListingID string
	Status    string
	HuntID    string
	WatchName string
	Limit     int
}

// NewID returns a sortable unique negotiation ID.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// Save writes res and its transcript in one transaction.
func Save(db *gorm.DB, res negotiation.Result, opts SaveOpts) (*models.Negotiation, error) {
	id := opts.ID
	if id == "" {
		id = NewID()
	}
	n := models.Negotiation{
		ID:              id,
		ListingID:       res.ListingID,
		SellerID:        res.SellerID,
		Status:          string(res.Status),
		OriginalPrice:   res.OriginalPrice,
		NegotiatedPrice: res.NegotiatedPrice,
		Savings:         res.Savings,
		SavingsPercent:  res.SavingsPercent,
		TurnCount:       res.TurnCount,
		MaxBudget:       res.MaxBudget,
		MinAcceptable:   res.MinAcceptable,
		Reason:          res.Reason,
		HuntID:          opts.HuntID,
		WatchName:       opts.WatchName,
		CompletedAt:     res.CompletedAt,
	}
	msgs := make([]models.NegotiationMessage, 0, len(res.Messages))
	for i, m := range res.Messages {
		msgs = append(msgs, models.NegotiationMessage{
			NegotiationID: id,
			Seq:           i + 1,
			Role:          string(m.Role),
			Content:       m.Content,
			Turn:          m.Turn,
			Action:        string(m.Action),
			OfferPrice:    m.OfferPrice,
			Confidence:    m.Confidence,
			CreatedAt:     m.Timestamp,
		})
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&n).Error; err != nil {
			return fmt.Errorf("create negotiation: %w", err)
		}
		if len(msgs) > 0 {
			if err := tx.CreateInBatches(&msgs, 100).Error; err != nil {
				return fmt.Errorf("create messages: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: save %s: %w", id, err)
	}
	n.Messages = msgs
	return &n, nil
}

// Get retrieves a negotiation with its listing and ordered transcript.
func Get(db *gorm.DB, id string) (*models.Negotiation, error) {
	var n models.Negotiation
	err := db.Preload("Listing").
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("ledger: get %s: %w", id, err)
	}
	return &n, nil
}

// List returns negotiations matching filters, most recently completed first.
// Transcripts are not loaded.
func List(db *gorm.DB, filters ListFilters) ([]models.Negotiation, error) {
	q := db.Model(&models.Negotiation{})
	if filters.ListingID != "" {
		q = q.Where("listing_id = ?", filters.ListingID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.HuntID != "" {
		q = q.Where("hunt_id = ?", filters.HuntID)
	}
	if filters.WatchName != "" {
		q = q.Where("watch_name = ?", filters.WatchName)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var out []models.Negotiation
	if err := q.Order("completed_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	return out, nil
}

// ToResult rebuilds the negotiation result from a stored record.
func ToResult(n models.Negotiation) negotiation.Result {
	res := negotiation.Result{
		ListingID:       n.ListingID,
		SellerID:        n.SellerID,
		OriginalPrice:   n.OriginalPrice,
		NegotiatedPrice: n.NegotiatedPrice,
		Status:          negotiation.Status(n.Status),
		Savings:         n.Savings,
		SavingsPercent:  n.SavingsPercent,
		TurnCount:       n.TurnCount,
		MaxBudget:       n.MaxBudget,
		MinAcceptable:   n.MinAcceptable,
		Reason:          n.Reason,
		CompletedAt:     n.CompletedAt,
		Messages:        make([]negotiation.Message, 0, len(n.Messages)),
	}
	for _, m := range n.Messages {
		res.Messages = append(res.Messages, negotiation.Message{
			Role:       negotiation.Role(m.Role),
			Content:    m.Content,
			Turn:       m.Turn,
			Action:     negotiation.Action(m.Action),
			OfferPrice: m.OfferPrice,
			Confidence: m.Confidence,
			Timestamp:  m.CreatedAt,
		})
	}
	return res
}
