package models

import "time"

// Negotiation is a persisted negotiation outcome.
type Negotiation struct {
	ID              string  `gorm:"primaryKey;size:32"`
	ListingID       string  `gorm:"size:32;not null;index"`
	SellerID        string  `gorm:"size:64"`
	Status          string  `gorm:"size:16;not null;index"`
	OriginalPrice   float64 `gorm:"not null"`
	NegotiatedPrice float64 `gorm:"not null"`
	Savings         float64
	SavingsPercent  float64
	TurnCount       int
	MaxBudget       float64
	MinAcceptable   float64
	Reason          string `gorm:"type:text"`
	HuntID          string `gorm:"size:36;index"`
	WatchName       string `gorm:"size:64;index"`
	CompletedAt     time.Time
	CreatedAt       time.Time

	Listing  *Listing             `gorm:"foreignKey:ListingID"`
	Messages []NegotiationMessage `gorm:"foreignKey:NegotiationID"`
}

// NegotiationMessage is one transcript entry of a negotiation, in order.
type NegotiationMessage struct {
	ID            uint     `gorm:"primaryKey;autoIncrement"`
	NegotiationID string   `gorm:"size:32;not null;index:idx_negotiation_seq"`
	Seq           int      `gorm:"not null;index:idx_negotiation_seq"`
	Role          string   `gorm:"size:8;not null"`
	Content       string   `gorm:"type:text"`
	Turn          int
	Action        string `gorm:"size:16"`
	OfferPrice    *float64
	Confidence    *float64
	CreatedAt     time.Time
}
