package models

import "time"

// Listing is a product offered for sale on the marketplace.
type Listing struct {
	ID          string    `gorm:"primaryKey;size:32"`
	Title       string    `gorm:"size:256;not null"`
	Description string    `gorm:"type:text"`
	Category    string    `gorm:"size:64;index"`
	AskingPrice float64   `gorm:"not null;index"`
	Condition   string    `gorm:"size:16;default:good"`
	Extras      string    `gorm:"type:text"`
	SellerID    string    `gorm:"size:64;index"`
	Location    string    `gorm:"size:128"`
	Status      string    `gorm:"size:16;default:active;index"`
	SoldPrice   *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
