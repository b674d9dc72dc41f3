package models

import "time"

// Watch is a saved hunt executed on a cron schedule.
type Watch struct {
	Name      string `gorm:"primaryKey;size:64"`
	Query     string `gorm:"size:256;not null"`
	MaxBudget *float64
	TopN      int    `gorm:"default:5"`
	Schedule  string `gorm:"size:64;not null"`
	Active    bool   `gorm:"default:true"`
	LastRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
