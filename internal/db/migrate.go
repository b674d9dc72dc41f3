package db

import (
	"fmt"

	"github.com/zulandar/dealscout/internal/config"
	"github.com/zulandar/dealscout/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Listing{},
		&models.Negotiation{},
		&models.NegotiationMessage{},
		&models.AgentLog{},
		&models.Watch{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	all := AllModels()
	// Children first so foreign keys do not block the drop.
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return AutoMigrate(db)
}

// SeedWatches upserts Watch rows from configuration.
func SeedWatches(db *gorm.DB, watches []config.WatchConfig) error {
	for _, wc := range watches {
		w := models.Watch{
			Name:      wc.Name,
			Query:     wc.Query,
			MaxBudget: wc.MaxBudget,
			TopN:      wc.TopN,
			Schedule:  wc.Schedule,
			Active:    true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"query", "max_budget", "top_n", "schedule", "active", "updated_at"}),
		}).Create(&w)
		if result.Error != nil {
			return fmt.Errorf("db: seed watch %q: %w", wc.Name, result.Error)
		}
	}
	return nil
}
