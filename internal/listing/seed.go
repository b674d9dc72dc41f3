package listing

import (
	"fmt"
	"os"

	"github.com/zulandar/dealscout/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedFile is the YAML layout accepted by Seed.
type SeedFile struct {
	Listings []SeedListing `yaml:"listings"`
}

// SeedListing is one listing in a seed file. Sold listings serve as
// comparables.
type SeedListing struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	AskingPrice float64  `yaml:"asking_price"`
	Condition   string   `yaml:"condition"`
	Extras      []string `yaml:"extras"`
	SellerID    string   `yaml:"seller_id"`
	Location    string   `yaml:"location"`
	SoldPrice   *float64 `yaml:"sold_price"`
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("listing: read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML.
func ParseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("listing: parse seed: %w", err)
	}
	return &f, nil
}

// Seed upserts every listing in f by ID and returns how many were written.
// Entries without an ID are given one, so reseeding the same file without
// IDs creates duplicates.
func Seed(db *gorm.DB, f *SeedFile) (int, error) {
	rows := make([]models.Listing, 0, len(f.Listings))
	for i, s := range f.Listings {
		l, err := build(CreateOpts{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Category:    s.Category,
			AskingPrice: s.AskingPrice,
			Condition:   s.Condition,
			Extras:      s.Extras,
			SellerID:    s.SellerID,
			Location:    s.Location,
		})
		if err != nil {
			return 0, fmt.Errorf("listing: seed entry %d (%q): %w", i+1, s.Title, err)
		}
		if s.SoldPrice != nil {
			l.Status = StatusSold
			l.SoldPrice = s.SoldPrice
		}
		rows = append(rows, l)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("listing: seed: %w", err)
	}
	return len(rows), nil
}
