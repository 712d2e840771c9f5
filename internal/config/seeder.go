package config

import (
	"log"
	"time"

	"saccotrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedTreasurer(); err != nil {
		log.Printf("⚠️ Treasurer seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedTreasurer seeds a default treasurer member.
// This is for development/testing only.
func (s *Seeder) seedTreasurer() error {
	var count int64
	s.db.Model(&models.Member{}).Where("role = ?", "TREASURER").Count(&count)
	if count > 0 {
		return nil // Treasurer already exists
	}

	treasurer := &models.Member{
		FullName:       "Default Treasurer",
		Phone:          "0700000000",
		Email:          "treasurer@saccotrack.io",
		Role:           "TREASURER",
		Status:         "APPROVED",
		IsActive:       true,
		LastActivityAt: time.Now(),
	}
	if err := s.db.Create(treasurer).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded treasurer member #%d", treasurer.ID)
	return nil
}
