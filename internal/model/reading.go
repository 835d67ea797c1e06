package model

import "time"

// LevelReading is an archived history record (cold table).
type LevelReading struct {
	StoreKey   string    `gorm:"primaryKey;size:128"` // Upstream push ID
	Level      float64   `gorm:"not null"`
	DistanceMm float64   `gorm:"not null"`
	ObservedAt time.Time `gorm:"not null;index"`
	ArchivedAt time.Time `gorm:"not null"`
}
