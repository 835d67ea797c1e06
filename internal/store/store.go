package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartbin-dashboard/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

const archiveBatchSize = 200

// Store defines the interface for all database operations.
type Store interface {
	ArchiveReadings(ctx context.Context, records []model.HistoryRecord, now time.Time) (int64, error)
	RecentReadings(ctx context.Context, limit int) ([]model.LevelReading, error)
	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// ArchiveReadings inserts history records that are not archived yet. Records
// already stored under the same key are left untouched.
func (s *gormStore) ArchiveReadings(ctx context.Context, records []model.HistoryRecord, now time.Time) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	readings := make([]model.LevelReading, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		readings = append(readings, model.LevelReading{
			StoreKey:   r.ID,
			Level:      r.Level,
			DistanceMm: r.DistanceMm,
			ObservedAt: observedAt(r.TimestampSeconds),
			ArchivedAt: now,
		})
	}
	if len(readings) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_key"}},
		DoNothing: true,
	}).CreateInBatches(&readings, archiveBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive %d readings: %w", len(readings), result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("Archived %d new readings", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// RecentReadings returns the newest archived readings first.
func (s *gormStore) RecentReadings(ctx context.Context, limit int) ([]model.LevelReading, error) {
	var readings []model.LevelReading
	if err := s.db.WithContext(ctx).
		Order("observed_at DESC").
		Limit(limit).
		Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch readings: %w", err)
	}
	return readings, nil
}

// UpsertSubscription creates a subscription or replaces its keys.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
}

// GetSubscription looks up a subscription by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, ErrNotFound
	}
	return sub, err
}

// ListSubscriptions returns every stored subscription.
func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// DeleteSubscription removes a subscription. Deleting a missing one is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func observedAt(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
