package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"helmetguard-client/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	SaveAlert(ctx context.Context, rec *model.AlertRecord) error
	UpdateAlertOutcome(ctx context.Context, id string, outcome AlertOutcome) error
	GetAlert(ctx context.Context, id string) (*model.AlertRecord, error)
	ListAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle.
func (s *gormStore) DB() *gorm.DB { return s.db }

// SaveAlert inserts a new alert record.
func (s *gormStore) SaveAlert(ctx context.Context, rec *model.AlertRecord) error {
	if rec.Outcome == "" {
		rec.Outcome = OutcomePending
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save alert %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateAlertOutcome records how delivery of an alert concluded.
func (s *gormStore) UpdateAlertOutcome(ctx context.Context, id string, o AlertOutcome) error {
	res := s.db.WithContext(ctx).
		Model(&model.AlertRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":         o.Outcome,
			"sent_count":      o.SentCount,
			"failed_count":    o.FailedCount,
			"failed_contacts": strings.Join(o.FailedContacts, ", "),
			"message":         o.Message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update alert %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAlert fetches one alert record.
func (s *gormStore) GetAlert(ctx context.Context, id string) (*model.AlertRecord, error) {
	var rec model.AlertRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch alert %s: %w", id, err)
	}
	return &rec, nil
}

// ListAlerts returns the newest alerts first.
func (s *gormStore) ListAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.AlertRecord
	if err := s.db.WithContext(ctx).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return recs, nil
}

// UpsertSubscription creates or replaces a push subscription.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "label"}),
	}).Create(sub).Error
}

// GetSubscription fetches a subscription by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// ListSubscriptions returns every registered subscription.
func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
