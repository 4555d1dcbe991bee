package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// UpsertSubscription inserts s or, when (email, country) already exists,
// overwrites its handle, status and subscribed_at. s is reloaded afterwards
// so ID reflects the stored row.
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}, {Name: "country"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_handle", "status", "subscribed_at", "confirmed_at"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscription %s/%s: %w", sub.Email, sub.Country, err)
	}

	var stored models.Subscription
	if err := db.Where("email = ? AND country = ?", sub.Email, sub.Country).First(&stored).Error; err != nil {
		return fmt.Errorf("reload subscription %s/%s: %w", sub.Email, sub.Country, err)
	}
	*sub = stored
	return nil
}

// GetSubscription looks a subscription up by id, scoped to its owner email.
func (s *Store) GetSubscription(ctx context.Context, id uint, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("id = ? AND email = ?", id, email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return &sub, nil
}

// FindSubscription looks a subscription up by its (email, country) key,
// whatever its status.
func (s *Store) FindSubscription(ctx context.Context, email, country string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("email = ? AND country = ?", email, country).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription %s/%s: %w", email, country, err)
	}
	return &sub, nil
}

// ListSubscriptions returns the live (not unsubscribed) subscriptions of email.
func (s *Store) ListSubscriptions(ctx context.Context, email string) ([]models.Subscription, error) {
	var out []models.Subscription
	err := s.db.WithContext(ctx).
		Where("email = ? AND status <> ?", email, models.SubscriptionUnsubscribed).
		Order("subscribed_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

func (s *Store) MarkUnsubscribed(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", models.SubscriptionUnsubscribed)
	if res.Error != nil {
		return fmt.Errorf("unsubscribe %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SubscriptionStats(ctx context.Context) (SubscriptionStats, error) {
	stats := SubscriptionStats{ByCountry: map[string]int64{}}

	var rows []struct {
		Country string
		Status  string
		Count   int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("country, status, COUNT(*) AS count").
		Group("country, status").
		Scan(&rows).Error
	if err != nil {
		return stats, fmt.Errorf("subscription stats: %w", err)
	}

	for _, r := range rows {
		stats.Total += r.Count
		switch models.SubscriptionStatus(r.Status) {
		case models.SubscriptionConfirmed:
			stats.Confirmed += r.Count
			stats.ByCountry[r.Country] += r.Count
		case models.SubscriptionPending:
			stats.Pending += r.Count
			stats.ByCountry[r.Country] += r.Count
		case models.SubscriptionUnsubscribed:
			stats.Unsubscribed += r.Count
		}
	}
	return stats, nil
}

func (s *Store) LogAlert(ctx context.Context, a *models.AlertLog) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("log alert %s/%s: %w", a.DisasterID, a.Country, err)
	}
	return nil
}

// ListAlertLogs returns the newest entries first.
func (s *Store) ListAlertLogs(ctx context.Context, limit int) ([]models.AlertLog, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.AlertLog
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list alert logs: %w", err)
	}
	return out, nil
}
