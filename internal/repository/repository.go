package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AgileSeagull/DIAS/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time
	Type         *models.DisasterType
	Severity     *models.Severity
	MinSeverity  *models.Severity // >= this level (e.g. high includes high and critical)
	MinMagnitude *float64
	Active       *bool
}

// TypeStats is the per-type breakdown served by the stats endpoint.
type TypeStats struct {
	Type       models.DisasterType       `json:"type"`
	Total      int64                     `json:"total"`
	Active     int64                     `json:"active"`
	BySeverity map[models.Severity]int64 `json:"by_severity"`
}

type SubscriptionStats struct {
	Total        int64            `json:"total"`
	Confirmed    int64            `json:"confirmed"`
	Pending      int64            `json:"pending"`
	Unsubscribed int64            `json:"unsubscribed"`
	ByCountry    map[string]int64 `json:"by_country"` // confirmed + pending
}

type DisasterRepository interface {
	FindByDisasterID(ctx context.Context, disasterID string) (*models.Disaster, error)
	Insert(ctx context.Context, d *models.Disaster) error
	Update(ctx context.Context, disasterID string, fields map[string]any) error
	// ListActive returns active disasters, newest occurred_at first.
	ListActive(ctx context.Context) ([]models.Disaster, error)
	ListDisasters(ctx context.Context, opts Filter) ([]models.Disaster, error)
	Stats(ctx context.Context) ([]TypeStats, error)
}

type TopicRepository interface {
	GetTopic(ctx context.Context, country string) (*models.CountryTopic, error)
	SaveTopic(ctx context.Context, t *models.CountryTopic) error
	UpdateCount(ctx context.Context, country string, count int) error
	// ZeroCountsExcept sets disaster_count to 0 on every topic whose country
	// is not listed.
	ZeroCountsExcept(ctx context.Context, countries []string) (int64, error)
	ListTopics(ctx context.Context) ([]models.CountryTopic, error)
	DeleteTopic(ctx context.Context, country string) error
}

type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, s *models.Subscription) error
	GetSubscription(ctx context.Context, id uint, email string) (*models.Subscription, error)
	FindSubscription(ctx context.Context, email, country string) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, email string) ([]models.Subscription, error)
	MarkUnsubscribed(ctx context.Context, id uint) error
	SubscriptionStats(ctx context.Context) (SubscriptionStats, error)
}

type AlertLogRepository interface {
	LogAlert(ctx context.Context, a *models.AlertLog) error
	ListAlertLogs(ctx context.Context, limit int) ([]models.AlertLog, error)
}
