// Package ingestion pulls disaster events from external feeds and upserts
// them into the store by natural key.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

// Result is the outcome of one fetcher run. Counts are zero on failure.
type Result struct {
	Type    models.DisasterType `json:"type"`
	Success bool                `json:"success"`
	New     int                 `json:"new"`
	Updated int                 `json:"updated"`
	Total   int                 `json:"total"`
	Error   string              `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Fetcher retrieves one disaster type from its feed and persists it. Fetch
// reports feed failures in the Result rather than returning an error.
type Fetcher interface {
	Type() models.DisasterType
	Fetch(ctx context.Context) Result
}

// Store is the part of the disaster repository the fetchers write through.
type Store interface {
	FindByDisasterID(ctx context.Context, disasterID string) (*models.Disaster, error)
	Insert(ctx context.Context, d *models.Disaster) error
	Update(ctx context.Context, disasterID string, fields map[string]any) error
}

func failed(t models.DisasterType, err error, message string) Result {
	return Result{Type: t, Success: false, Error: err.Error(), Message: message}
}

func succeeded(t models.DisasterType, newCount, updated, total int, noun string) Result {
	return Result{
		Type:    t,
		Success: true,
		New:     newCount,
		Updated: updated,
		Total:   total,
		Message: fmt.Sprintf("Successfully processed %d %s (%d new, %d updated)", total, noun, newCount, updated),
	}
}

// fieldsFunc picks the columns an update touches for an existing record.
type fieldsFunc func(d *models.Disaster) map[string]any

// persist upserts each record by disaster_id. A record that fails to load or
// save is logged and skipped.
func persist(ctx context.Context, store Store, records []*models.Disaster, fields fieldsFunc, metrics *observability.Metrics, logger *slog.Logger) (newCount, updated int) {
	for _, d := range records {
		_, err := store.FindByDisasterID(ctx, d.DisasterID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if err := store.Insert(ctx, d); err != nil {
				logger.Error("failed to insert disaster", "disaster_id", d.DisasterID, "error", err)
				continue
			}
			newCount++
			metrics.RecordsUpserted.WithLabelValues(string(d.Type), "insert").Inc()
		case err != nil:
			logger.Error("failed to look up disaster", "disaster_id", d.DisasterID, "error", err)
		default:
			if err := store.Update(ctx, d.DisasterID, fields(d)); err != nil {
				logger.Error("failed to update disaster", "disaster_id", d.DisasterID, "error", err)
				continue
			}
			updated++
			metrics.RecordsUpserted.WithLabelValues(string(d.Type), "update").Inc()
		}
	}
	return newCount, updated
}

// locationFields are the columns every source refreshes on a re-sighting.
func locationFields(d *models.Disaster) map[string]any {
	return map[string]any{
		"severity":      d.Severity,
		"title":         d.Title,
		"description":   d.Description,
		"location_name": d.LocationName,
		"latitude":      d.Latitude,
		"longitude":     d.Longitude,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func orMetrics(m *observability.Metrics) *observability.Metrics {
	if m == nil {
		return observability.NewMetricsForTesting()
	}
	return m
}
