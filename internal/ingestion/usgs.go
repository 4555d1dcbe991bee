package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/transform"
)

type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   usgsGeometry   `json:"geometry"`
}

type usgsProperties struct {
	Mag   *float64 `json:"mag"`
	Place string   `json:"place"`
	Time  int64    `json:"time"` // unix millis
	URL   string   `json:"url"`
	Code  string   `json:"code"`
}

type usgsGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

// EarthquakeFetcher pulls the USGS all_day GeoJSON summary.
type EarthquakeFetcher struct {
	url          string
	minMagnitude float64
	maxAttempts  int
	retryDelay   time.Duration

	http    *httpGetter
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewEarthquakeFetcher(cfg config.SourcesConfig, store Store, metrics *observability.Metrics) *EarthquakeFetcher {
	attempts := cfg.USGSMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &EarthquakeFetcher{
		url:          cfg.USGSURL,
		minMagnitude: cfg.USGSMinMagnitude,
		maxAttempts:  attempts,
		retryDelay:   cfg.USGSRetryDelay,
		http:         newHTTPGetter(cfg.HTTPTimeout, cfg.UserAgent),
		store:        store,
		metrics:      orMetrics(metrics),
		logger:       slog.With("source", "usgs"),
	}
}

func (f *EarthquakeFetcher) Type() models.DisasterType {
	return models.DisasterTypeEarthquake
}

func (f *EarthquakeFetcher) Fetch(ctx context.Context) Result {
	data, err := f.fetchWithRetry(ctx)
	if err != nil {
		f.logger.Error("earthquake fetch failed", "error", err)
		return failed(f.Type(), err, "Failed to fetch earthquake data")
	}

	records := make([]*models.Disaster, 0, len(data.Features))
	for _, feat := range data.Features {
		if feat.Properties.Mag == nil || *feat.Properties.Mag < f.minMagnitude {
			continue
		}
		records = append(records, transform.Earthquake(transform.QuakeEvent{
			Code:        feat.ID,
			Magnitude:   feat.Properties.Mag,
			Place:       feat.Properties.Place,
			TimeMillis:  feat.Properties.Time,
			URL:         feat.Properties.URL,
			Coordinates: feat.Geometry.Coordinates,
		}, "usgs-"+feat.ID))
	}
	records = transform.Prepare(records)

	newCount, updated := persist(ctx, f.store, records, earthquakeFields, f.metrics, f.logger)
	f.logger.Info("earthquakes processed", "total", len(records), "new", newCount, "updated", updated)
	return succeeded(f.Type(), newCount, updated, len(records), "earthquakes")
}

func (f *EarthquakeFetcher) fetchWithRetry(ctx context.Context) (*usgsResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		data, err := f.fetchOnce(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.logger.Warn("earthquake fetch attempt failed", "attempt", attempt, "max_attempts", f.maxAttempts, "error", err)

		if attempt < f.maxAttempts && !sleepWithContext(ctx, f.retryDelay) {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", f.maxAttempts, lastErr)
}

func (f *EarthquakeFetcher) fetchOnce(ctx context.Context) (*usgsResponse, error) {
	body, err := f.http.get(ctx, f.url)
	if err != nil {
		return nil, err
	}

	var data usgsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("error decoding usgs feed: %w", err)
	}
	return &data, nil
}

func earthquakeFields(d *models.Disaster) map[string]any {
	return map[string]any{
		"type":          d.Type,
		"severity":      d.Severity,
		"title":         d.Title,
		"description":   d.Description,
		"location_name": d.LocationName,
		"latitude":      d.Latitude,
		"longitude":     d.Longitude,
		"magnitude":     d.Magnitude,
		"depth":         d.Depth,
		"source":        d.Source,
		"external_url":  d.ExternalURL,
		"occurred_at":   d.OccurredAt.UTC(),
	}
}
