package ingestion

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/transform"
)

var floodTitlePrefix = regexp.MustCompile(`(?i)flood.*?alert:?\s*`)

// FloodFetcher selects flood items from the GDACS RSS feed.
type FloodFetcher struct {
	url     string
	http    *httpGetter
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewFloodFetcher(cfg config.SourcesConfig, store Store, metrics *observability.Metrics) *FloodFetcher {
	return &FloodFetcher{
		url:     cfg.GDACSURL,
		http:    newHTTPGetter(cfg.HTTPTimeout, cfg.UserAgent),
		store:   store,
		metrics: orMetrics(metrics),
		logger:  slog.With("source", "gdacs-flood"),
	}
}

func (f *FloodFetcher) Type() models.DisasterType {
	return models.DisasterTypeFlood
}

func (f *FloodFetcher) Fetch(ctx context.Context) Result {
	items, err := fetchGDACS(ctx, f.http, f.url)
	if err != nil {
		f.logger.Error("flood fetch failed", "error", err)
		return failed(f.Type(), err, "Failed to fetch flood data")
	}

	var records []*models.Disaster
	for _, item := range items {
		if !isFlood(item) {
			continue
		}
		pos := item.position()
		if pos == nil {
			f.logger.Debug("flood item without coordinates skipped", "event_id", item.EventID)
			continue
		}
		population, _ := item.Population.float()
		records = append(records, transform.Flood(transform.FloodEvent{
			Title:        strings.TrimSpace(item.Title),
			Description:  plainText(item.Description),
			LocationName: floodLocation(item),
			Source:       "GDACS",
			URL:          strings.TrimSpace(item.Link),
			Position:     pos,
			AlertLevel:   item.AlertLevel,
			Population:   population,
			OccurredAt:   item.occurredAt(),
		}, ""))
	}
	records = transform.Prepare(records)

	newCount, updated := persist(ctx, f.store, records, locationFields, f.metrics, f.logger)
	f.logger.Info("floods processed", "total", len(records), "new", newCount, "updated", updated)
	return succeeded(f.Type(), newCount, updated, len(records), "floods")
}

func isFlood(item gdacsItem) bool {
	if t, ok := mapGDACSEventType(item.EventType); ok && t == models.DisasterTypeFlood {
		return true
	}
	return strings.Contains(strings.ToLower(item.Title), "flood")
}

func floodLocation(item gdacsItem) string {
	if c := strings.TrimSpace(item.Country); c != "" {
		return c
	}
	if place, ok := placeFromTitle(item.Title); ok {
		return place
	}
	return strings.TrimSpace(floodTitlePrefix.ReplaceAllString(item.Title, ""))
}
