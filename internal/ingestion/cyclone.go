package ingestion

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/severity"
	"github.com/AgileSeagull/DIAS/internal/transform"
)

const kmhToMph = 0.621371

var (
	cycloneKeywords = []string{"tropical", "cyclone", "hurricane", "typhoon"}
	cycloneWords    = regexp.MustCompile(`(?i)\b(cyclone|hurricane|typhoon)\b`)
	leadingWord     = regexp.MustCompile(`^\w+`)
)

// nominalWind is used when GDACS gives no wind speed: category and mph by
// alert level.
var nominalWind = map[string]struct {
	category int
	mph      float64
}{
	"red":    {3, 111},
	"orange": {2, 96},
	"yellow": {1, 74},
	"green":  {0, 39},
}

// CycloneFetcher selects tropical cyclone items from the GDACS RSS feed.
type CycloneFetcher struct {
	url     string
	http    *httpGetter
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewCycloneFetcher(cfg config.SourcesConfig, store Store, metrics *observability.Metrics) *CycloneFetcher {
	return &CycloneFetcher{
		url:     cfg.GDACSURL,
		http:    newHTTPGetter(cfg.HTTPTimeout, cfg.UserAgent),
		store:   store,
		metrics: orMetrics(metrics),
		logger:  slog.With("source", "gdacs-cyclone"),
	}
}

func (f *CycloneFetcher) Type() models.DisasterType {
	return models.DisasterTypeCyclone
}

func (f *CycloneFetcher) Fetch(ctx context.Context) Result {
	items, err := fetchGDACS(ctx, f.http, f.url)
	if err != nil {
		f.logger.Error("cyclone fetch failed", "error", err)
		return failed(f.Type(), err, "Failed to fetch cyclone data")
	}

	var records []*models.Disaster
	for _, item := range items {
		if !isCyclone(item) {
			continue
		}
		pos := item.position()
		if pos == nil {
			f.logger.Debug("cyclone item without coordinates skipped", "event_id", item.EventID)
			continue
		}
		mph, category := cycloneWind(item)
		records = append(records, transform.Cyclone(transform.CycloneEvent{
			Name:         cycloneName(item),
			LocationName: cycloneLocation(item),
			Source:       "GDACS",
			URL:          strings.TrimSpace(item.Link),
			Position:     pos,
			WindMph:      mph,
			Category:     category,
			OccurredAt:   item.occurredAt(),
		}, ""))
	}
	records = transform.Prepare(records)

	if len(records) == 0 {
		f.logger.Info("no active cyclones")
		return Result{Type: f.Type(), Success: true, Message: "No active cyclones detected"}
	}

	newCount, updated := persist(ctx, f.store, records, cycloneFields, f.metrics, f.logger)
	f.logger.Info("cyclones processed", "total", len(records), "new", newCount, "updated", updated)
	return succeeded(f.Type(), newCount, updated, len(records), "cyclones")
}

func isCyclone(item gdacsItem) bool {
	if t, ok := mapGDACSEventType(item.EventType); ok && t == models.DisasterTypeCyclone {
		return true
	}
	title := strings.ToLower(item.Title)
	for _, k := range cycloneKeywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}

// cycloneWind converts the gdacs:severity value to mph and derives the
// Saffir-Simpson category, falling back to nominal values by alert level.
func cycloneWind(item gdacsItem) (float64, int) {
	if v, ok := item.Severity.float(); ok && v > 0 {
		mph := v
		if !strings.Contains(strings.ToLower(item.Severity.Unit), "mph") {
			mph = v * kmhToMph
		}
		mph = math.Round(mph)
		return mph, severity.CycloneCategory(mph)
	}

	n, ok := nominalWind[strings.ToLower(strings.TrimSpace(item.AlertLevel))]
	if !ok {
		n = nominalWind["green"]
	}
	return n.mph, n.category
}

func cycloneName(item gdacsItem) string {
	if name := strings.TrimSpace(item.EventName); name != "" {
		return name
	}
	if w := leadingWord.FindString(strings.TrimSpace(item.Title)); w != "" {
		return w
	}
	return "Storm"
}

func cycloneLocation(item gdacsItem) string {
	if c := strings.TrimSpace(item.Country); c != "" {
		return c
	}
	if place, ok := placeFromTitle(item.Title); ok {
		return place
	}
	return strings.Join(strings.Fields(cycloneWords.ReplaceAllString(item.Title, "")), " ")
}

func cycloneFields(d *models.Disaster) map[string]any {
	fields := locationFields(d)
	fields["magnitude"] = d.Magnitude
	return fields
}
