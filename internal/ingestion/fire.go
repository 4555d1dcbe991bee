package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/transform"
)

// FireSource produces raw fire detections for one fetch.
type FireSource interface {
	Name() string
	Detections(ctx context.Context) ([]transform.FireEvent, error)
}

// FireFetcher persists detections from a pluggable FireSource.
type FireFetcher struct {
	source  FireSource
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFireFetcher reads FIRMS when a map key is configured and falls back to
// the synthetic region sampler otherwise.
func NewFireFetcher(cfg config.SourcesConfig, store Store, metrics *observability.Metrics) *FireFetcher {
	var source FireSource
	if cfg.FIRMSMapKey != "" {
		source = NewFIRMSSource(cfg)
	} else {
		source = NewRegionSampler(nil)
	}
	return NewFireFetcherWithSource(source, store, metrics)
}

func NewFireFetcherWithSource(source FireSource, store Store, metrics *observability.Metrics) *FireFetcher {
	return &FireFetcher{
		source:  source,
		store:   store,
		metrics: orMetrics(metrics),
		logger:  slog.With("source", source.Name()),
	}
}

func (f *FireFetcher) Type() models.DisasterType {
	return models.DisasterTypeFire
}

func (f *FireFetcher) Fetch(ctx context.Context) Result {
	events, err := f.source.Detections(ctx)
	if err != nil {
		f.logger.Error("fire fetch failed", "error", err)
		return failed(f.Type(), err, "Failed to fetch fire data")
	}

	records := make([]*models.Disaster, 0, len(events))
	for _, ev := range events {
		records = append(records, transform.Fire(ev, ""))
	}
	records = transform.Prepare(records)

	newCount, updated := persist(ctx, f.store, records, locationFields, f.metrics, f.logger)
	f.logger.Info("fires processed", "total", len(records), "new", newCount, "updated", updated)
	return succeeded(f.Type(), newCount, updated, len(records), "fires")
}

const (
	firmsProduct = "VIIRS_SNPP_NRT"
	firmsArea    = "world"
	firmsDays    = 1
)

// FIRMSSource reads the NASA FIRMS area CSV API.
type FIRMSSource struct {
	url    string
	minFRP float64
	http   *httpGetter
}

func NewFIRMSSource(cfg config.SourcesConfig) *FIRMSSource {
	base := strings.TrimRight(cfg.FIRMSURL, "/")
	return &FIRMSSource{
		url:    fmt.Sprintf("%s/%s/%s/%s/%d", base, cfg.FIRMSMapKey, firmsProduct, firmsArea, firmsDays),
		minFRP: cfg.FireMinFRP,
		http:   newHTTPGetter(cfg.HTTPTimeout, cfg.UserAgent),
	}
}

func (s *FIRMSSource) Name() string { return "firms" }

func (s *FIRMSSource) Detections(ctx context.Context) ([]transform.FireEvent, error) {
	body, err := s.http.get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return parseFIRMS(body, s.minFRP)
}

// parseFIRMS decodes a FIRMS CSV export. Both the VIIRS (bright_ti4) and
// MODIS (brightness) column sets are accepted. Rows below minFRP or with
// unparseable coordinates are dropped.
func parseFIRMS(data []byte, minFRP float64) ([]transform.FireEvent, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading firms header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("firms csv missing %q column", required)
		}
	}

	field := func(row []string, names ...string) string {
		for _, n := range names {
			if i, ok := cols[n]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}
	number := func(row []string, names ...string) float64 {
		v, _ := strconv.ParseFloat(field(row, names...), 64)
		return v
	}

	var events []transform.FireEvent
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading firms row: %w", err)
		}

		lat, errLat := strconv.ParseFloat(field(row, "latitude"), 64)
		lng, errLng := strconv.ParseFloat(field(row, "longitude"), 64)
		if errLat != nil || errLng != nil {
			continue
		}
		frp := number(row, "frp")
		if frp < minFRP {
			continue
		}

		var area *float64
		if scan := number(row, "scan"); scan > 0 {
			area = models.Float(scan * scan)
		}

		events = append(events, transform.FireEvent{
			Source:     "NASA FIRMS",
			Position:   &models.Coordinates{Latitude: lat, Longitude: lng},
			Brightness: number(row, "bright_ti4", "brightness"),
			FRP:        frp,
			Confidence: field(row, "confidence"),
			Area:       area,
			OccurredAt: firmsTime(field(row, "acq_date"), field(row, "acq_time")),
		})
	}
	return events, nil
}

// firmsTime combines acq_date (YYYY-MM-DD) and acq_time (HHMM, UTC).
func firmsTime(date, hhmm string) time.Time {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}
	}
	if n, err := strconv.Atoi(hhmm); err == nil && n >= 0 {
		d = d.Add(time.Duration(n/100)*time.Hour + time.Duration(n%100)*time.Minute)
	}
	return d.UTC()
}

type fireRegion struct {
	name     string
	lat, lng float64
}

var fireRegions = []fireRegion{
	{"California, USA", 37.8, -120.5},
	{"Queensland, Australia", -25.3, 152.8},
	{"Turkey", 39.9, 32.7},
	{"New Jersey, USA", 40.7, -74.0},
	{"Ontario, Canada", 43.6, -79.3},
}

// RegionSampler produces one synthetic detection per fire-prone region. The
// values are seeded by the UTC date, so repeated runs on the same day yield
// the same records.
type RegionSampler struct {
	clock clockwork.Clock
}

func NewRegionSampler(clock clockwork.Clock) *RegionSampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RegionSampler{clock: clock}
}

func (s *RegionSampler) Name() string { return "fire-sampler" }

func (s *RegionSampler) Detections(ctx context.Context) ([]transform.FireEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seed := uint64(day.Year()*10000 + int(day.Month())*100 + day.Day())
	rng := rand.New(rand.NewPCG(seed, seed))

	events := make([]transform.FireEvent, 0, len(fireRegions))
	for i, region := range fireRegions {
		lat := region.lat + (rng.Float64()-0.5)*0.5
		lng := region.lng + (rng.Float64()-0.5)*0.5
		brightness := 300 + rng.Float64()*100
		frp := 30 + rng.Float64()*50
		confidence := 75 + rng.IntN(21)
		area := 200 + rng.Float64()*300

		events = append(events, transform.FireEvent{
			LocationName: region.name,
			Source:       "NASA FIRMS",
			Position:     &models.Coordinates{Latitude: lat, Longitude: lng},
			Brightness:   float64(int(brightness)),
			FRP:          float64(int(frp*10)) / 10,
			Confidence:   strconv.Itoa(confidence),
			Area:         models.Float(float64(int(area))),
			OccurredAt:   day.Add(time.Duration(12-i) * time.Hour),
		})
	}
	return events, nil
}
