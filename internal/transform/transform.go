// Package transform converts raw source events into models.Disaster records.
//
// Transform functions never panic. A record whose coordinates are missing,
// non-finite or out of range is rejected by returning nil.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/severity"
)

const unknownLocation = "Unknown Location"

// QuakeEvent is one USGS GeoJSON feature.
type QuakeEvent struct {
	Code        string
	Magnitude   *float64
	Place       string
	TimeMillis  int64
	URL         string
	Coordinates []float64 // [lon, lat, depth]
}

type FloodEvent struct {
	Title        string
	Description  string
	LocationName string
	Source       string
	URL          string
	Position     *models.Coordinates
	AlertLevel   string
	Population   float64
	AffectedArea *float64
	OccurredAt   time.Time
}

type FireEvent struct {
	Title        string
	Description  string
	LocationName string
	Source       string
	Position     *models.Coordinates
	Brightness   float64 // K
	FRP          float64 // MW
	Confidence   string
	Area         *float64
	OccurredAt   time.Time
}

type CycloneEvent struct {
	Name         string
	Title        string
	Description  string
	LocationName string
	Source       string
	URL          string
	Position     *models.Coordinates
	WindMph      float64
	Category     int
	AffectedArea *float64
	OccurredAt   time.Time
}

// ValidCoordinates reports whether lat/lng are finite and within
// [-90,90] x [-180,180].
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func Earthquake(ev QuakeEvent, disasterID string) *models.Disaster {
	if len(ev.Coordinates) < 2 {
		return nil
	}
	lng, lat := ev.Coordinates[0], ev.Coordinates[1]
	if !ValidCoordinates(lat, lng) {
		return nil
	}

	var mag, depth float64
	if ev.Magnitude != nil {
		mag = *ev.Magnitude
	}
	if len(ev.Coordinates) > 2 && !math.IsNaN(ev.Coordinates[2]) {
		depth = ev.Coordinates[2]
	}
	if disasterID == "" {
		disasterID = "usgs-" + ev.Code
	}

	title := fmt.Sprintf("M%.1f Earthquake %s", mag, orDefault(ev.Place, "Location Unknown"))
	occurred := now()
	if ev.TimeMillis != 0 {
		occurred = time.UnixMilli(ev.TimeMillis).UTC()
	}

	return &models.Disaster{
		DisasterID:   disasterID,
		Type:         models.DisasterTypeEarthquake,
		Severity:     severity.Earthquake(mag),
		Title:        title,
		Description:  fmt.Sprintf("Depth: %.1fkm", depth),
		LocationName: orDefault(ev.Place, unknownLocation),
		Latitude:     round(lat, 8),
		Longitude:    round(lng, 8),
		Magnitude:    models.Float(round(mag, 1)),
		Depth:        models.Float(round(depth, 2)),
		Source:       "USGS",
		ExternalURL:  models.String(ev.URL),
		OccurredAt:   occurred,
		IsActive:     true,
	}
}

func Flood(ev FloodEvent, disasterID string) *models.Disaster {
	if ev.Position == nil || !ValidCoordinates(ev.Position.Latitude, ev.Position.Longitude) {
		return nil
	}
	if disasterID == "" {
		disasterID = DerivedKey("flood", ev.Position.Latitude, ev.Position.Longitude, occurredOrNow(ev.OccurredAt))
	}

	return &models.Disaster{
		DisasterID:   disasterID,
		Type:         models.DisasterTypeFlood,
		Severity:     severity.Flood(ev.AlertLevel, ev.Population),
		Title:        orDefault(ev.Title, "Flood Alert"),
		Description:  orDefault(ev.Description, "Flood warning issued"),
		LocationName: orDefault(ev.LocationName, unknownLocation),
		Latitude:     round(ev.Position.Latitude, 8),
		Longitude:    round(ev.Position.Longitude, 8),
		AffectedArea: ev.AffectedArea,
		Source:       orDefault(ev.Source, "GDACS"),
		ExternalURL:  models.String(ev.URL),
		OccurredAt:   occurredOrNow(ev.OccurredAt),
		IsActive:     true,
	}
}

func Fire(ev FireEvent, disasterID string) *models.Disaster {
	if ev.Position == nil || !ValidCoordinates(ev.Position.Latitude, ev.Position.Longitude) {
		return nil
	}

	brightness := ev.Brightness
	if brightness == 0 {
		brightness = 320
	}
	location := orDefault(ev.LocationName, unknownLocation)
	if disasterID == "" {
		disasterID = DerivedKey("fire", ev.Position.Latitude, ev.Position.Longitude, occurredOrNow(ev.OccurredAt))
	}

	description := ev.Description
	if description == "" {
		description = fmt.Sprintf("Brightness: %sK, Confidence: %s%%",
			strconv.FormatFloat(brightness, 'f', -1, 64), orDefault(ev.Confidence, "0"))
	}

	return &models.Disaster{
		DisasterID:   disasterID,
		Type:         models.DisasterTypeFire,
		Severity:     severity.Fire(brightness, ev.FRP),
		Title:        orDefault(ev.Title, "Wildfire detected near "+location),
		Description:  description,
		LocationName: location,
		Latitude:     round(ev.Position.Latitude, 8),
		Longitude:    round(ev.Position.Longitude, 8),
		AffectedArea: ev.Area,
		Source:       orDefault(ev.Source, "NASA FIRMS"),
		OccurredAt:   occurredOrNow(ev.OccurredAt),
		IsActive:     true,
	}
}

func Cyclone(ev CycloneEvent, disasterID string) *models.Disaster {
	if ev.Position == nil || !ValidCoordinates(ev.Position.Latitude, ev.Position.Longitude) {
		return nil
	}
	if disasterID == "" {
		disasterID = DerivedKey("cyclone", ev.Position.Latitude, ev.Position.Longitude, occurredOrNow(ev.OccurredAt))
	}

	category := "Storm"
	var magnitude *float64
	if ev.Category > 0 {
		category = strconv.Itoa(ev.Category)
		magnitude = models.Float(float64(ev.Category))
	}

	title := ev.Title
	if title == "" {
		title = fmt.Sprintf("%s - Category %s", orDefault(ev.Name, "Cyclone"), category)
	}
	description := ev.Description
	if description == "" {
		description = fmt.Sprintf("Wind Speed: %s mph", strconv.FormatFloat(ev.WindMph, 'f', -1, 64))
	}

	return &models.Disaster{
		DisasterID:   disasterID,
		Type:         models.DisasterTypeCyclone,
		Severity:     severity.Cyclone(ev.WindMph, ev.Category),
		Title:        title,
		Description:  description,
		LocationName: orDefault(ev.LocationName, unknownLocation),
		Latitude:     round(ev.Position.Latitude, 8),
		Longitude:    round(ev.Position.Longitude, 8),
		Magnitude:    magnitude,
		AffectedArea: ev.AffectedArea,
		Source:       orDefault(ev.Source, "NOAA"),
		ExternalURL:  models.String(ev.URL),
		OccurredAt:   occurredOrNow(ev.OccurredAt),
		IsActive:     true,
	}
}

// DerivedKey builds a natural key for sources without stable ids:
// "<prefix>-<lat %.2f>-<lng %.2f>-<YYYY-MM-DD>".
func DerivedKey(prefix string, lat, lng float64, t time.Time) string {
	return fmt.Sprintf("%s-%.2f-%.2f-%s", prefix, lat, lng, t.UTC().Format("2006-01-02"))
}

// Validate checks the fields every persisted record must carry.
func Validate(d *models.Disaster) bool {
	if d == nil {
		return false
	}
	return d.DisasterID != "" &&
		d.Type.Valid() &&
		d.Severity.Rank() > 0 &&
		!d.OccurredAt.IsZero() &&
		ValidCoordinates(d.Latitude, d.Longitude)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func occurredOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t.UTC()
}
