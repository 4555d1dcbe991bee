package alerts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AgileSeagull/DIAS/internal/models"
)

func quake() *models.Disaster {
	return &models.Disaster{
		DisasterID:   "usgs-ci123",
		Type:         models.DisasterTypeEarthquake,
		Severity:     models.SeverityHigh,
		Title:        "M6.1 Earthquake 10km NE of Los Angeles, California",
		Description:  "Depth: 10.0km",
		LocationName: "10km NE of Los Angeles, California",
		Latitude:     34.0,
		Longitude:    -118.2,
		Magnitude:    models.Float(6.1),
		Depth:        models.Float(10),
		ExternalURL:  models.String("https://earthquake.usgs.gov/earthquakes/eventpage/ci123"),
		OccurredAt:   time.Date(2025, 3, 1, 4, 5, 6, 0, time.FixedZone("PST", -8*3600)),
		IsActive:     true,
	}
}

func TestFormatSubject(t *testing.T) {
	assert.Equal(t, "🌋 HIGH Earthquake Alert in United States", FormatSubject(quake(), "United States"))

	fire := &models.Disaster{Type: models.DisasterTypeFire, Severity: models.SeverityCritical}
	assert.Equal(t, "🔥 CRITICAL Fire Alert in Turkey", FormatSubject(fire, "Turkey"))
}

func TestFormatBody(t *testing.T) {
	body := FormatBody(quake())

	want := "🌋 EARTHQUAKE ALERT\n\n" +
		"Location: 10km NE of Los Angeles, California\n" +
		"Severity: HIGH\n" +
		"Time: 2025-03-01 12:05:06 UTC\n\n" +
		"Magnitude: 6.1\n" +
		"Depth: 10 km\n" +
		"\nDetails: Depth: 10.0km\n" +
		"\nCoordinates: 34, -118.2\n" +
		"\nMore Info: https://earthquake.usgs.gov/earthquakes/eventpage/ci123\n" +
		"\n---\nThis is an automated alert from DIAS (Disaster Information & Alert System).\n" +
		"Stay safe and follow local emergency guidelines."
	assert.Equal(t, want, body)
}

func TestFormatBody_OmitsEmptyFields(t *testing.T) {
	d := &models.Disaster{
		Type:         models.DisasterTypeFlood,
		Severity:     models.SeverityLow,
		LocationName: "Bangladesh",
		Latitude:     23.7,
		Longitude:    90.4,
		OccurredAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	body := FormatBody(d)

	assert.True(t, strings.HasPrefix(body, "🌊 FLOOD ALERT\n\n"))
	assert.NotContains(t, body, "Magnitude")
	assert.NotContains(t, body, "Depth")
	assert.NotContains(t, body, "Details")
	assert.NotContains(t, body, "More Info")
	assert.Contains(t, body, "Coordinates: 23.7, 90.4")
}
