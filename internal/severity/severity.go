// Package severity maps raw per-source signals to a models.Severity.
// Every function is total: it never fails and always returns a level.
package severity

import (
	"strings"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// Signals carries the inputs used by For. Only the fields relevant to the
// disaster type are read.
type Signals struct {
	Magnitude  float64
	AlertLevel string
	Population float64
	Brightness float64
	FRP        float64
	WindMph    float64
	Category   int
}

func Earthquake(magnitude float64) models.Severity {
	switch {
	case magnitude >= 7:
		return models.SeverityCritical
	case magnitude >= 5.5:
		return models.SeverityHigh
	case magnitude >= 4:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// AlertOrdinal maps a GDACS-style alert colour to red=4, orange=3,
// yellow=2, green=1. Anything else counts as green.
func AlertOrdinal(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "red":
		return 4
	case "orange":
		return 3
	case "yellow":
		return 2
	default:
		return 1
	}
}

// Flood takes whichever of the alert level and affected population yields
// the higher severity.
func Flood(alertLevel string, population float64) models.Severity {
	ord := AlertOrdinal(alertLevel)
	switch {
	case ord == 4 || population > 1_000_000:
		return models.SeverityCritical
	case ord >= 3 || population > 100_000:
		return models.SeverityHigh
	case ord >= 2 || population > 10_000:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// Fire classifies by brightness temperature (K) or fire radiative power (MW).
func Fire(brightness, frp float64) models.Severity {
	switch {
	case brightness > 400 || frp > 100:
		return models.SeverityCritical
	case brightness > 350 || frp > 50:
		return models.SeverityHigh
	case brightness > 320 || frp > 20:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

func Cyclone(windMph float64, category int) models.Severity {
	switch {
	case category >= 4 || windMph >= 130:
		return models.SeverityCritical
	case category >= 2 || windMph >= 96:
		return models.SeverityHigh
	case category >= 1 || windMph >= 74:
		return models.SeverityModerate
	default:
		// tropical storm (>=39 mph) and depression both map to low
		return models.SeverityLow
	}
}

// CycloneCategory returns the Saffir-Simpson category for a sustained wind
// speed in mph, 0 below hurricane strength.
func CycloneCategory(windMph float64) int {
	switch {
	case windMph >= 157:
		return 5
	case windMph >= 130:
		return 4
	case windMph >= 111:
		return 3
	case windMph >= 96:
		return 2
	case windMph >= 74:
		return 1
	default:
		return 0
	}
}

func For(t models.DisasterType, s Signals) models.Severity {
	switch t {
	case models.DisasterTypeEarthquake:
		return Earthquake(s.Magnitude)
	case models.DisasterTypeFlood:
		return Flood(s.AlertLevel, s.Population)
	case models.DisasterTypeFire:
		return Fire(s.Brightness, s.FRP)
	case models.DisasterTypeCyclone:
		return Cyclone(s.WindMph, s.Category)
	default:
		return models.SeverityModerate
	}
}
