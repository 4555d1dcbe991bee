package models

import (
	"strings"
	"time"
)

type DisasterType string

const (
	DisasterTypeEarthquake DisasterType = "earthquake"
	DisasterTypeFlood      DisasterType = "flood"
	DisasterTypeFire       DisasterType = "fire"
	DisasterTypeCyclone    DisasterType = "cyclone"
)

// DisasterTypes lists every type the ingestion path knows about, in the
// order sources are reported.
var DisasterTypes = []DisasterType{
	DisasterTypeEarthquake,
	DisasterTypeFlood,
	DisasterTypeFire,
	DisasterTypeCyclone,
}

func (t DisasterType) Valid() bool {
	switch t {
	case DisasterTypeEarthquake, DisasterTypeFlood, DisasterTypeFire, DisasterTypeCyclone:
		return true
	}
	return false
}

// Title returns the capitalised type name ("Earthquake").
func (t DisasterType) Title() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Emoji is the marker used in alert subjects and bodies.
func (t DisasterType) Emoji() string {
	switch t {
	case DisasterTypeEarthquake:
		return "🌋"
	case DisasterTypeFlood:
		return "🌊"
	case DisasterTypeFire:
		return "🔥"
	case DisasterTypeCyclone:
		return "🌪️"
	default:
		return "⚠️"
	}
}

func ParseDisasterType(s string) (DisasterType, bool) {
	t := DisasterType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Disaster is the canonical event record shared by every source.
type Disaster struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	DisasterID   string       `gorm:"size:128;uniqueIndex;not null" json:"disaster_id"` // natural key, e.g. "usgs-us7000abcd"
	Type         DisasterType `gorm:"size:20;index;not null" json:"type"`
	Severity     Severity     `gorm:"size:20;index;not null" json:"severity"`
	Title        string       `gorm:"not null" json:"title"`
	Description  string       `json:"description"`
	LocationName string       `json:"location_name"`
	Latitude     float64      `gorm:"not null" json:"latitude"`
	Longitude    float64      `gorm:"not null" json:"longitude"`
	Magnitude    *float64     `json:"magnitude"`     // Richter value for earthquakes, category for cyclones
	Depth        *float64     `json:"depth"`         // km, earthquakes only
	AffectedArea *float64     `json:"affected_area"` // km2
	Source       string       `gorm:"size:64" json:"source"`
	ExternalURL  *string      `json:"external_url"`
	OccurredAt   time.Time    `gorm:"index;not null" json:"occurred_at"`
	IsActive     bool         `gorm:"index;not null" json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Disaster) TableName() string {
	return "disasters"
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (d *Disaster) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
	}
}

// Float returns a pointer to v, for the nullable numeric columns.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
