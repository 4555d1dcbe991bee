package api

import (
	"time"

	"github.com/AgileSeagull/DIAS/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(disasters []models.Disaster) FeatureCollection {
	features := make([]Feature, 0, len(disasters))

	for _, d := range disasters {
		props := map[string]any{
			"id":            d.DisasterID,
			"type":          d.Type,
			"severity":      d.Severity,
			"title":         d.Title,
			"description":   d.Description,
			"location_name": d.LocationName,
			"source":        d.Source,
			"occurred_at":   d.OccurredAt.UTC().Format(time.RFC3339),
			"is_active":     d.IsActive,
		}
		// nullable columns are left out rather than sent as null
		if d.Magnitude != nil {
			props["magnitude"] = *d.Magnitude
		}
		if d.Depth != nil {
			props["depth"] = *d.Depth
		}
		if d.AffectedArea != nil {
			props["affected_area"] = *d.AffectedArea
		}
		if d.ExternalURL != nil {
			props["external_url"] = *d.ExternalURL
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{d.Longitude, d.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
