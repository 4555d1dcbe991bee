package transform

import (
	"log/slog"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// Dedup drops later records sharing a disaster_id with an earlier one.
// Order is preserved.
func Dedup(records []*models.Disaster) []*models.Disaster {
	seen := make(map[string]struct{}, len(records))
	out := make([]*models.Disaster, 0, len(records))
	for _, d := range records {
		if _, ok := seen[d.DisasterID]; ok {
			continue
		}
		seen[d.DisasterID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// FilterValid drops rejected (nil) and invalid records.
func FilterValid(records []*models.Disaster) []*models.Disaster {
	out := make([]*models.Disaster, 0, len(records))
	for _, d := range records {
		if d == nil {
			continue
		}
		if !Validate(d) {
			slog.Warn("invalid disaster dropped", "disaster_id", d.DisasterID, "type", d.Type)
			continue
		}
		out = append(out, d)
	}
	return out
}

// Prepare runs the rejection filter, dedup and validation in the order the
// fetchers need them.
func Prepare(records []*models.Disaster) []*models.Disaster {
	kept := make([]*models.Disaster, 0, len(records))
	for _, d := range records {
		if d != nil {
			kept = append(kept, d)
		}
	}
	return FilterValid(Dedup(kept))
}
