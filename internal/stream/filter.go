package stream

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// Filter narrows the alert events a listener receives. Zero values match
// everything.
type Filter struct {
	Type        models.DisasterType
	MinSeverity models.Severity
	Country     string
}

// ParseFilter reads the type, min_severity and country query parameters.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter

	if v := q.Get("type"); v != "" {
		t, ok := models.ParseDisasterType(v)
		if !ok {
			return f, fmt.Errorf("invalid type: %s", v)
		}
		f.Type = t
	}
	if v := q.Get("min_severity"); v != "" {
		s, ok := models.ParseSeverity(v)
		if !ok {
			return f, fmt.Errorf("invalid min_severity: %s", v)
		}
		f.MinSeverity = s
	}
	f.Country = strings.TrimSpace(q.Get("country"))

	return f, nil
}

func (f Filter) Match(e *models.AlertEvent) bool {
	if f.Type != "" && e.Disaster.Type != f.Type {
		return false
	}
	if f.MinSeverity != "" && !e.Disaster.Severity.AtLeast(f.MinSeverity) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(e.Country, f.Country) {
		return false
	}
	return true
}
