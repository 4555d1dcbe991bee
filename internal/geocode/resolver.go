package geocode

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// Unknown is returned when no strategy yields a country.
const Unknown = "Unknown"

// Resolver infers the owning country of a disaster from its location text,
// its coordinates and its description, in that order.
type Resolver struct {
	geocoder Geocoder
	regions  map[string]string
	logger   *slog.Logger
}

// NewResolver builds a Resolver. geocoder may be nil to disable the
// coordinate strategy; aliases extend or override the built-in region table.
func NewResolver(geocoder Geocoder, aliases map[string]string, logger *slog.Logger) *Resolver {
	regions := make(map[string]string, len(regionToCountry)+len(aliases))
	for k, v := range regionToCountry {
		regions[k] = v
	}
	for k, v := range aliases {
		regions[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{geocoder: geocoder, regions: regions, logger: logger}
}

// Resolve never fails; it returns Unknown when every strategy misses.
func (r *Resolver) Resolve(ctx context.Context, locationName string, lat, lng *float64, description string) string {
	if country, ok := r.MatchText(locationName); ok {
		return country
	}

	if r.geocoder != nil && lat != nil && lng != nil {
		country, err := r.geocoder.ReverseCountry(ctx, *lat, *lng)
		if err == nil && country != "" {
			return country
		}
		if err != nil {
			r.logger.Debug("reverse geocode failed", "lat", *lat, "lng", *lng, "error", err)
		}
	}

	if country, ok := r.MatchText(description); ok {
		return country
	}

	if country, ok := fallbackCountry(locationName); ok {
		return country
	}

	r.logger.Debug("could not determine country", "location", locationName)
	return Unknown
}

func (r *Resolver) ResolveDisaster(ctx context.Context, d *models.Disaster) string {
	lat, lng := d.Latitude, d.Longitude
	return r.Resolve(ctx, d.LocationName, &lat, &lng, d.Description)
}

// ResolveAll resolves every disaster once, keyed by disaster_id.
func (r *Resolver) ResolveAll(ctx context.Context, disasters []models.Disaster) map[string]string {
	out := make(map[string]string, len(disasters))
	for i := range disasters {
		d := &disasters[i]
		if _, ok := out[d.DisasterID]; ok {
			continue
		}
		out[d.DisasterID] = r.ResolveDisaster(ctx, d)
	}
	return out
}

// MatchText splits text on commas and scans the parts right to left. Each
// part is tried against the region table, then the country list exactly,
// then as a substring in either direction. Substring matching can pick the
// wrong country for short or ambiguous names.
func (r *Resolver) MatchText(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	parts := strings.Split(text, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.ToLower(strings.TrimSpace(parts[i]))
		if part == "" {
			continue
		}

		if country, ok := r.regions[part]; ok {
			return country, true
		}

		for _, c := range knownCountries {
			if strings.ToLower(c) == part {
				return c, true
			}
		}

		for _, c := range knownCountries {
			lc := strings.ToLower(c)
			if strings.Contains(lc, part) || strings.Contains(part, lc) {
				return c, true
			}
		}
	}
	return "", false
}

var (
	sentencePattern  = regexp.MustCompile(`\s(is|in|on|by|the)\s`)
	leadingThe       = regexp.MustCompile(`(?i)^the\s+`)
	trailingRepublic = regexp.MustCompile(`(?i)\s+republic$`)

	noisePhrases = []string{
		"alert", "tropical", "category", "population", "km/h", "wind speed",
		"drought", "ocean", "sea", "ridge", "pacific rise", "is on", "going in",
		"affected by",
	}
)

// fallbackCountry returns the last comma-separated token of location when it
// reads like a country name.
func fallbackCountry(location string) (string, bool) {
	parts := strings.Split(location, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if !looksLikeCountry(last) {
		return "", false
	}

	name := leadingThe.ReplaceAllString(last, "")
	name = strings.TrimSpace(trailingRepublic.ReplaceAllString(name, ""))
	if name == "" {
		return "", false
	}
	return name, true
}

func looksLikeCountry(s string) bool {
	if len(s) <= 2 || len(s) >= 50 {
		return false
	}
	if unicode.IsDigit(rune(s[0])) {
		return false
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "unknown") {
		return false
	}
	for _, p := range noisePhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return !sentencePattern.MatchString(lower)
}

// CountryGroup holds the disasters attributed to one country.
type CountryGroup struct {
	Country   string
	Disasters []models.Disaster
}

// GroupByCountry buckets disasters by their resolved country. Groups appear
// in order of first appearance and keep the input order within a group.
// Disasters missing from countries fall under Unknown.
func GroupByCountry(disasters []models.Disaster, countries map[string]string) []CountryGroup {
	index := make(map[string]int)
	var groups []CountryGroup
	for _, d := range disasters {
		country, ok := countries[d.DisasterID]
		if !ok {
			country = Unknown
		}
		i, seen := index[country]
		if !seen {
			i = len(groups)
			index[country] = i
			groups = append(groups, CountryGroup{Country: country})
		}
		groups[i].Disasters = append(groups[i].Disasters, d)
	}
	return groups
}

// CountryCounts counts disasters per resolved country.
func CountryCounts(disasters []models.Disaster, countries map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, d := range disasters {
		country, ok := countries[d.DisasterID]
		if !ok {
			country = Unknown
		}
		counts[country]++
	}
	return counts
}
