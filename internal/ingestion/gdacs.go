package ingestion

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/AgileSeagull/DIAS/internal/models"
)

type gdacsRSS struct {
	Channel gdacsChannel `xml:"channel"`
}

type gdacsChannel struct {
	Items []gdacsItem `xml:"item"`
}

type gdacsItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	Link        string       `xml:"link"`
	PubDate     string       `xml:"pubDate"`
	Point       string       `xml:"http://www.georss.org/georss point"` // "lat lon"
	EventType   string       `xml:"http://www.gdacs.org eventtype"`
	AlertLevel  string       `xml:"http://www.gdacs.org alertlevel"`
	EventID     string       `xml:"http://www.gdacs.org eventid"`
	EventName   string       `xml:"http://www.gdacs.org eventname"`
	Country     string       `xml:"http://www.gdacs.org country"`
	FromDate    string       `xml:"http://www.gdacs.org fromdate"`
	Severity    gdacsMeasure `xml:"http://www.gdacs.org severity"`
	Population  gdacsMeasure `xml:"http://www.gdacs.org population"`
}

// gdacsMeasure carries a numeric value in attributes next to a prose label.
type gdacsMeasure struct {
	Unit  string `xml:"unit,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

func (m gdacsMeasure) float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(m.Value), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fetchGDACS downloads and decodes the GDACS RSS feed.
func fetchGDACS(ctx context.Context, g *httpGetter, url string) ([]gdacsItem, error) {
	body, err := g.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var data gdacsRSS
	if err := xml.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("error decoding gdacs feed: %w", err)
	}
	return data.Channel.Items, nil
}

func mapGDACSEventType(eventType string) (models.DisasterType, bool) {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "EQ":
		return models.DisasterTypeEarthquake, true
	case "TC":
		return models.DisasterTypeCyclone, true
	case "FL":
		return models.DisasterTypeFlood, true
	case "WF":
		return models.DisasterTypeFire, true
	default:
		return "", false
	}
}

// position parses the georss point. Items without one are rejected.
func (item gdacsItem) position() *models.Coordinates {
	fields := strings.Fields(item.Point)
	if len(fields) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil
	}
	return &models.Coordinates{Latitude: lat, Longitude: lng}
}

var gdacsTimeLayouts = []string{time.RFC1123, time.RFC1123Z, "Mon, 2 Jan 2006 15:04:05 MST"}

// occurredAt prefers pubDate and falls back to fromdate. Zero means unknown.
func (item gdacsItem) occurredAt() time.Time {
	for _, raw := range []string{item.PubDate, item.FromDate} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range gdacsTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
		slog.Warn("GDACS timestamp parsing failed", "id", item.EventID, "value", raw)
	}
	return time.Time{}
}

// plainText strips markup from an RSS description.
func plainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var inPlacePattern = regexp.MustCompile(`\bin\s+([A-Za-z\s]+)`)

// placeFromTitle extracts "<place>" from titles such as "... in Bangladesh".
func placeFromTitle(title string) (string, bool) {
	m := inPlacePattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	place := strings.TrimSpace(m[1])
	return place, place != ""
}
