package alerts

import (
	"fmt"
	"strings"

	"github.com/AgileSeagull/DIAS/internal/models"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// FormatSubject renders "<emoji> <SEVERITY> <Type> Alert in <country>".
func FormatSubject(d *models.Disaster, country string) string {
	return fmt.Sprintf("%s %s %s Alert in %s", d.Type.Emoji(), d.Severity.Upper(), d.Type.Title(), country)
}

// FormatBody renders the plain-text alert body. Times are in UTC.
func FormatBody(d *models.Disaster) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s ALERT\n\n", d.Type.Emoji(), strings.ToUpper(string(d.Type)))
	fmt.Fprintf(&b, "Location: %s\n", d.LocationName)
	fmt.Fprintf(&b, "Severity: %s\n", d.Severity.Upper())
	fmt.Fprintf(&b, "Time: %s\n\n", d.OccurredAt.UTC().Format(timeLayout))

	if d.Magnitude != nil && *d.Magnitude != 0 {
		fmt.Fprintf(&b, "Magnitude: %g\n", *d.Magnitude)
	}
	if d.Depth != nil && *d.Depth != 0 {
		fmt.Fprintf(&b, "Depth: %g km\n", *d.Depth)
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "\nDetails: %s\n", d.Description)
	}

	fmt.Fprintf(&b, "\nCoordinates: %g, %g\n", d.Latitude, d.Longitude)

	if d.ExternalURL != nil && *d.ExternalURL != "" {
		fmt.Fprintf(&b, "\nMore Info: %s\n", *d.ExternalURL)
	}

	b.WriteString("\n---\nThis is an automated alert from DIAS (Disaster Information & Alert System).\n")
	b.WriteString("Stay safe and follow local emergency guidelines.")
	return b.String()
}
