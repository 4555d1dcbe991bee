package notify

import (
	"fmt"
	"strings"

	"github.com/AgileSeagull/DIAS/internal/models"
)

const (
	welcomeDetailLimit = 100
	ruleWidth          = 60
)

// FormatWelcome renders the subject and body sent when someone subscribes to
// a country.
func FormatWelcome(country string, disasters []models.Disaster) (subject, body string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Thank you for subscribing to disaster alerts for %s!\n\n", country)
	b.WriteString("You will receive real-time notifications when new disasters occur in this region.\n\n")

	if len(disasters) > 0 {
		fmt.Fprintf(&b, "CURRENTLY ACTIVE DISASTERS IN %s:\n", strings.ToUpper(country))
		b.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")

		for i, d := range disasters {
			fmt.Fprintf(&b, "%s %s - %s\n", d.Type.Emoji(), strings.ToUpper(string(d.Type)), d.Severity.Upper())
			fmt.Fprintf(&b, "   Location: %s\n", d.LocationName)
			if d.Magnitude != nil && *d.Magnitude != 0 {
				fmt.Fprintf(&b, "   Magnitude: %g\n", *d.Magnitude)
			}
			fmt.Fprintf(&b, "   Time: %s\n", d.OccurredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
			if d.Description != "" {
				fmt.Fprintf(&b, "   Details: %s\n", truncate(d.Description, welcomeDetailLimit))
			}
			fmt.Fprintf(&b, "   Coordinates: %g, %g\n", d.Latitude, d.Longitude)
			if d.ExternalURL != nil && *d.ExternalURL != "" {
				fmt.Fprintf(&b, "   More Info: %s\n", *d.ExternalURL)
			}
			b.WriteString("\n")
			if i < len(disasters)-1 {
				b.WriteString(strings.Repeat("-", ruleWidth) + "\n\n")
			}
		}

		b.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")
		b.WriteString("You will receive alerts for any new disasters that occur.\n\n")
	} else {
		fmt.Fprintf(&b, "No active disasters in %s at the moment.\n\n", country)
		b.WriteString("You will be notified when new disasters are detected.\n\n")
	}

	b.WriteString("To unsubscribe, click the unsubscribe link in any alert email.\n\n")
	b.WriteString("---\n")
	b.WriteString("DIAS - Disaster Information & Alert System\n")
	b.WriteString("Stay safe and informed!\n")

	switch n := len(disasters); {
	case n == 1:
		subject = fmt.Sprintf("Welcome! 1 Active Disaster in %s", country)
	case n > 1:
		subject = fmt.Sprintf("Welcome! %d Active Disasters in %s", n, country)
	default:
		subject = fmt.Sprintf("Welcome to Disaster Alerts for %s", country)
	}
	return subject, b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
