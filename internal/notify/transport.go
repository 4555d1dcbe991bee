// Package notify maps countries to notification topics and publishes alerts
// through a pluggable transport.
package notify

import (
	"context"
	"regexp"
	"strings"
)

// PendingConfirmation is returned by Transport.Subscribe in place of a
// subscription handle when the endpoint still has to confirm.
const PendingConfirmation = "pending confirmation"

// Message is one notification addressed to a topic.
type Message struct {
	Subject    string
	Body       string
	Country    string
	DisasterID string
}

// Transport is the notification backend. Handles are opaque to callers.
type Transport interface {
	Name() string
	CreateTopic(ctx context.Context, name string) (handle string, err error)
	DeleteTopic(ctx context.Context, handle string) error
	Publish(ctx context.Context, handle string, msg Message) (messageID string, err error)
	Subscribe(ctx context.Context, handle, email string) (subscriptionHandle string, err error)
	Unsubscribe(ctx context.Context, subscriptionHandle string) error
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// TopicName derives the transport topic name for a country, e.g.
// "dias-alerts-united-states".
func TopicName(prefix, country string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(country), "-"), "-")
	if slug == "" {
		slug = "unknown"
	}
	if prefix == "" {
		return slug
	}
	return prefix + "-" + slug
}
