package alerts

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/models"
)

// Publisher sends one alert to a country topic.
type Publisher interface {
	Publish(ctx context.Context, country, subject, body, disasterID string) (messageID string, err error)
}

// Broadcaster receives every successfully published alert.
type Broadcaster interface {
	Broadcast(ev *models.AlertEvent)
}

// DispatchStats counts the outcome of one Dispatch call.
type DispatchStats struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Countries int `json:"countries"`
}

// Dispatcher publishes new disasters and records successes in the processed
// set. A failed publish leaves the id out so the next cycle retries it.
type Dispatcher struct {
	publisher   Publisher
	processed   *ProcessedSet
	broadcaster Broadcaster
	clock       clockwork.Clock
	logger      *slog.Logger
}

// NewDispatcher builds a Dispatcher. broadcaster may be nil.
func NewDispatcher(publisher Publisher, processed *ProcessedSet, broadcaster Broadcaster, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		publisher:   publisher,
		processed:   processed,
		broadcaster: broadcaster,
		clock:       clock,
		logger:      slog.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, groups []geocode.CountryGroup) DispatchStats {
	stats := DispatchStats{Countries: len(groups)}

	for _, g := range groups {
		d.logger.Info("sending alerts", "country", g.Country, "count", len(g.Disasters))

		for i := range g.Disasters {
			dis := &g.Disasters[i]
			if ctx.Err() != nil {
				stats.Failed++
				continue
			}

			subject := FormatSubject(dis, g.Country)
			id, err := d.publisher.Publish(ctx, g.Country, subject, FormatBody(dis), dis.DisasterID)
			if err != nil {
				d.logger.Error("failed to send alert", "disaster_id", dis.DisasterID, "country", g.Country, "error", err)
				stats.Failed++
				continue
			}

			d.processed.Add(dis.DisasterID)
			stats.Sent++
			d.logger.Info("alert sent", "disaster_id", dis.DisasterID, "country", g.Country, "message_id", id)

			if d.broadcaster != nil {
				d.broadcaster.Broadcast(&models.AlertEvent{
					Disaster:  *dis,
					Country:   g.Country,
					Subject:   subject,
					MessageID: id,
					SentAt:    d.clock.Now().UTC(),
				})
			}
		}
	}
	return stats
}
