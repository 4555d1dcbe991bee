package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AgileSeagull/DIAS/internal/models"
)

// ActiveLister lists active disasters, newest first.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]models.Disaster, error)
}

// Detector finds active disasters that have not been alerted on.
type Detector struct {
	store     ActiveLister
	processed *ProcessedSet
}

func NewDetector(store ActiveLister, processed *ProcessedSet) *Detector {
	return &Detector{store: store, processed: processed}
}

// Init seeds the processed set with every currently active disaster, so
// events that predate startup are never alerted.
func (d *Detector) Init(ctx context.Context) error {
	active, err := d.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("seed processed set: %w", err)
	}
	ids := make([]string, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.DisasterID)
	}
	d.processed.Reset(ids)
	slog.Info("processed set initialized", "count", len(ids))
	return nil
}

// Delta returns the disasters in active that are not in the processed set,
// keeping their order.
func (d *Detector) Delta(active []models.Disaster) []models.Disaster {
	var fresh []models.Disaster
	for _, a := range active {
		if !d.processed.Has(a.DisasterID) {
			fresh = append(fresh, a)
		}
	}
	return fresh
}

func (d *Detector) Processed() *ProcessedSet {
	return d.processed
}
