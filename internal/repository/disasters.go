package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AgileSeagull/DIAS/internal/models"
)

func (s *Store) FindByDisasterID(ctx context.Context, disasterID string) (*models.Disaster, error) {
	var d models.Disaster
	err := s.db.WithContext(ctx).Where("disaster_id = ?", disasterID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find disaster %s: %w", disasterID, err)
	}
	return &d, nil
}

func (s *Store) Insert(ctx context.Context, d *models.Disaster) error {
	d.OccurredAt = d.OccurredAt.UTC()
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("insert disaster %s: %w", d.DisasterID, err)
	}
	return nil
}

// Update applies fields to the record with the given natural key and bumps
// updated_at. Keys are column names.
func (s *Store) Update(ctx context.Context, disasterID string, fields map[string]any) error {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Model(&models.Disaster{}).
		Where("disaster_id = ?", disasterID).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update disaster %s: %w", disasterID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context) ([]models.Disaster, error) {
	var out []models.Disaster
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("occurred_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active disasters: %w", err)
	}
	return out, nil
}

func (s *Store) ListDisasters(ctx context.Context, opts Filter) ([]models.Disaster, error) {
	q := s.db.WithContext(ctx).Model(&models.Disaster{})

	if opts.Since != nil {
		q = q.Where("occurred_at >= ?", opts.Since.UTC())
	}
	if opts.Type != nil {
		q = q.Where("type = ?", *opts.Type)
	}
	if opts.Severity != nil {
		q = q.Where("severity = ?", *opts.Severity)
	}
	if opts.MinSeverity != nil {
		q = q.Where("severity IN ?", severitiesAtLeast(*opts.MinSeverity))
	}
	if opts.MinMagnitude != nil {
		q = q.Where("magnitude >= ?", *opts.MinMagnitude)
	}
	if opts.Active != nil {
		q = q.Where("is_active = ?", *opts.Active)
	}

	q = q.Order("occurred_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var out []models.Disaster
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list disasters: %w", err)
	}
	return out, nil
}

func severitiesAtLeast(floor models.Severity) []string {
	var out []string
	for _, s := range []models.Severity{models.SeverityLow, models.SeverityModerate, models.SeverityHigh, models.SeverityCritical} {
		if s.AtLeast(floor) {
			out = append(out, string(s))
		}
	}
	return out
}

func (s *Store) Stats(ctx context.Context) ([]TypeStats, error) {
	var rows []struct {
		Type     string
		Severity string
		IsActive bool
		Count    int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Disaster{}).
		Select("type, severity, is_active, COUNT(*) AS count").
		Group("type, severity, is_active").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("disaster stats: %w", err)
	}

	byType := make(map[models.DisasterType]*TypeStats, len(models.DisasterTypes))
	out := make([]TypeStats, 0, len(models.DisasterTypes))
	for _, t := range models.DisasterTypes {
		out = append(out, TypeStats{Type: t, BySeverity: map[models.Severity]int64{}})
	}
	for i := range out {
		byType[out[i].Type] = &out[i]
	}

	for _, r := range rows {
		ts, ok := byType[models.DisasterType(r.Type)]
		if !ok {
			continue
		}
		ts.Total += r.Count
		if r.IsActive {
			ts.Active += r.Count
		}
		ts.BySeverity[models.Severity(r.Severity)] += r.Count
	}
	return out, nil
}
