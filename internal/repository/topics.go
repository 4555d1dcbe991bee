package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AgileSeagull/DIAS/internal/models"
)

func (s *Store) GetTopic(ctx context.Context, country string) (*models.CountryTopic, error) {
	var t models.CountryTopic
	err := s.db.WithContext(ctx).Where("country = ?", country).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %s: %w", country, err)
	}
	return &t, nil
}

func (s *Store) SaveTopic(ctx context.Context, t *models.CountryTopic) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("save topic %s: %w", t.Country, err)
	}
	return nil
}

func (s *Store) UpdateCount(ctx context.Context, country string, count int) error {
	res := s.db.WithContext(ctx).
		Model(&models.CountryTopic{}).
		Where("country = ?", country).
		Updates(map[string]any{"disaster_count": count, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update topic count %s: %w", country, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ZeroCountsExcept(ctx context.Context, countries []string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CountryTopic{}).Where("disaster_count <> ?", 0)
	if len(countries) > 0 {
		q = q.Where("country NOT IN ?", countries)
	}
	res := q.Updates(map[string]any{"disaster_count": 0, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, fmt.Errorf("zero topic counts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListTopics orders by disaster_count descending, then country.
func (s *Store) ListTopics(ctx context.Context) ([]models.CountryTopic, error) {
	var out []models.CountryTopic
	err := s.db.WithContext(ctx).
		Order("disaster_count DESC").
		Order("country ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteTopic(ctx context.Context, country string) error {
	res := s.db.WithContext(ctx).Where("country = ?", country).Delete(&models.CountryTopic{})
	if res.Error != nil {
		return fmt.Errorf("delete topic %s: %w", country, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
