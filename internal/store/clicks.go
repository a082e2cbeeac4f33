package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"push-campaign-backend/internal/model"
)

// CreateTrackingLink stores a new tracking id for a campaign destination.
func (s *gormStore) CreateTrackingLink(ctx context.Context, link *model.TrackingLink) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to create tracking link: %w", err)
	}
	return nil
}

// GetTrackingLink loads a tracking link by id.
func (s *gormStore) GetTrackingLink(ctx context.Context, id string) (*model.TrackingLink, error) {
	var link model.TrackingLink
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackingLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking link: %w", err)
	}
	return &link, nil
}

// RecordClick inserts the click and bumps the campaign's click counter together.
func (s *gormStore) RecordClick(ctx context.Context, click *model.Click) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Campaign{}).
			Where("id = ?", click.CampaignID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to increment clicks: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCampaignNotFound
		}
		if err := tx.Create(click).Error; err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}
		return nil
	})
}
