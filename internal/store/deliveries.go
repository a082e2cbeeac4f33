package store

import (
	"context"
	"fmt"
	"time"

	"push-campaign-backend/internal/model"
)

// Record appends one delivery outcome.
func (s *gormStore) Record(ctx context.Context, campaignID, subscriptionID int64, status model.DeliveryStatus, detail string) error {
	delivery := model.Delivery{
		CampaignID:     campaignID,
		SubscriptionID: subscriptionID,
		Status:         status,
		Detail:         detail,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&delivery).Error; err != nil {
		return fmt.Errorf("failed to record delivery for subscription %d: %w", subscriptionID, err)
	}
	return nil
}

// ListDeliveries returns the per-recipient outcomes of one of the tenant's campaigns.
func (s *gormStore) ListDeliveries(ctx context.Context, tenantID string, campaignID int64) ([]model.Delivery, error) {
	if _, err := s.GetCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}

	var deliveries []model.Delivery
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id").
		Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}
