package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"push-campaign-backend/internal/model"
)

// OpenCampaign inserts the campaign in the dispatching state with zeroed outcome counts.
func (s *gormStore) OpenCampaign(ctx context.Context, campaign *model.Campaign) error {
	campaign.Status = model.CampaignDispatching
	campaign.TotalSuccess, campaign.TotalFailed, campaign.TotalClicks = 0, 0, 0
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to open campaign: %w", err)
	}
	return nil
}

type statusCount struct {
	Status model.DeliveryStatus
	Total  int64
}

// FinalizeCampaign sums the campaign's delivery records, stamps the reached
// subscriptions, deactivates expired endpoints and writes the final counts in
// one transaction. Expired deliveries count as failed.
func (s *gormStore) FinalizeCampaign(ctx context.Context, f Finalization) (*model.Campaign, error) {
	var campaign model.Campaign
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&campaign, f.CampaignID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCampaignNotFound
			}
			return err
		}
		if campaign.Status != model.CampaignDispatching {
			return ErrCampaignNotDispatching
		}

		var counts []statusCount
		if err := tx.Model(&model.Delivery{}).
			Select("status, COUNT(*) AS total").
			Where("campaign_id = ?", f.CampaignID).
			Group("status").
			Scan(&counts).Error; err != nil {
			return fmt.Errorf("failed to aggregate deliveries: %w", err)
		}

		var success, failed int64
		for _, c := range counts {
			if c.Status == model.DeliverySuccess {
				success += c.Total
			} else {
				failed += c.Total
			}
		}
		if success+failed != campaign.TotalSent {
			return fmt.Errorf("%w: %d recorded, %d sent", ErrIncompleteDeliveries, success+failed, campaign.TotalSent)
		}

		if err := tx.Model(&model.Subscription{}).
			Where("id IN (?)", tx.Model(&model.Delivery{}).
				Select("subscription_id").
				Where("campaign_id = ? AND status = ?", f.CampaignID, model.DeliverySuccess)).
			Update("last_delivered_at", f.At).Error; err != nil {
			return fmt.Errorf("failed to stamp delivered subscriptions: %w", err)
		}

		if _, err := deactivate(tx, f.ExpiredEndpoints, f.At); err != nil {
			return err
		}

		at := f.At
		res := tx.Model(&model.Campaign{}).
			Where("id = ? AND status = ?", f.CampaignID, model.CampaignDispatching).
			Updates(map[string]any{
				"total_success": success,
				"total_failed":  failed,
				"status":        model.CampaignCompleted,
				"completed_at":  at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to write campaign totals: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Discarded between the read above and this write.
			return ErrCampaignNotDispatching
		}
		campaign.TotalSuccess = success
		campaign.TotalFailed = failed
		campaign.Status = model.CampaignCompleted
		campaign.CompletedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// DiscardCampaign removes a campaign that never finalized together with
// everything written for it. The campaign row goes first and only while it is
// still dispatching; a finalized campaign is left untouched and
// ErrCampaignNotDispatching is returned.
func (s *gormStore) DiscardCampaign(ctx context.Context, campaignID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", campaignID, model.CampaignDispatching).
			Delete(&model.Campaign{})
		if res.Error != nil {
			return fmt.Errorf("failed to discard campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCampaignNotDispatching
		}

		if err := tx.Where("campaign_id = ?", campaignID).Delete(&model.Delivery{}).Error; err != nil {
			return fmt.Errorf("failed to discard deliveries: %w", err)
		}
		if err := tx.Where("campaign_id = ?", campaignID).Delete(&model.Click{}).Error; err != nil {
			return fmt.Errorf("failed to discard clicks: %w", err)
		}
		if err := tx.Where("campaign_id = ?", campaignID).Delete(&model.TrackingLink{}).Error; err != nil {
			return fmt.Errorf("failed to discard tracking links: %w", err)
		}
		return nil
	})
}

func (s *gormStore) StaleCampaigns(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("status = ? AND created_at < ?", model.CampaignDispatching, cutoff).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale campaigns: %w", err)
	}
	return ids, nil
}

// ListCampaigns returns a tenant's completed campaigns, newest first.
func (s *gormStore) ListCampaigns(ctx context.Context, tenantID string, limit, offset int) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, model.CampaignCompleted).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// GetCampaign loads one campaign of a tenant.
func (s *gormStore) GetCampaign(ctx context.Context, tenantID string, campaignID int64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", campaignID, tenantID).
		First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", campaignID, err)
	}
	return &campaign, nil
}
