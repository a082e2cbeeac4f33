package model

import "time"

// DeliveryStatus is the classified outcome of one push attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
	// DeliveryExpired means the push service permanently invalidated the endpoint.
	DeliveryExpired DeliveryStatus = "expired"
)

// Delivery is the append-only record of one (campaign, subscription) attempt.
type Delivery struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	CampaignID     int64          `gorm:"not null;uniqueIndex:idx_deliveries_campaign_subscription,priority:1" json:"campaign_id"`
	SubscriptionID int64          `gorm:"not null;uniqueIndex:idx_deliveries_campaign_subscription,priority:2" json:"subscription_id"`
	Status         DeliveryStatus `gorm:"size:16;not null;index" json:"status"`
	Detail         string         `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}
