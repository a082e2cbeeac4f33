package model

import "time"

// Click is one follow of a tracking link by a notification recipient.
type Click struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	CampaignID     int64     `gorm:"not null;index" json:"campaign_id"`
	SubscriptionID *int64    `gorm:"index" json:"subscription_id,omitempty"`
	URL            string    `gorm:"column:url;type:text;not null" json:"url"`
	DeviceType     string    `gorm:"size:32" json:"device_type"`
	Browser        string    `gorm:"size:64" json:"browser"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

// TrackingLink maps an opaque tracking id to the campaign and destination it wraps.
type TrackingLink struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CampaignID  int64     `gorm:"not null;index" json:"campaign_id"`
	Destination string    `gorm:"type:text;not null" json:"destination"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}
