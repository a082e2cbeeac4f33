package model

import "time"

// CampaignStatus marks whether a campaign's counts are final.
type CampaignStatus string

const (
	// CampaignDispatching is set while deliveries are still in flight.
	CampaignDispatching CampaignStatus = "dispatching"
	CampaignCompleted   CampaignStatus = "completed"
)

// Campaign is the push log of one dispatched message.
// TotalSent is fixed when the campaign opens; TotalSuccess and TotalFailed are
// written once at finalization. TotalClicks only ever grows.
type Campaign struct {
	ID           int64          `gorm:"primaryKey" json:"id"`
	TenantID     string         `gorm:"size:64;not null;index" json:"tenant_id"`
	Title        string         `gorm:"size:256;not null" json:"title"`
	Body         string         `gorm:"type:text;not null" json:"body"`
	Icon         string         `gorm:"type:text" json:"icon,omitempty"`
	Image        string         `gorm:"type:text" json:"image,omitempty"`
	URL          string         `gorm:"column:url;type:text" json:"url,omitempty"`
	Tag          string         `gorm:"size:128" json:"tag,omitempty"`
	Author       string         `gorm:"size:128" json:"author,omitempty"`
	Status       CampaignStatus `gorm:"size:16;not null" json:"status"`
	TotalSent    int64          `gorm:"not null" json:"total_sent"`
	TotalSuccess int64          `gorm:"not null" json:"total_success"`
	TotalFailed  int64          `gorm:"not null" json:"total_failed"`
	TotalClicks  int64          `gorm:"not null" json:"total_clicks"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
