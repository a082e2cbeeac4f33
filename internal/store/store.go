package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"push-campaign-backend/internal/model"
)

// Registry is the durable set of push endpoints per tenant.
type Registry interface {
	ListActive(ctx context.Context, tenantID string) ([]model.Subscription, error)
	CountActive(ctx context.Context, tenantID string) (int64, error)
	Create(ctx context.Context, tenantID, endpoint string, keys model.Keys, device model.DeviceInfo) (*model.Subscription, error)
	// Deactivate soft-deletes the given endpoints and reports how many rows
	// changed. Already inactive or unknown endpoints are skipped.
	Deactivate(ctx context.Context, endpoints []string) (int64, error)
}

// Recorder appends delivery outcomes.
type Recorder interface {
	Record(ctx context.Context, campaignID, subscriptionID int64, status model.DeliveryStatus, detail string) error
}

// Campaigns persists the campaign lifecycle and its read models.
type Campaigns interface {
	OpenCampaign(ctx context.Context, campaign *model.Campaign) error
	FinalizeCampaign(ctx context.Context, f Finalization) (*model.Campaign, error)
	DiscardCampaign(ctx context.Context, campaignID int64) error
	// StaleCampaigns lists campaigns still dispatching that were opened before cutoff.
	StaleCampaigns(ctx context.Context, cutoff time.Time) ([]int64, error)
	ListCampaigns(ctx context.Context, tenantID string, limit, offset int) ([]model.Campaign, error)
	GetCampaign(ctx context.Context, tenantID string, campaignID int64) (*model.Campaign, error)
	ListDeliveries(ctx context.Context, tenantID string, campaignID int64) ([]model.Delivery, error)
}

// Tracking persists tracking links and click events.
type Tracking interface {
	CreateTrackingLink(ctx context.Context, link *model.TrackingLink) error
	GetTrackingLink(ctx context.Context, id string) (*model.TrackingLink, error)
	RecordClick(ctx context.Context, click *model.Click) error
}

// Store defines the interface for all database operations.
type Store interface {
	Registry
	Recorder
	Campaigns
	Tracking
	DB() *gorm.DB
}

// Finalization carries what a dispatch learned once all its deliveries finished.
type Finalization struct {
	CampaignID int64
	// ExpiredEndpoints are deactivated in the same transaction that writes the counts.
	ExpiredEndpoints []string
	At               time.Time
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}
