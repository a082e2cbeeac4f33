package api

import (
	"context"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"push-campaign-backend/internal/dispatch"
	"push-campaign-backend/internal/store"
	"push-campaign-backend/internal/tracking"
)

// CampaignSender dispatches a message to a tenant's subscribers.
type CampaignSender interface {
	Dispatch(ctx context.Context, tenantID string, msg dispatch.Message) (*dispatch.Result, error)
}

// ClickResolver records a click and returns where to send the browser.
type ClickResolver interface {
	Resolve(ctx context.Context, trackingID string, visit tracking.Visit) (string, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          store.Store
	sender         CampaignSender
	clicks         ClickResolver
	vapidPublicKey string
	responses      *cache.Cache
	log            *zap.Logger
}

// NewHandler creates a new API handler. responses is the read-model cache
// shared with the router's caching middleware; it is purged per tenant after a dispatch.
func NewHandler(s store.Store, sender CampaignSender, clicks ClickResolver, vapidPublicKey string, responses *cache.Cache, log *zap.Logger) *Handler {
	return &Handler{
		store:          s,
		sender:         sender,
		clicks:         clicks,
		vapidPublicKey: vapidPublicKey,
		responses:      responses,
		log:            log,
	}
}
