package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	if h.responses == nil {
		h.responses = cache.New(5*time.Minute, 10*time.Minute)
	}

	r := gin.New()
	r.Use(mw.Logger(log), mw.Recovery(log), mw.Metrics())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	caching := mw.Cache(h.responses, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/c/:tracking_id", rateLimiter, h.FollowTrackingLink)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		tenant := api.Group("", mw.Tenant(cfg.TenantHeader))
		tenant.PUT("/subscriptions", h.PutSubscription)
		tenant.DELETE("/subscriptions", h.DeleteSubscription)
		tenant.GET("/subscriptions/summary", h.GetSubscriptionSummary)

		tenant.POST("/campaigns", h.PostCampaign)
		// Click counters change on every redirect, so the history is always read live.
		tenant.GET("/campaigns", h.ListCampaigns)
		tenant.GET("/campaigns/:id/deliveries", caching, h.ListDeliveries)
	}

	return r
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
