package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"push-campaign-backend/internal/tracking"
)

// FollowTrackingLink records a click and redirects the browser to the campaign destination.
func (h *Handler) FollowTrackingLink(c *gin.Context) {
	visit := tracking.Visit{UserAgent: c.Request.UserAgent()}
	if raw := c.Query(tracking.SubscriberParam); raw != "" {
		// A tampered id only loses attribution, never the redirect.
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			visit.SubscriptionID = &id
		}
	}

	destination, err := h.clicks.Resolve(c.Request.Context(), c.Param("tracking_id"), visit)
	if errors.Is(err, tracking.ErrUnknownTrackingID) {
		c.String(http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		c.Error(err)
		c.String(http.StatusServiceUnavailable, "link temporarily unavailable")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, destination)
}
