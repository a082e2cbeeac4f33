package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"push-campaign-backend/internal/dispatch"
	"push-campaign-backend/internal/model"
	"push-campaign-backend/internal/mw"
	"push-campaign-backend/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// checkColumnLimits rejects fields the campaigns table cannot store.
func checkColumnLimits(msg dispatch.Message) error {
	return validation.ValidateStruct(&msg,
		validation.Field(&msg.Title, validation.RuneLength(0, 256)),
		validation.Field(&msg.Tag, validation.RuneLength(0, 128)),
		validation.Field(&msg.Author, validation.RuneLength(0, 128)),
	)
}

// PostCampaign sends a message to every active subscriber of the tenant and
// returns the delivery summary.
func (h *Handler) PostCampaign(c *gin.Context) {
	var msg dispatch.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := checkColumnLimits(msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message", "fields": err})
		return
	}

	tenantID := mw.TenantID(c)
	// Pushes already sent cannot be recalled, so a client hanging up must not abort the campaign.
	result, err := h.sender.Dispatch(context.WithoutCancel(c.Request.Context()), tenantID, msg)
	switch {
	case errors.Is(err, dispatch.ErrInvalidMessage):
		body := gin.H{"error": "invalid message"}
		var fields validation.Errors
		if errors.As(err, &fields) {
			body["fields"] = fields
		}
		c.JSON(http.StatusBadRequest, body)
		return
	case errors.Is(err, dispatch.ErrNoActiveSubscribers):
		c.JSON(http.StatusConflict, gin.H{"error": "nothing to send"})
		return
	case err != nil:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}

	if h.responses != nil {
		mw.PurgeTenant(h.responses, tenantID)
	}
	c.JSON(http.StatusOK, result)
}

// ListCampaigns returns the tenant's completed campaigns with their counts, newest first.
func (h *Handler) ListCampaigns(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	campaigns, err := h.store.ListCampaigns(c.Request.Context(), mw.TenantID(c), limit, offset)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns, "limit": limit, "offset": offset})
}

// ListDeliveries returns the per-recipient outcomes of one campaign.
func (h *Handler) ListDeliveries(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	deliveries, err := h.store.ListDeliveries(c.Request.Context(), mw.TenantID(c), campaignID)
	if errors.Is(err, store.ErrCampaignNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}
	if deliveries == nil {
		deliveries = []model.Delivery{}
	}

	c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "deliveries": deliveries})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
