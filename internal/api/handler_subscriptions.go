package api

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"push-campaign-backend/internal/model"
	"push-campaign-backend/internal/mw"
	"push-campaign-backend/internal/parse"
	"push-campaign-backend/internal/store"
)

// Browsers encode subscription keys as URL-safe base64, usually unpadded.
var base64URLPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+={0,2}$`)

type subscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// putSubscriptionRequest mirrors the browser's PushSubscription.toJSON().
type putSubscriptionRequest struct {
	Endpoint string           `json:"endpoint" binding:"required"`
	Keys     subscriptionKeys `json:"keys"`
}

func (r putSubscriptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Endpoint, validation.Required, is.URL),
		validation.Field(&r.Keys),
	)
}

func (k subscriptionKeys) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.P256DH, validation.Required, validation.Match(base64URLPattern)),
		validation.Field(&k.Auth, validation.Required, validation.Match(base64URLPattern)),
	)
}

// PutSubscription registers a browser endpoint for the tenant.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": err})
		return
	}

	agent := parse.UserAgent(c.Request.UserAgent())
	sub, err := h.store.Create(c.Request.Context(), mw.TenantID(c), req.Endpoint,
		model.Keys{P256DH: req.Keys.P256DH, Auth: req.Keys.Auth},
		model.DeviceInfo{DeviceType: agent.DeviceType, Browser: agent.Browser})
	if errors.Is(err, store.ErrDuplicateEndpoint) {
		c.JSON(http.StatusOK, gin.H{"status": "already subscribed"})
		return
	}
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "subscribed", "id": sub.ID})
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription deactivates an endpoint. Unknown or already inactive
// endpoints are not an error.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if _, err := h.store.Deactivate(c.Request.Context(), []string{strings.TrimSpace(req.Endpoint)}); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscriptionSummary reports how many subscribers a campaign would reach.
func (h *Handler) GetSubscriptionSummary(c *gin.Context) {
	n, err := h.store.CountActive(c.Request.Context(), mw.TenantID(c))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete, try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": n})
}
