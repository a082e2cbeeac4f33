package mw

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const tenantKey = "tenant_id"

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// Tenant reads the trusted tenant identity from header and rejects requests without one.
func Tenant(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(header))
		err := validation.Validate(tenantID,
			validation.Required,
			validation.RuneLength(1, 64),
			validation.Match(tenantPattern),
		)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": header + ": " + err.Error()})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant set by Tenant, or "" outside tenant-scoped routes.
func TenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
