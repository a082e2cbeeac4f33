package model

import "time"

// Subscription holds one browser push subscription owned by a tenant.
// Endpoints are unique across all tenants; rows are never deleted, only deactivated.
type Subscription struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	TenantID        string     `gorm:"size:64;not null;index:idx_subscriptions_tenant_active,priority:1" json:"tenant_id"`
	Endpoint        string     `gorm:"type:text;not null;uniqueIndex" json:"endpoint"`
	P256DH          string     `gorm:"column:p256dh;not null" json:"-"`
	Auth            string     `gorm:"not null" json:"-"`
	DeviceType      string     `gorm:"size:32" json:"device_type"`
	Browser         string     `gorm:"size:64" json:"browser"`
	IsActive        bool       `gorm:"not null;index:idx_subscriptions_tenant_active,priority:2" json:"is_active"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	LastDeliveredAt *time.Time `json:"last_delivered_at,omitempty"`
	DeactivatedAt   *time.Time `json:"deactivated_at,omitempty"`
}

// Keys is the encryption key pair a browser hands out with its endpoint.
type Keys struct {
	P256DH string
	Auth   string
}

// DeviceInfo is the client metadata captured at subscribe time.
type DeviceInfo struct {
	DeviceType string
	Browser    string
}
