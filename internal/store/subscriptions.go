package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"push-campaign-backend/internal/model"
)

// deactivateChunk keeps IN lists well under driver parameter limits.
const deactivateChunk = 1000

// ListActive returns every active subscription of a tenant, oldest first.
func (s *gormStore) ListActive(ctx context.Context, tenantID string) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	return subs, nil
}

// CountActive returns the number of active subscriptions of a tenant.
func (s *gormStore) CountActive(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	return n, nil
}

// Create registers a new endpoint. The endpoint must not exist anywhere in the
// registry, whatever its tenant or state.
func (s *gormStore) Create(ctx context.Context, tenantID, endpoint string, keys model.Keys, device model.DeviceInfo) (*model.Subscription, error) {
	sub := model.Subscription{
		TenantID:   tenantID,
		Endpoint:   endpoint,
		P256DH:     keys.P256DH,
		Auth:       keys.Auth,
		DeviceType: device.DeviceType,
		Browser:    device.Browser,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.Subscription{}).Where("endpoint = ?", endpoint).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateEndpoint
		}
		if err := tx.Create(&sub).Error; err != nil {
			// A concurrent subscribe can still win the race to the unique index.
			if isUniqueViolation(err) {
				return ErrDuplicateEndpoint
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEndpoint) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return &sub, nil
}

// Deactivate flips is_active off for the given endpoints.
func (s *gormStore) Deactivate(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = deactivate(tx, endpoints, time.Now().UTC())
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func deactivate(tx *gorm.DB, endpoints []string, at time.Time) (int64, error) {
	var total int64
	for start := 0; start < len(endpoints); start += deactivateChunk {
		end := min(start+deactivateChunk, len(endpoints))
		res := tx.Model(&model.Subscription{}).
			Where("endpoint IN ? AND is_active = ?", endpoints[start:end], true).
			Updates(map[string]any{"is_active": false, "deactivated_at": at})
		if res.Error != nil {
			return 0, fmt.Errorf("failed to deactivate subscriptions: %w", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

// isUniqueViolation reports a unique-index conflict. Postgres errors arrive
// translated by gorm; the sqlite driver reports its own constraint codes.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
