package repository

import (
	"context"
	"rbacgate/internal/rbac/model"
)

// ActivityRepository defines the interface for audit record operations
type ActivityRepository interface {
	// CreateActivity creates a new activity record (append-only)
	CreateActivity(ctx context.Context, record *model.ActivityRecord) error
	// FindActivities finds activity records with pagination and filtering
	FindActivities(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityRecord, int64, error)
	// EnsureActivityIndexes creates indexes for efficient querying
	EnsureActivityIndexes(ctx context.Context) error
}
