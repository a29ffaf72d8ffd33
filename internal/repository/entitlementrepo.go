package repository

import (
	"context"

	"github.com/emedina/gamedepot/internal/model"
)

// EntitlementRepository provides access to download entitlements.
type EntitlementRepository interface {
	// Create inserts a new entitlement.
	Create(ctx context.Context, e *model.Entitlement) error

	// GetActive returns the active entitlement for (user, game)
	// or errs.ErrNotFound.
	GetActive(ctx context.Context, userID, gameID string) (*model.Entitlement, error)

	// ListByUser returns the user's active entitlements, most recent first.
	ListByUser(ctx context.Context, userID string) ([]model.Entitlement, error)

	// IncrementDownloadCount bumps the counter on the active entitlement.
	// No-op without error when no active entitlement exists.
	IncrementDownloadCount(ctx context.Context, userID, gameID string) error
}
