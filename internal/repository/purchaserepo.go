// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/emedina/gamedepot/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PurchaseRepository provides access to purchase records.
type PurchaseRepository interface {
	// Create inserts a new pending purchase.
	Create(ctx context.Context, p *model.Purchase) error

	// Get loads a purchase by id or returns errs.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Purchase, error)

	// ListByUser returns the user's purchases, most recent first.
	ListByUser(ctx context.Context, userID string) ([]model.Purchase, error)

	// Settle atomically moves a pending purchase to the given terminal
	// status and stamps completedAt. It reports false without error when
	// the purchase is already in a terminal state, which makes settlement
	// idempotent.
	Settle(ctx context.Context, id uuid.UUID, status model.PurchaseStatus, completedAt time.Time) (bool, error)
}
