// Package memory contains in-memory implementations of repository interfaces.
// They are the reference backend: process-lifetime state only, safe for
// concurrent use by request handlers and the settlement worker.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PurchaseRepo implements PurchaseRepository over a mutex-guarded map.
type PurchaseRepo struct {
	mu        sync.RWMutex
	purchases map[uuid.UUID]model.Purchase
}

// NewPurchaseRepo constructs an empty purchase store.
func NewPurchaseRepo() *PurchaseRepo {
	return &PurchaseRepo{purchases: make(map[uuid.UUID]model.Purchase)}
}

// Create inserts a new purchase. At most one non-terminal purchase may
// exist per (user, game); a second one conflicts, mirroring the partial
// unique index of the Postgres backend.
func (r *PurchaseRepo) Create(_ context.Context, p *model.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[p.ID]; ok {
		return errs.ErrConflict
	}
	if !p.Status.Terminal() {
		for _, cur := range r.purchases {
			if cur.UserID == p.UserID && cur.GameID == p.GameID && !cur.Status.Terminal() {
				return errs.ErrConflict
			}
		}
	}
	r.purchases[p.ID] = *p
	return nil
}

// Get loads a purchase by id.
func (r *PurchaseRepo) Get(_ context.Context, id uuid.UUID) (*model.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

// ListByUser returns the user's purchases, most recent first.
func (r *PurchaseRepo) ListByUser(_ context.Context, userID string) ([]model.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Purchase, 0)
	for _, p := range r.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PurchaseDate.After(out[j].PurchaseDate)
	})
	return out, nil
}

// Settle moves a pending purchase to a terminal status. Returns false
// when the purchase is already settled (idempotent).
func (r *PurchaseRepo) Settle(_ context.Context, id uuid.UUID, status model.PurchaseStatus, completedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, errs.ErrBadRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return false, errs.ErrNotFound
	}
	if p.Status.Terminal() {
		return false, nil
	}
	p.Status = status
	if status == model.PurchaseCompleted {
		ts := completedAt
		p.CompletedAt = &ts
	}
	r.purchases[id] = p
	return true, nil
}
