package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/gofrs/uuid/v5"
)

// EntitlementRepo implements EntitlementRepository over a mutex-guarded map.
type EntitlementRepo struct {
	mu           sync.RWMutex
	entitlements map[uuid.UUID]model.Entitlement
}

// NewEntitlementRepo constructs an empty entitlement store.
func NewEntitlementRepo() *EntitlementRepo {
	return &EntitlementRepo{entitlements: make(map[uuid.UUID]model.Entitlement)}
}

// Create inserts a new entitlement. Rejects a second active grant for
// the same (user, game).
func (r *EntitlementRepo) Create(_ context.Context, e *model.Entitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.entitlements {
		if cur.UserID == e.UserID && cur.GameID == e.GameID && cur.Active {
			return errs.ErrConflict
		}
	}
	r.entitlements[e.ID] = *e
	return nil
}

// GetActive returns the active entitlement for (user, game).
func (r *EntitlementRepo) GetActive(_ context.Context, userID, gameID string) (*model.Entitlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entitlements {
		if e.UserID == userID && e.GameID == gameID && e.Active {
			out := e
			return &out, nil
		}
	}
	return nil, errs.ErrNotFound
}

// ListByUser returns the user's active entitlements, most recent first.
func (r *EntitlementRepo) ListByUser(_ context.Context, userID string) ([]model.Entitlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Entitlement, 0)
	for _, e := range r.entitlements {
		if e.UserID == userID && e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GrantedAt.After(out[j].GrantedAt)
	})
	return out, nil
}

// IncrementDownloadCount bumps the counter on the active entitlement.
// No-op when none exists.
func (r *EntitlementRepo) IncrementDownloadCount(_ context.Context, userID, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entitlements {
		if e.UserID == userID && e.GameID == gameID && e.Active {
			e.DownloadCount++
			r.entitlements[id] = e
			return nil
		}
	}
	return nil
}
