package postgres

import (
	"context"
	"errors"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/jackc/pgx/v5"
)

// EntitlementRepo implements EntitlementRepository using PostgreSQL.
type EntitlementRepo struct{ db *DB }

// NewEntitlementRepo constructs an entitlement repository.
func NewEntitlementRepo(db *DB) *EntitlementRepo { return &EntitlementRepo{db: db} }

// Create inserts a new entitlement row. A partial unique index on
// (user_id, game_id) WHERE active guards the one-active-grant invariant.
func (r *EntitlementRepo) Create(ctx context.Context, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (id, user_id, game_id, purchase_id, granted_at, active, download_count, max_downloads)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.UserID, e.GameID, e.PurchaseID, e.GrantedAt, e.Active, e.DownloadCount, e.MaxDownloads)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetActive selects the active entitlement for (user, game).
func (r *EntitlementRepo) GetActive(ctx context.Context, userID, gameID string) (*model.Entitlement, error) {
	const q = `
SELECT id, user_id, game_id, purchase_id, granted_at, active, download_count, max_downloads
FROM entitlements
WHERE user_id=$1 AND game_id=$2 AND active`
	e, err := scanEntitlement(r.db.Pool.QueryRow(ctx, q, userID, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListByUser returns active entitlements ordered by grant date DESC.
func (r *EntitlementRepo) ListByUser(ctx context.Context, userID string) ([]model.Entitlement, error) {
	const q = `
SELECT id, user_id, game_id, purchase_id, granted_at, active, download_count, max_downloads
FROM entitlements
WHERE user_id=$1 AND active
ORDER BY granted_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Entitlement, 0)
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// IncrementDownloadCount bumps the counter on the active entitlement.
// Zero affected rows is not an error (no active entitlement).
func (r *EntitlementRepo) IncrementDownloadCount(ctx context.Context, userID, gameID string) error {
	const q = `
UPDATE entitlements
SET download_count = download_count + 1
WHERE user_id=$1 AND game_id=$2 AND active`
	_, err := r.db.Pool.Exec(ctx, q, userID, gameID)
	return err
}

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	var e model.Entitlement
	if err := row.Scan(&e.ID, &e.UserID, &e.GameID, &e.PurchaseID, &e.GrantedAt,
		&e.Active, &e.DownloadCount, &e.MaxDownloads); err != nil {
		return nil, err
	}
	return &e, nil
}
