package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// PurchaseRepo implements PurchaseRepository using PostgreSQL.
type PurchaseRepo struct{ db *DB }

// NewPurchaseRepo constructs a purchase repository.
func NewPurchaseRepo(db *DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// Create inserts a new purchase row.
func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (id, user_id, game_id, amount, currency, payment_method, status, country, transaction_id, purchase_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Pool.Exec(ctx, q,
		p.ID, p.UserID, p.GameID, p.Amount, p.Currency, p.PaymentMethod,
		string(p.Status), p.Country, p.TransactionID, p.PurchaseDate)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Get selects a purchase by id.
func (r *PurchaseRepo) Get(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	const q = `
SELECT id, user_id, game_id, amount, currency, payment_method, status, country, transaction_id, purchase_date, completed_at
FROM purchases WHERE id=$1`
	p, err := scanPurchase(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByUser returns the user's purchases ordered by purchase date DESC.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	const q = `
SELECT id, user_id, game_id, amount, currency, payment_method, status, country, transaction_id, purchase_date, completed_at
FROM purchases
WHERE user_id=$1
ORDER BY purchase_date DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Settle moves a pending purchase into a terminal status. The WHERE clause
// restricts the update to non-terminal rows, so a second settlement attempt
// affects zero rows and reports applied=false.
func (r *PurchaseRepo) Settle(ctx context.Context, id uuid.UUID, status model.PurchaseStatus, completedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, errs.ErrBadRequest
	}
	const q = `
UPDATE purchases
SET status=$2, completed_at=CASE WHEN $2='completed' THEN $3 ELSE completed_at END
WHERE id=$1 AND status IN ('pending','processing')`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(status), completedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		const exists = `SELECT 1 FROM purchases WHERE id=$1`
		var one int
		if err := r.db.Pool.QueryRow(ctx, exists, id).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, errs.ErrNotFound
			}
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var (
		p      model.Purchase
		status string
		done   *time.Time
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.GameID, &p.Amount, &p.Currency, &p.PaymentMethod,
		&status, &p.Country, &p.TransactionID, &p.PurchaseDate, &done); err != nil {
		return nil, err
	}
	p.Status = model.PurchaseStatus(status)
	p.CompletedAt = done
	return &p, nil
}
