// Package service contains the application services of the distribution core:
// the entitlement ledger, purchase settlement, the block catalog, CDN
// selection, token issuance and download tracking.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/gamedir"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/emedina/gamedepot/internal/repository"
)

// PurchaseRequest carries the client-supplied purchase parameters.
// Currency is optional; it defaults by country.
type PurchaseRequest struct {
	PaymentMethod string
	Country       string
	Currency      string
}

// Ledger owns purchase and entitlement records and is the source of truth
// for who may download what.
type Ledger interface {
	// RecordPurchase creates a pending purchase after checking the game,
	// the one-active-entitlement invariant and that no purchase for the
	// same (user, game) is still settling.
	RecordPurchase(ctx context.Context, userID, gameID string, req PurchaseRequest) (*model.Purchase, error)
	// Settle resolves a pending purchase; on success it grants an
	// entitlement. Settling an already-settled purchase is a no-op.
	Settle(ctx context.Context, purchaseID uuid.UUID, succeeded bool) error
	// ListPurchases returns the user's purchases, most recent first.
	ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error)
	// GetPurchase returns one purchase; purchases of other users read as absent.
	GetPurchase(ctx context.Context, userID string, purchaseID uuid.UUID) (*model.Purchase, error)
	// ListEntitlements returns the user's active entitlements, most recent first.
	ListEntitlements(ctx context.Context, userID string) ([]model.Entitlement, error)
	// GetEntitlement returns the active entitlement for (user, game) or errs.ErrNotFound.
	GetEntitlement(ctx context.Context, userID, gameID string) (*model.Entitlement, error)
	// CanDownload reports whether the user holds an active, non-exhausted entitlement.
	CanDownload(ctx context.Context, userID, gameID string) (bool, error)
	// RecordDownloadUsed consumes one lifetime download; no-op without an
	// active entitlement.
	RecordDownloadUsed(ctx context.Context, userID, gameID string) error
}

// LedgerImpl implements Ledger over purchase/entitlement repositories.
type LedgerImpl struct {
	purchases    repository.PurchaseRepository
	entitlements repository.EntitlementRepository
	dir          gamedir.Directory
	maxDownloads int
	now          func() time.Time
}

// NewLedger constructs the entitlement ledger. maxDownloads caps lifetime
// downloads per granted entitlement.
func NewLedger(purchases repository.PurchaseRepository, entitlements repository.EntitlementRepository, dir gamedir.Directory, maxDownloads int) *LedgerImpl {
	if maxDownloads <= 0 {
		maxDownloads = 5
	}
	return &LedgerImpl{
		purchases:    purchases,
		entitlements: entitlements,
		dir:          dir,
		maxDownloads: maxDownloads,
		now:          time.Now,
	}
}

// currencyByCountry maps store countries to their billing currency.
// Brazil bills in USD.
var currencyByCountry = map[string]string{
	"PE": "PEN",
	"AR": "ARS",
	"MX": "MXN",
	"US": "USD",
	"BR": "USD",
}

// RecordPurchase validates the game, enforces the single-active-entitlement
// invariant, rejects a purchase while another one for the same (user, game)
// is still in flight, and records a pending purchase. Price resolution:
// requested currency first, country currency second, USD as the final fallback.
func (l *LedgerImpl) RecordPurchase(ctx context.Context, userID, gameID string, req PurchaseRequest) (*model.Purchase, error) {
	if userID == "" || gameID == "" {
		return nil, fmt.Errorf("%w: empty userID/gameID", errs.ErrBadRequest)
	}
	if req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: empty payment method", errs.ErrBadRequest)
	}

	game, err := l.dir.Lookup(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("lookup game %s: %w", gameID, err)
	}
	if !game.Available {
		return nil, fmt.Errorf("game %s: %w", gameID, errs.ErrUnavailable)
	}

	if _, err := l.entitlements.GetActive(ctx, userID, gameID); err == nil {
		return nil, fmt.Errorf("user already owns game %s: %w", gameID, errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	// A purchase still awaiting settlement blocks a repeat purchase; letting
	// both through would charge the user twice for one possible entitlement.
	existing, err := l.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, prev := range existing {
		if prev.GameID == gameID && !prev.Status.Terminal() {
			return nil, fmt.Errorf("purchase %s for game %s is still settling: %w", prev.ID, gameID, errs.ErrConflict)
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = currencyByCountry[req.Country]
		if currency == "" {
			currency = "USD"
		}
	}
	amount, ok := game.Price[currency]
	if !ok {
		currency, amount = "USD", game.Price["USD"]
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	txn, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := l.now()
	p := &model.Purchase{
		ID:            id,
		UserID:        userID,
		GameID:        gameID,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		Status:        model.PurchasePending,
		Country:       req.Country,
		TransactionID: fmt.Sprintf("txn_%d_%s", now.UnixMilli(), txn.String()[:8]),
		PurchaseDate:  now,
	}
	if err := l.purchases.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Settle drives the purchase to a terminal status. The repository applies
// the transition at most once; when it reports the purchase as already
// settled this call returns nil without side effects.
func (l *LedgerImpl) Settle(ctx context.Context, purchaseID uuid.UUID, succeeded bool) error {
	p, err := l.purchases.Get(ctx, purchaseID)
	if err != nil {
		return err
	}

	status := model.PurchaseFailed
	if succeeded {
		status = model.PurchaseCompleted
	}
	applied, err := l.purchases.Settle(ctx, purchaseID, status, l.now())
	if err != nil {
		return err
	}
	if !applied || !succeeded {
		return nil
	}

	eid, err := uuid.NewV4()
	if err != nil {
		return err
	}
	e := &model.Entitlement{
		ID:            eid,
		UserID:        p.UserID,
		GameID:        p.GameID,
		PurchaseID:    p.ID,
		GrantedAt:     l.now(),
		Active:        true,
		DownloadCount: 0,
		MaxDownloads:  l.maxDownloads,
	}
	if err := l.entitlements.Create(ctx, e); err != nil {
		// A conflicting grant means an active entitlement for (user, game)
		// already exists, so the user holds what this purchase paid for.
		if errors.Is(err, errs.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}

// ListPurchases returns the user's purchase history, most recent first.
func (l *LedgerImpl) ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrBadRequest)
	}
	return l.purchases.ListByUser(ctx, userID)
}

// GetPurchase returns one purchase. A purchase belonging to another user
// reads as not found rather than forbidden, so ids cannot be probed.
func (l *LedgerImpl) GetPurchase(ctx context.Context, userID string, purchaseID uuid.UUID) (*model.Purchase, error) {
	p, err := l.purchases.Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return p, nil
}

// ListEntitlements returns the user's active entitlements, most recent first.
func (l *LedgerImpl) ListEntitlements(ctx context.Context, userID string) ([]model.Entitlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrBadRequest)
	}
	return l.entitlements.ListByUser(ctx, userID)
}

// GetEntitlement returns the active entitlement for (user, game).
func (l *LedgerImpl) GetEntitlement(ctx context.Context, userID, gameID string) (*model.Entitlement, error) {
	return l.entitlements.GetActive(ctx, userID, gameID)
}

// CanDownload reports active ∧ downloadCount < maxDownloads.
func (l *LedgerImpl) CanDownload(ctx context.Context, userID, gameID string) (bool, error) {
	e, err := l.entitlements.GetActive(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return e.Active && !e.Exhausted(), nil
}

// RecordDownloadUsed consumes one download from the lifetime budget.
func (l *LedgerImpl) RecordDownloadUsed(ctx context.Context, userID, gameID string) error {
	return l.entitlements.IncrementDownloadCount(ctx, userID, gameID)
}
