package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
	"github.com/emedina/gamedepot/internal/repository"
)

// Tracker owns the per-(user, game) download state machine:
//
//	idle -> downloading -> {paused <-> downloading, completed, failed}
//
// All mutations go through the status repository's per-key Update, so
// concurrent block verifications for the same pair never lose counter
// increments.
type Tracker struct {
	ledger   Ledger
	catalog  *Catalog
	statuses repository.StatusRepository

	now func() time.Time

	// speed simulates assigned throughput on start; progressStep feeds
	// Tick. Both injectable for deterministic tests.
	speed        func() int64
	progressStep func() float64
}

// NewTracker constructs the download tracker.
func NewTracker(ledger Ledger, catalog *Catalog, statuses repository.StatusRepository) *Tracker {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Tracker{
		ledger:   ledger,
		catalog:  catalog,
		statuses: statuses,
		now:      time.Now,
		speed: func() int64 {
			mu.Lock()
			defer mu.Unlock()
			return 10*1024*1024 + rng.Int63n(50*1024*1024) // 10-60 MB/s
		},
		progressStep: func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return rng.Float64() * 2
		},
	}
}

// Status is a pure read of the current row. It never mutates state;
// progress simulation happens only through explicit Tick calls.
func (t *Tracker) Status(ctx context.Context, userID, gameID string) (*model.DownloadStatus, error) {
	return t.statuses.Get(ctx, userID, gameID)
}

// Start moves the download to downloading and assigns a simulated speed.
// Requires a status row (token must have been issued first) and rejects
// restarting a completed download.
func (t *Tracker) Start(ctx context.Context, userID, gameID string) (*model.DownloadStatus, error) {
	return t.statuses.Update(ctx, userID, gameID, func(st *model.DownloadStatus) error {
		if st.State == model.DownloadCompleted {
			return fmt.Errorf("game already downloaded: %w", errs.ErrBadRequest)
		}
		st.State = model.Downloading
		st.DownloadSpeed = t.speed()
		st.LastActivity = t.now()
		return nil
	})
}

// Pause halts the download and zeroes the speed.
func (t *Tracker) Pause(ctx context.Context, userID, gameID string) (*model.DownloadStatus, error) {
	return t.statuses.Update(ctx, userID, gameID, func(st *model.DownloadStatus) error {
		st.State = model.DownloadPaused
		st.DownloadSpeed = 0
		st.LastActivity = t.now()
		return nil
	})
}

// Blocks returns the game's block sequence for an entitled user.
func (t *Tracker) Blocks(ctx context.Context, gameID, userID string) ([]model.GameBlock, error) {
	if err := t.requireOwnership(ctx, userID, gameID); err != nil {
		return nil, err
	}
	return t.catalog.BlocksFor(ctx, gameID)
}

// VerifyBlock compares a claimed checksum against the catalog. A match
// advances the download counters and completes the download when the last
// block lands; a mismatch records the block as failed and tells the client
// to refetch from the canonical URL. Mismatches are expected outcomes,
// not errors.
func (t *Tracker) VerifyBlock(ctx context.Context, blockID, userID, claimedChecksum string) (*model.VerificationResult, error) {
	block, err := t.catalog.FindBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", blockID, errs.ErrNotFound)
	}
	if err := t.requireOwnership(ctx, userID, block.GameID); err != nil {
		return nil, err
	}

	isValid := claimedChecksum == block.Checksum

	_, err = t.statuses.Update(ctx, userID, block.GameID, func(st *model.DownloadStatus) error {
		if isValid {
			st.DownloadedBlocks++
			st.DownloadedSize += block.Size
			st.Progress = float64(st.DownloadedBlocks) / float64(st.TotalBlocks) * 100
			if st.DownloadedBlocks == st.TotalBlocks {
				st.State = model.DownloadCompleted
				st.DownloadSpeed = 0
			}
		} else {
			st.FailedBlocks = append(st.FailedBlocks, blockID)
		}
		st.LastActivity = t.now()
		return nil
	})
	// A verification without a status row still answers; there is just no
	// progress to account it against.
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	res := &model.VerificationResult{
		BlockID:          blockID,
		IsValid:          isValid,
		ActualChecksum:   claimedChecksum,
		ExpectedChecksum: block.Checksum,
		RetryRequired:    !isValid,
	}
	if !isValid {
		res.DownloadURL = block.DownloadURL
	}
	return res, nil
}

// Tick advances the simulated progress of an active download by one step.
// It is the explicit replacement for simulation hidden inside status
// reads: a tick on a non-downloading row changes nothing, and progress
// only ever leaves the downloading state by reaching 100%.
func (t *Tracker) Tick(ctx context.Context, userID, gameID string) (*model.DownloadStatus, error) {
	return t.statuses.Update(ctx, userID, gameID, func(st *model.DownloadStatus) error {
		if st.State != model.Downloading {
			return nil
		}
		st.Progress = min(100, st.Progress+t.progressStep())
		st.DownloadedSize = int64(st.Progress / 100 * float64(st.TotalSize))
		st.DownloadedBlocks = int(st.Progress / 100 * float64(st.TotalBlocks))
		if st.Progress >= 100 {
			st.State = model.DownloadCompleted
			st.DownloadedBlocks = st.TotalBlocks
			st.DownloadedSize = st.TotalSize
			st.DownloadSpeed = 0
		}
		if st.DownloadSpeed > 0 {
			st.ETASeconds = (st.TotalSize - st.DownloadedSize) / st.DownloadSpeed
		} else {
			st.ETASeconds = 0
		}
		st.LastActivity = t.now()
		return nil
	})
}

// requireOwnership maps a missing entitlement to ErrForbidden: the block
// or game may exist, but this user has no claim on it.
func (t *Tracker) requireOwnership(ctx context.Context, userID, gameID string) error {
	_, err := t.ledger.GetEntitlement(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("user %s does not own game %s: %w", userID, gameID, errs.ErrForbidden)
		}
		return err
	}
	return nil
}
