package memory

import (
	"context"
	"sync"

	"github.com/emedina/gamedepot/internal/errs"
	"github.com/emedina/gamedepot/internal/model"
)

// StatusRepo implements StatusRepository with one lock per (user, game)
// key so read-modify-write cycles on the same row are serialized while
// rows of different users update concurrently.
type StatusRepo struct {
	mu       sync.Mutex
	rows     map[string]*model.DownloadStatus
	rowLocks map[string]*sync.Mutex
}

// NewStatusRepo constructs an empty status store.
func NewStatusRepo() *StatusRepo {
	return &StatusRepo{
		rows:     make(map[string]*model.DownloadStatus),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func statusKey(userID, gameID string) string { return userID + "\x00" + gameID }

// lockFor returns the per-key mutex, creating it on first use.
// Locks are never removed; rows live for the process lifetime.
func (r *StatusRepo) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		r.rowLocks[key] = l
	}
	return l
}

// Put creates or overwrites the row for (userID, gameID).
func (r *StatusRepo) Put(_ context.Context, st *model.DownloadStatus) error {
	key := statusKey(st.UserID, st.GameID)
	l := r.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cp := *st
	cp.FailedBlocks = append([]string(nil), st.FailedBlocks...)
	r.mu.Lock()
	r.rows[key] = &cp
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the row or errs.ErrNotFound.
func (r *StatusRepo) Get(_ context.Context, userID, gameID string) (*model.DownloadStatus, error) {
	key := statusKey(userID, gameID)
	l := r.lockFor(key)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	row, ok := r.rows[key]
	r.mu.Unlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *row
	cp.FailedBlocks = append([]string(nil), row.FailedBlocks...)
	return &cp, nil
}

// Update applies fn to the row under its key lock and stores the result.
func (r *StatusRepo) Update(_ context.Context, userID, gameID string, fn func(*model.DownloadStatus) error) (*model.DownloadStatus, error) {
	key := statusKey(userID, gameID)
	l := r.lockFor(key)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	row, ok := r.rows[key]
	r.mu.Unlock()
	if !ok {
		return nil, errs.ErrNotFound
	}

	cp := *row
	cp.FailedBlocks = append([]string(nil), row.FailedBlocks...)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	stored := cp
	stored.FailedBlocks = append([]string(nil), cp.FailedBlocks...)
	r.mu.Lock()
	r.rows[key] = &stored
	r.mu.Unlock()

	out := cp
	out.FailedBlocks = append([]string(nil), cp.FailedBlocks...)
	return &out, nil
}
