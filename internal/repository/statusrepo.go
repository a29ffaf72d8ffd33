package repository

import (
	"context"

	"github.com/emedina/gamedepot/internal/model"
)

// StatusRepository stores per-(user, game) download status rows.
// Update serializes read-modify-write per key so concurrent block
// verifications cannot lose counter increments.
type StatusRepository interface {
	// Put creates or overwrites the row for (userID, gameID).
	Put(ctx context.Context, st *model.DownloadStatus) error

	// Get loads the row or returns errs.ErrNotFound.
	Get(ctx context.Context, userID, gameID string) (*model.DownloadStatus, error)

	// Update applies fn to the current row under the key's lock and
	// stores the result. Returns errs.ErrNotFound when no row exists;
	// any error from fn aborts the update and is returned as-is.
	Update(ctx context.Context, userID, gameID string, fn func(*model.DownloadStatus) error) (*model.DownloadStatus, error)
}
