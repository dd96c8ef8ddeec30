package validation

import (
	"context"

	"github.com/google/uuid"
)

// ValidationRepository is the durable home for validation records. Besides
// create/read it offers a version-guarded commit and the listings backing the
// reconcile pull path for clients that missed a push.
type ValidationRepository interface {
	Create(ctx context.Context, rec *ValidationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ValidationRecord, error)

	// CommitReview persists rec's review fields only if the stored version
	// still equals expectedVersion, bumping the version on success. Returns
	// ErrConflict when another reviewer committed first and ErrNotFound when
	// the record does not exist.
	CommitReview(ctx context.Context, rec *ValidationRecord, expectedVersion int) error

	ListPending(ctx context.Context, limit, offset int) ([]*ValidationRecord, int, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ValidationRecord, int, error)
}
