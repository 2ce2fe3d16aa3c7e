package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// ReviewLogStore persists the append-only review history.
type ReviewLogStore interface {
	// Create appends one history row. History rows are never updated or
	// deleted.
	Create(ctx context.Context, record *domain.ReviewRecord) error

	// CountCompletedSince counts a user's reviews at or after the given
	// instant, for "completed today" reporting.
	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// WithTx returns a store bound to the given transaction.
	WithTx(tx *sql.Tx) ReviewLogStore
}
