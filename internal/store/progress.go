package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// DueItem pairs a due progress row with the node's display metadata for
// the review queue.
type DueItem struct {
	Node     domain.NodeRef
	NodeCode string
	NodeName string
	Progress *domain.NodeProgress
}

// DomainStats is the bulk aggregation over one user's progress inside a
// domain, computed by a single scan without loading full graph state.
type DomainStats struct {
	CountsByStatus    map[domain.NodeStatus]int
	DueCount          int
	TotalReviews      int
	SuccessfulReviews int
}

// SuccessRate is the aggregate success share, 0 when unreviewed.
func (s *DomainStats) SuccessRate() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	return float64(s.SuccessfulReviews) / float64(s.TotalReviews)
}

// NodeProgressStore defines the interface for scheduling-state persistence.
type NodeProgressStore interface {
	// Get retrieves a progress row by its (user, node) key.
	// Returns ErrProgressNotFound if the row does not exist. No row lock
	// is taken; do not use when the row will be updated concurrently.
	Get(ctx context.Context, userID uuid.UUID, node domain.NodeRef) (*domain.NodeProgress, error)

	// GetForUpdate retrieves a progress row with a row-level lock using
	// SELECT FOR UPDATE. Must be called within a transaction. Returns
	// ErrProgressNotFound if the row does not exist; the caller then
	// proceeds with fresh defaults and relies on the upsert's conflict
	// handling for races on first insert.
	GetForUpdate(ctx context.Context, userID uuid.UUID, node domain.NodeRef) (*domain.NodeProgress, error)

	// Upsert inserts or overwrites a progress row. Progress rows are
	// never deleted; subsequent reviews overwrite them.
	Upsert(ctx context.Context, progress *domain.NodeProgress) error

	// ListDue returns the due queue for a user within a domain: status
	// grasped/learned and next_review unset or arrived, joined with the
	// node display metadata. nodeType narrows the queue when non-nil.
	ListDue(
		ctx context.Context,
		userID, domainID uuid.UUID,
		nodeType *domain.NodeType,
		now time.Time,
	) ([]DueItem, error)

	// ListByDomain returns all progress rows for a user's nodes within a
	// domain, for progress summaries.
	ListByDomain(ctx context.Context, userID, domainID uuid.UUID) ([]*domain.NodeProgress, error)

	// DomainStats aggregates per-status counts, due count and success
	// rate for a user's nodes within a domain.
	DomainStats(ctx context.Context, userID, domainID uuid.UUID, now time.Time) (*DomainStats, error)

	// WithTx returns a store bound to the given transaction.
	WithTx(tx *sql.Tx) NodeProgressStore
}
