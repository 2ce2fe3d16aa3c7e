package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// StudySessionStore persists study sessions.
type StudySessionStore interface {
	// Create opens a new session.
	Create(ctx context.Context, session *domain.StudySession) error

	// GetOpen returns the user's open session.
	// Returns ErrSessionNotFound when none is open.
	GetOpen(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error)

	// Close ends a session at the given instant.
	// Returns ErrSessionNotFound if the session does not exist or is
	// already closed.
	Close(ctx context.Context, sessionID uuid.UUID, endedAt time.Time) error

	// CloseIdleBefore ends every open session whose last recorded review
	// (or start, when it has none) is older than the cutoff. Returns the
	// number of sessions closed. Used by the periodic sweeper.
	CloseIdleBefore(ctx context.Context, cutoff, endedAt time.Time) (int, error)

	// WithTx returns a store bound to the given transaction.
	WithTx(tx *sql.Tx) StudySessionStore
}
