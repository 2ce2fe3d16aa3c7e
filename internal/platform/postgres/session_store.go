package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/platform/logger"
	"github.com/latticelearn/lattice-api/internal/store"
)

// PostgresStudySessionStore implements store.StudySessionStore using a
// PostgreSQL database as the storage backend.
type PostgresStudySessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStudySessionStore creates a new PostgreSQL implementation
// of the StudySessionStore interface. If logger is nil, the default
// logger is used.
func NewPostgresStudySessionStore(db store.DBTX, logger *slog.Logger) *PostgresStudySessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStudySessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "study_session_store")),
	}
}

// Ensure PostgresStudySessionStore implements store.StudySessionStore
var _ store.StudySessionStore = (*PostgresStudySessionStore)(nil)

// WithTx implements store.StudySessionStore.WithTx
func (s *PostgresStudySessionStore) WithTx(tx *sql.Tx) store.StudySessionStore {
	return &PostgresStudySessionStore{db: tx, logger: s.logger}
}

// Create implements store.StudySessionStore.Create
func (s *PostgresStudySessionStore) Create(ctx context.Context, session *domain.StudySession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO study_sessions (id, user_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.StartedAt,
		session.EndedAt,
	)
	if err != nil {
		log.Error("failed to insert study session",
			slog.String("error", err.Error()),
			slog.String("user_id", session.UserID.String()))
		return MapError(err)
	}

	log.Debug("study session created",
		slog.String("id", session.ID.String()),
		slog.String("user_id", session.UserID.String()))
	return nil
}

// GetOpen implements store.StudySessionStore.GetOpen
// A user has at most one open session by construction; if stale data
// left more than one, the most recent wins.
func (s *PostgresStudySessionStore) GetOpen(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, started_at, ended_at
		FROM study_sessions
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`

	var session domain.StudySession
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&session.ID, &session.UserID, &session.StartedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get open session",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	return &session, nil
}

// Close implements store.StudySessionStore.Close
func (s *PostgresStudySessionStore) Close(
	ctx context.Context,
	sessionID uuid.UUID,
	endedAt time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE study_sessions
		SET ended_at = $2
		WHERE id = $1 AND ended_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, sessionID, endedAt)
	if err != nil {
		log.Error("failed to close study session",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "open study session"); err != nil {
		return store.ErrSessionNotFound
	}

	log.Debug("study session closed", slog.String("session_id", sessionID.String()))
	return nil
}

// CloseIdleBefore implements store.StudySessionStore.CloseIdleBefore
// A session's last activity is its most recent logged review, or its
// start when it has none.
func (s *PostgresStudySessionStore) CloseIdleBefore(
	ctx context.Context,
	cutoff, endedAt time.Time,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE study_sessions ss
		SET ended_at = $2
		WHERE ss.ended_at IS NULL
			AND COALESCE(
				(SELECT MAX(rl.reviewed_at) FROM review_log rl WHERE rl.session_id = ss.id),
				ss.started_at
			) < $1`

	result, err := s.db.ExecContext(ctx, query, cutoff, endedAt)
	if err != nil {
		log.Error("failed to close idle sessions", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rowsAffected > 0 {
		log.Info("closed idle study sessions",
			slog.Int64("count", rowsAffected),
			slog.Time("cutoff", cutoff))
	}
	return int(rowsAffected), nil
}
