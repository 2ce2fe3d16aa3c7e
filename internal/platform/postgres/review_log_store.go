package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/platform/logger"
	"github.com/latticelearn/lattice-api/internal/store"
)

// PostgresReviewLogStore implements store.ReviewLogStore using a
// PostgreSQL database as the storage backend.
type PostgresReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewLogStore creates a new PostgreSQL implementation of
// the ReviewLogStore interface. If logger is nil, the default logger is
// used.
func NewPostgresReviewLogStore(db store.DBTX, logger *slog.Logger) *PostgresReviewLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

// Ensure PostgresReviewLogStore implements store.ReviewLogStore
var _ store.ReviewLogStore = (*PostgresReviewLogStore)(nil)

// WithTx implements store.ReviewLogStore.WithTx
func (s *PostgresReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore {
	return &PostgresReviewLogStore{db: tx, logger: s.logger}
}

// Create implements store.ReviewLogStore.Create
func (s *PostgresReviewLogStore) Create(ctx context.Context, record *domain.ReviewRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO review_log (
			id, user_id, node_id, node_type, quality, success,
			time_taken_seconds, review_type, session_id, reviewed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.UserID,
		record.Node.ID,
		record.Node.Type,
		record.Quality,
		record.Success,
		record.TimeTakenSeconds,
		record.ReviewType,
		record.SessionID,
		record.ReviewedAt,
	)
	if err != nil {
		log.Error("failed to insert review record",
			slog.String("error", err.Error()),
			slog.String("user_id", record.UserID.String()),
			slog.String("node", record.Node.String()))
		return MapError(err)
	}

	log.Debug("review record inserted",
		slog.String("id", record.ID.String()),
		slog.String("user_id", record.UserID.String()),
		slog.String("node", record.Node.String()),
		slog.Int("quality", int(record.Quality)))
	return nil
}

// CountCompletedSince implements store.ReviewLogStore.CountCompletedSince
func (s *PostgresReviewLogStore) CountCompletedSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT COUNT(*) FROM review_log WHERE user_id = $1 AND reviewed_at >= $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		log.Error("failed to count reviews",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, MapError(err)
	}

	return count, nil
}
