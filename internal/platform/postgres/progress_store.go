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

// progressColumns is the column list shared by the progress queries.
const progressColumns = `
	user_id, node_id, node_type, status, easiness_factor, interval_days,
	repetitions, last_review, next_review, accumulated_credit,
	credit_postponed, total_reviews, successful_reviews, created_at, updated_at`

// PostgresNodeProgressStore implements store.NodeProgressStore using a
// PostgreSQL database as the storage backend.
type PostgresNodeProgressStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNodeProgressStore creates a new PostgreSQL implementation
// of the NodeProgressStore interface. The database handle may be a
// connection pool or a transaction. If logger is nil, the default
// logger is used.
func NewPostgresNodeProgressStore(db store.DBTX, logger *slog.Logger) *PostgresNodeProgressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNodeProgressStore{
		db:     db,
		logger: logger.With(slog.String("component", "node_progress_store")),
	}
}

// Ensure PostgresNodeProgressStore implements store.NodeProgressStore
var _ store.NodeProgressStore = (*PostgresNodeProgressStore)(nil)

// WithTx implements store.NodeProgressStore.WithTx
func (s *PostgresNodeProgressStore) WithTx(tx *sql.Tx) store.NodeProgressStore {
	return &PostgresNodeProgressStore{db: tx, logger: s.logger}
}

// Get implements store.NodeProgressStore.Get
func (s *PostgresNodeProgressStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	node domain.NodeRef,
) (*domain.NodeProgress, error) {
	query := `SELECT ` + progressColumns + `
		FROM node_progress
		WHERE user_id = $1 AND node_id = $2 AND node_type = $3`

	return s.scanOne(ctx, query, userID, node)
}

// GetForUpdate implements store.NodeProgressStore.GetForUpdate
// It takes a row-level lock so concurrent reviews touching the same row
// serialize instead of losing updates. Must run inside a transaction.
func (s *PostgresNodeProgressStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	node domain.NodeRef,
) (*domain.NodeProgress, error) {
	query := `SELECT ` + progressColumns + `
		FROM node_progress
		WHERE user_id = $1 AND node_id = $2 AND node_type = $3
		FOR UPDATE`

	return s.scanOne(ctx, query, userID, node)
}

func (s *PostgresNodeProgressStore) scanOne(
	ctx context.Context,
	query string,
	userID uuid.UUID,
	node domain.NodeRef,
) (*domain.NodeProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, query, userID, node.ID, node.Type)
	progress, err := scanProgress(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProgressNotFound
		}
		log.Error("failed to get node progress",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("node", node.String()))
		return nil, MapError(err)
	}

	return progress, nil
}

// Upsert implements store.NodeProgressStore.Upsert
// Progress rows are overwritten, never deleted; the conflict target is
// the (user, node) primary key.
func (s *PostgresNodeProgressStore) Upsert(ctx context.Context, progress *domain.NodeProgress) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := progress.Validate(); err != nil {
		log.Warn("node progress validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("user_id", progress.UserID.String()),
			slog.String("node", progress.Node.String()))
		return err
	}

	query := `
		INSERT INTO node_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, node_id, node_type) DO UPDATE SET
			status = EXCLUDED.status,
			easiness_factor = EXCLUDED.easiness_factor,
			interval_days = EXCLUDED.interval_days,
			repetitions = EXCLUDED.repetitions,
			last_review = EXCLUDED.last_review,
			next_review = EXCLUDED.next_review,
			accumulated_credit = EXCLUDED.accumulated_credit,
			credit_postponed = EXCLUDED.credit_postponed,
			total_reviews = EXCLUDED.total_reviews,
			successful_reviews = EXCLUDED.successful_reviews,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		progress.UserID,
		progress.Node.ID,
		progress.Node.Type,
		progress.Status,
		progress.EasinessFactor,
		progress.IntervalDays,
		progress.Repetitions,
		progress.LastReview,
		progress.NextReview,
		progress.AccumulatedCredit,
		progress.CreditPostponed,
		progress.TotalReviews,
		progress.SuccessfulReviews,
		progress.CreatedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert node progress",
			slog.String("error", err.Error()),
			slog.String("user_id", progress.UserID.String()),
			slog.String("node", progress.Node.String()))
		return MapError(err)
	}

	log.Debug("node progress upserted",
		slog.String("user_id", progress.UserID.String()),
		slog.String("node", progress.Node.String()),
		slog.String("status", string(progress.Status)))
	return nil
}

// ListDue implements store.NodeProgressStore.ListDue
func (s *PostgresNodeProgressStore) ListDue(
	ctx context.Context,
	userID, domainID uuid.UUID,
	nodeType *domain.NodeType,
	now time.Time,
) ([]store.DueItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT p.user_id, p.node_id, p.node_type, p.status, p.easiness_factor,
			p.interval_days, p.repetitions, p.last_review, p.next_review,
			p.accumulated_credit, p.credit_postponed, p.total_reviews,
			p.successful_reviews, p.created_at, p.updated_at,
			n.code, n.name
		FROM node_progress p
		JOIN nodes n ON n.id = p.node_id AND n.node_type = p.node_type
		WHERE p.user_id = $1
			AND n.domain_id = $2
			AND p.status IN ('grasped', 'learned')
			AND (p.next_review IS NULL OR p.next_review <= $3)
			AND ($4::text IS NULL OR p.node_type = $4)
		ORDER BY p.next_review ASC NULLS FIRST, p.easiness_factor ASC
	`

	var typeFilter any
	if nodeType != nil {
		typeFilter = string(*nodeType)
	}

	rows, err := s.db.QueryContext(ctx, query, userID, domainID, now, typeFilter)
	if err != nil {
		log.Error("failed to query due nodes",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("domain_id", domainID.String()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	items := []store.DueItem{}
	for rows.Next() {
		var code, name string
		progress, err := scanProgress(func(dest ...any) error {
			return rows.Scan(append(dest, &code, &name)...)
		})
		if err != nil {
			log.Error("failed to scan due row", slog.String("error", err.Error()))
			return nil, err
		}
		items = append(items, store.DueItem{
			Node:     progress.Node,
			NodeCode: code,
			NodeName: name,
			Progress: progress,
		})
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning due rows", slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("listed due nodes",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(items)))
	return items, nil
}

// ListByDomain implements store.NodeProgressStore.ListByDomain
func (s *PostgresNodeProgressStore) ListByDomain(
	ctx context.Context,
	userID, domainID uuid.UUID,
) ([]*domain.NodeProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT p.user_id, p.node_id, p.node_type, p.status, p.easiness_factor,
			p.interval_days, p.repetitions, p.last_review, p.next_review,
			p.accumulated_credit, p.credit_postponed, p.total_reviews,
			p.successful_reviews, p.created_at, p.updated_at
		FROM node_progress p
		JOIN nodes n ON n.id = p.node_id AND n.node_type = p.node_type
		WHERE p.user_id = $1 AND n.domain_id = $2
		ORDER BY n.code ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, domainID)
	if err != nil {
		log.Error("failed to query domain progress",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("domain_id", domainID.String()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	result := []*domain.NodeProgress{}
	for rows.Next() {
		progress, err := scanProgress(rows.Scan)
		if err != nil {
			log.Error("failed to scan progress row", slog.String("error", err.Error()))
			return nil, err
		}
		result = append(result, progress)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning progress rows", slog.String("error", err.Error()))
		return nil, err
	}

	return result, nil
}

// DomainStats implements store.NodeProgressStore.DomainStats
// One aggregate scan; no per-row domain objects are materialized.
func (s *PostgresNodeProgressStore) DomainStats(
	ctx context.Context,
	userID, domainID uuid.UUID,
	now time.Time,
) (*store.DomainStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE p.status = 'fresh'),
			COUNT(*) FILTER (WHERE p.status = 'tackling'),
			COUNT(*) FILTER (WHERE p.status = 'grasped'),
			COUNT(*) FILTER (WHERE p.status = 'learned'),
			COUNT(*) FILTER (
				WHERE p.status IN ('grasped', 'learned')
				AND (p.next_review IS NULL OR p.next_review <= $3)
			),
			COALESCE(SUM(p.total_reviews), 0),
			COALESCE(SUM(p.successful_reviews), 0)
		FROM node_progress p
		JOIN nodes n ON n.id = p.node_id AND n.node_type = p.node_type
		WHERE p.user_id = $1 AND n.domain_id = $2
	`

	stats := &store.DomainStats{CountsByStatus: map[domain.NodeStatus]int{}}
	var fresh, tackling, grasped, learned int

	err := s.db.QueryRowContext(ctx, query, userID, domainID, now).Scan(
		&fresh,
		&tackling,
		&grasped,
		&learned,
		&stats.DueCount,
		&stats.TotalReviews,
		&stats.SuccessfulReviews,
	)
	if err != nil {
		log.Error("failed to aggregate domain stats",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("domain_id", domainID.String()))
		return nil, MapError(err)
	}

	stats.CountsByStatus[domain.StatusFresh] = fresh
	stats.CountsByStatus[domain.StatusTackling] = tackling
	stats.CountsByStatus[domain.StatusGrasped] = grasped
	stats.CountsByStatus[domain.StatusLearned] = learned

	return stats, nil
}

// scanProgress scans one progress row through the given scan function.
func scanProgress(scan func(dest ...any) error) (*domain.NodeProgress, error) {
	var progress domain.NodeProgress
	var nodeType string
	var status string
	var lastReview, nextReview sql.NullTime

	err := scan(
		&progress.UserID,
		&progress.Node.ID,
		&nodeType,
		&status,
		&progress.EasinessFactor,
		&progress.IntervalDays,
		&progress.Repetitions,
		&lastReview,
		&nextReview,
		&progress.AccumulatedCredit,
		&progress.CreditPostponed,
		&progress.TotalReviews,
		&progress.SuccessfulReviews,
		&progress.CreatedAt,
		&progress.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	progress.Node.Type = domain.NodeType(nodeType)
	progress.Status = domain.NodeStatus(status)
	if lastReview.Valid {
		t := lastReview.Time
		progress.LastReview = &t
	}
	if nextReview.Valid {
		t := nextReview.Time
		progress.NextReview = &t
	}

	return &progress, nil
}

// closeRows closes a result set, logging close failures.
func closeRows(rows *sql.Rows, log *slog.Logger) {
	if err := rows.Close(); err != nil {
		log.Error("failed to close rows", slog.String("error", err.Error()))
	}
}
