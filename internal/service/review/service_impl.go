package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/domain/credit"
	"github.com/latticelearn/lattice-api/internal/domain/srs"
	"github.com/latticelearn/lattice-api/internal/platform/logger"
	"github.com/latticelearn/lattice-api/internal/platform/postgres"
	"github.com/latticelearn/lattice-api/internal/store"
)

// Verify interface compliance at compile time
var _ ReviewService = (*reviewServiceImpl)(nil)

// maxConflictAttempts bounds retries of a whole review when concurrent
// writers keep colliding.
const maxConflictAttempts = 3

// reviewServiceImpl implements the ReviewService interface.
type reviewServiceImpl struct {
	db            *sql.DB
	runTx         func(ctx context.Context, fn store.TxFn) error // Injectable for testing
	progressStore store.NodeProgressStore
	graphStore    store.GraphStore
	reviewLog     store.ReviewLogStore
	sessionStore  store.StudySessionStore
	srsService    srs.Service
	creditParams  *credit.Params
	direction     credit.Direction
	logger        *slog.Logger
	timeFunc      func() time.Time // Injectable for testing
}

// NewReviewService creates a new ReviewService implementation.
func NewReviewService(
	db *sql.DB,
	progressStore store.NodeProgressStore,
	graphStore store.GraphStore,
	reviewLog store.ReviewLogStore,
	sessionStore store.StudySessionStore,
	srsService srs.Service,
	creditParams *credit.Params,
	direction credit.Direction,
	logger *slog.Logger,
) ReviewService {
	if progressStore == nil {
		panic("progressStore cannot be nil")
	}
	if graphStore == nil {
		panic("graphStore cannot be nil")
	}
	if reviewLog == nil {
		panic("reviewLog cannot be nil")
	}
	if sessionStore == nil {
		panic("sessionStore cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}
	if creditParams == nil {
		creditParams = credit.NewDefaultParams()
	}
	if direction == "" {
		direction = credit.DirectionPrerequisites
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &reviewServiceImpl{
		db: db,
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		progressStore: progressStore,
		graphStore:    graphStore,
		reviewLog:     reviewLog,
		sessionStore:  sessionStore,
		srsService:    srsService,
		creditParams:  creditParams,
		direction:     direction,
		logger:        logger.With(slog.String("component", "review_service")),
		timeFunc:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitReview implements ReviewService.SubmitReview.
func (s *reviewServiceImpl) SubmitReview(
	ctx context.Context,
	userID uuid.UUID,
	req SubmitReviewRequest,
) (*ReviewResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Quality.Validate(); err != nil {
		log.Warn("invalid review quality",
			slog.String("user_id", userID.String()),
			slog.Int("quality", int(req.Quality)))
		return nil, ErrInvalidQuality
	}
	if err := req.Node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}

	// Node identity and edges are read-only inputs owned by the graph
	// editor; resolving them outside the transaction keeps lock scope
	// down to the progress rows.
	if _, err := s.graphStore.GetNode(ctx, req.Node); err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("review for unknown node",
				slog.String("user_id", userID.String()),
				slog.String("node", req.Node.String()))
			return nil, ErrNodeNotFound
		}
		return nil, NewSubmitReviewError("failed to resolve node", err)
	}

	edges, err := s.neighborEdges(ctx, req.Node)
	if err != nil {
		return nil, NewSubmitReviewError("failed to load prerequisite edges", err)
	}

	var result *ReviewResult
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		result, err = s.submitOnce(ctx, userID, req, edges)
		if err == nil {
			return result, nil
		}
		if !postgres.IsRetryableConflict(err) {
			return nil, err
		}
		log.Warn("review transaction conflicted, retrying",
			slog.Int("attempt", attempt),
			slog.String("user_id", userID.String()),
			slog.String("node", req.Node.String()))
	}

	log.Error("review retries exhausted",
		slog.String("user_id", userID.String()),
		slog.String("node", req.Node.String()))
	return nil, ErrConflictRetriesExhausted
}

// submitOnce runs a single transactional attempt of the review.
func (s *reviewServiceImpl) submitOnce(
	ctx context.Context,
	userID uuid.UUID,
	req SubmitReviewRequest,
	edges []domain.PrerequisiteEdge,
) (*ReviewResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	var result *ReviewResult
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		progressStore := s.progressStore.WithTx(tx)
		reviewLog := s.reviewLog.WithTx(tx)
		sessionStore := s.sessionStore.WithTx(tx)

		// Lock every progress row the review touches, in a deterministic
		// order so overlapping reviews cannot deadlock.
		locked, err := s.lockProgress(ctx, progressStore, userID, req.Node, edges)
		if err != nil {
			return err
		}

		previous := locked[req.Node]
		if previous == nil {
			previous, err = domain.NewNodeProgress(userID, req.Node)
			if err != nil {
				return fmt.Errorf("failed to create progress defaults: %w", err)
			}
		}

		reviewType := domain.ReviewTypeAhead
		if previous.Due(now) {
			reviewType = domain.ReviewTypeDue
		}

		updated, err := s.srsService.NextReview(previous, req.Quality, now)
		if err != nil {
			return fmt.Errorf("failed to compute next review: %w", err)
		}

		// A review is the node's own status-affecting event: credit that
		// was banked while the node was fresh settles now that the
		// learner has engaged with it.
		updated = credit.Settle(updated, now, s.creditParams)

		if err := updated.Validate(); err != nil {
			return fmt.Errorf("scheduler produced invalid progress: %w", err)
		}
		if err := progressStore.Upsert(ctx, updated); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}

		neighbors := make(map[domain.NodeRef]*domain.NodeProgress, len(locked))
		for ref, progress := range locked {
			if ref != req.Node && progress != nil {
				neighbors[ref] = progress
			}
		}
		updates := credit.Propagate(
			userID, req.Quality, edges, s.direction, neighbors, now, s.creditParams)
		for _, update := range updates {
			if err := progressStore.Upsert(ctx, update.Progress); err != nil {
				return fmt.Errorf("failed to save neighbor progress: %w", err)
			}
		}

		session, err := sessionStore.GetOpen(ctx, userID)
		if err != nil {
			if !errors.Is(err, store.ErrSessionNotFound) {
				return fmt.Errorf("failed to get open session: %w", err)
			}
			session = domain.NewStudySession(userID, now)
			if err := sessionStore.Create(ctx, session); err != nil {
				// A concurrent review won the lazy-create race; retrying
				// the whole review picks up the winner's session.
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("%w: %v", store.ErrConflict, err)
				}
				return fmt.Errorf("failed to open session: %w", err)
			}
			log.Debug("opened study session",
				slog.String("user_id", userID.String()),
				slog.String("session_id", session.ID.String()))
		}

		record := domain.NewReviewRecord(
			userID, req.Node, req.Quality, req.TimeTakenSeconds,
			reviewType, &session.ID, now)
		if err := reviewLog.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to record review: %w", err)
		}

		result = &ReviewResult{
			Progress:  updated,
			Record:    record,
			Neighbors: updates,
			Session:   session,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("review processed",
		slog.String("user_id", userID.String()),
		slog.String("node", req.Node.String()),
		slog.Int("quality", int(req.Quality)),
		slog.String("status", string(result.Progress.Status)),
		slog.Int("neighbors_updated", len(result.Neighbors)))
	return result, nil
}

// lockProgress takes row locks on the reviewed node and every neighbor,
// in NodeRef order. Missing rows map to nil; first-insert races are
// resolved by the upsert.
func (s *reviewServiceImpl) lockProgress(
	ctx context.Context,
	progressStore store.NodeProgressStore,
	userID uuid.UUID,
	reviewed domain.NodeRef,
	edges []domain.PrerequisiteEdge,
) (map[domain.NodeRef]*domain.NodeProgress, error) {
	refs := map[domain.NodeRef]bool{reviewed: true}
	for _, edge := range edges {
		refs[credit.NeighborRef(edge, s.direction)] = true
	}

	ordered := make([]domain.NodeRef, 0, len(refs))
	for ref := range refs {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	locked := make(map[domain.NodeRef]*domain.NodeProgress, len(ordered))
	for _, ref := range ordered {
		progress, err := progressStore.GetForUpdate(ctx, userID, ref)
		if err != nil {
			if errors.Is(err, store.ErrProgressNotFound) {
				locked[ref] = nil
				continue
			}
			return nil, fmt.Errorf("failed to lock progress for %s: %w", ref, err)
		}
		locked[ref] = progress
	}
	return locked, nil
}

// neighborEdges loads the edges credit flows across for the configured
// direction.
func (s *reviewServiceImpl) neighborEdges(
	ctx context.Context,
	node domain.NodeRef,
) ([]domain.PrerequisiteEdge, error) {
	if s.direction == credit.DirectionDependents {
		return s.graphStore.GetDependents(ctx, node)
	}
	return s.graphStore.GetPrerequisites(ctx, node)
}

// GetDueReviews implements ReviewService.GetDueReviews.
func (s *reviewServiceImpl) GetDueReviews(
	ctx context.Context,
	userID, domainID uuid.UUID,
	nodeType *domain.NodeType,
) (*DueReviews, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	items, err := s.progressStore.ListDue(ctx, userID, domainID, nodeType, now)
	if err != nil {
		log.Error("failed to list due reviews",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to list due reviews: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	completed, err := s.reviewLog.CountCompletedSince(ctx, userID, startOfDay)
	if err != nil {
		log.Error("failed to count completed reviews",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to count completed reviews: %w", err)
	}

	return &DueReviews{Items: items, CompletedToday: completed}, nil
}

// GetDomainProgress implements ReviewService.GetDomainProgress.
func (s *reviewServiceImpl) GetDomainProgress(
	ctx context.Context,
	userID, domainID uuid.UUID,
) ([]*domain.NodeProgress, error) {
	progress, err := s.progressStore.ListByDomain(ctx, userID, domainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domain progress: %w", err)
	}
	return progress, nil
}

// GetDomainStats implements ReviewService.GetDomainStats.
func (s *reviewServiceImpl) GetDomainStats(
	ctx context.Context,
	userID, domainID uuid.UUID,
) (*store.DomainStats, error) {
	stats, err := s.progressStore.DomainStats(ctx, userID, domainID, s.timeFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate domain stats: %w", err)
	}
	return stats, nil
}

// UpdateNodeStatus implements ReviewService.UpdateNodeStatus.
// The manual override bypasses the demotion floor: the learner may set
// any valid status, including back to fresh.
func (s *reviewServiceImpl) UpdateNodeStatus(
	ctx context.Context,
	userID uuid.UUID,
	node domain.NodeRef,
	status domain.NodeStatus,
) (*domain.NodeProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}

	if _, err := s.graphStore.GetNode(ctx, node); err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNodeNotFound
		}
		return nil, NewUpdateStatusError("failed to resolve node", err)
	}

	var updated *domain.NodeProgress
	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		progressStore := s.progressStore.WithTx(tx)

		previous, err := progressStore.GetForUpdate(ctx, userID, node)
		if err != nil {
			if !errors.Is(err, store.ErrProgressNotFound) {
				return fmt.Errorf("failed to lock progress: %w", err)
			}
			previous, err = domain.NewNodeProgress(userID, node)
			if err != nil {
				return fmt.Errorf("failed to create progress defaults: %w", err)
			}
		}

		next := previous.Clone()
		next.Status = status
		next.UpdatedAt = now

		// The override is a status-affecting event, so banked credit
		// settles now that the learner has engaged with the node.
		next = credit.Settle(next, now, s.creditParams)

		if err := progressStore.Upsert(ctx, next); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("node status updated",
		slog.String("user_id", userID.String()),
		slog.String("node", node.String()),
		slog.String("requested", string(status)),
		slog.String("status", string(updated.Status)))
	return updated, nil
}

// TestCreditPropagation implements ReviewService.TestCreditPropagation.
// It runs the propagation math against current state without locks and
// without persisting.
func (s *reviewServiceImpl) TestCreditPropagation(
	ctx context.Context,
	userID uuid.UUID,
	node domain.NodeRef,
	quality domain.Quality,
) ([]credit.NeighborUpdate, error) {
	if err := quality.Validate(); err != nil {
		return nil, ErrInvalidQuality
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}

	if _, err := s.graphStore.GetNode(ctx, node); err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to resolve node: %w", err)
	}

	edges, err := s.neighborEdges(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to load prerequisite edges: %w", err)
	}

	neighbors := make(map[domain.NodeRef]*domain.NodeProgress, len(edges))
	for _, edge := range edges {
		ref := credit.NeighborRef(edge, s.direction)
		if _, ok := neighbors[ref]; ok {
			continue
		}
		progress, err := s.progressStore.Get(ctx, userID, ref)
		if err != nil {
			if errors.Is(err, store.ErrProgressNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get neighbor progress: %w", err)
		}
		neighbors[ref] = progress
	}

	return credit.Propagate(
		userID, quality, edges, s.direction, neighbors, s.timeFunc(), s.creditParams), nil
}

// EndSession implements ReviewService.EndSession.
func (s *reviewServiceImpl) EndSession(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.timeFunc()

	session, err := s.sessionStore.GetOpen(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	if err := s.sessionStore.Close(ctx, session.ID, now); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	session.EndedAt = &now
	log.Info("study session ended",
		slog.String("user_id", userID.String()),
		slog.String("session_id", session.ID.String()))
	return session, nil
}
