package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/api/shared"
	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/platform/logger"
	"github.com/latticelearn/lattice-api/internal/service/review"
)

// ReviewHandler handles review-related HTTP requests
type ReviewHandler struct {
	reviewService review.ReviewService
	logger        *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService review.ReviewService, logger *slog.Logger) *ReviewHandler {
	if reviewService == nil {
		panic("reviewService cannot be nil for ReviewHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for ReviewHandler")
	}

	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger.With(slog.String("component", "review_handler")),
	}
}

// authenticatedUser extracts the user ID set by the auth middleware,
// writing the error response itself when it is missing.
func authenticatedUser(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// SubmitReview handles POST /reviews requests
// It processes a completed review and returns the new scheduling state
// plus the neighbor credit effects.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("failed to decode review request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	node, err := parseNodeRef(req.NodeID, req.NodeType)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid node reference")
		return
	}

	result, err := h.reviewService.SubmitReview(r.Context(), userID, review.SubmitReviewRequest{
		Node:             node,
		Quality:          domain.Quality(req.Quality),
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("review submitted",
		slog.String("user_id", userID.String()),
		slog.String("node", node.String()),
		slog.String("status", string(result.Progress.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, reviewResultToResponse(result))
}

// GetDueReviews handles GET /reviews/due requests
// Query parameters: domain_id (required), node_type (optional filter).
func (h *ReviewHandler) GetDueReviews(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	domainID, err := uuid.Parse(r.URL.Query().Get("domain_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "domain_id query parameter is required")
		return
	}

	var nodeType *domain.NodeType
	if raw := r.URL.Query().Get("node_type"); raw != "" {
		t := domain.NodeType(raw)
		if !t.IsValid() {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid node_type filter")
			return
		}
		nodeType = &t
	}

	due, err := h.reviewService.GetDueReviews(r.Context(), userID, domainID, nodeType)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), "Failed to list due reviews", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DueReviewsResponse{
		Items:          dueItemsToResponse(due.Items),
		CompletedToday: due.CompletedToday,
	})
}

// GetDomainProgress handles GET /domains/{id}/progress requests
func (h *ReviewHandler) GetDomainProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	domainID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid domain ID format")
		return
	}

	rows, err := h.reviewService.GetDomainProgress(r.Context(), userID, domainID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), "Failed to get domain progress", err)
		return
	}

	responses := make([]NodeProgressResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, progressToResponse(row))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetDomainStats handles GET /domains/{id}/stats requests
func (h *ReviewHandler) GetDomainStats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	domainID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid domain ID format")
		return
	}

	stats, err := h.reviewService.GetDomainStats(r.Context(), userID, domainID)
	if err != nil {
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), "Failed to get domain stats", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statsToResponse(stats))
}

// UpdateNodeStatus handles PUT /nodes/{nodeType}/{nodeID}/status requests
// It manually overrides the lifecycle status of a node.
func (h *ReviewHandler) UpdateNodeStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	node, err := parseNodeRef(chi.URLParam(r, "nodeID"), chi.URLParam(r, "nodeType"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid node reference")
		return
	}

	var req UpdateStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	progress, err := h.reviewService.UpdateNodeStatus(
		r.Context(), userID, node, domain.NodeStatus(req.Status))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("node status updated",
		slog.String("user_id", userID.String()),
		slog.String("node", node.String()),
		slog.String("status", string(progress.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, progressToResponse(progress))
}

// TestPropagation handles POST /propagation/test requests
// It returns the neighbor effects a review would have without persisting
// anything.
func (h *ReviewHandler) TestPropagation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	var req PropagationTestRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	node, err := parseNodeRef(req.NodeID, req.NodeType)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid node reference")
		return
	}

	updates, err := h.reviewService.TestCreditPropagation(
		r.Context(), userID, node, domain.Quality(req.Quality))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, neighborsToResponse(updates))
}

// EndSession handles POST /sessions/end requests
func (h *ReviewHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := authenticatedUser(w, r, log)
	if !ok {
		return
	}

	session, err := h.reviewService.EndSession(r.Context(), userID)
	if err != nil {
		if errors.Is(err, review.ErrNoOpenSession) {
			shared.RespondWithError(w, r, http.StatusNotFound, "No open study session")
			return
		}
		shared.RespondWithErrorAndLog(
			w, r, MapErrorToStatusCode(err), "Failed to end session", err)
		return
	}

	log.Debug("session ended",
		slog.String("user_id", userID.String()),
		slog.String("session_id", session.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// parseNodeRef builds a validated NodeRef from raw path or body values.
func parseNodeRef(rawID, rawType string) (domain.NodeRef, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.NodeRef{}, err
	}
	return domain.NewNodeRef(id, domain.NodeType(rawType))
}
