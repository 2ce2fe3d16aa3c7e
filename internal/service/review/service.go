// Package review orchestrates the review workflow: scheduling the
// reviewed node, propagating partial credit to its graph neighbors,
// recording history and maintaining study sessions, all within a single
// transaction per review.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/domain/credit"
	"github.com/latticelearn/lattice-api/internal/store"
)

// SubmitReviewRequest carries one completed review.
type SubmitReviewRequest struct {
	Node             domain.NodeRef `json:"node"`
	Quality          domain.Quality `json:"quality"`
	TimeTakenSeconds int            `json:"time_taken_seconds"`
}

// ReviewResult is the outcome of a submitted review: the reviewed node's
// new scheduling state, the neighbor effects, the history row and the
// session the review was attributed to.
type ReviewResult struct {
	Progress  *domain.NodeProgress    `json:"progress"`
	Record    *domain.ReviewRecord    `json:"record"`
	Neighbors []credit.NeighborUpdate `json:"neighbors,omitempty"`
	Session   *domain.StudySession    `json:"session"`
}

// DueReviews is the review queue for a user within a domain.
type DueReviews struct {
	Items          []store.DueItem `json:"items"`
	CompletedToday int             `json:"completed_today"`
}

// ReviewService provides the review workflow operations.
type ReviewService interface {
	// SubmitReview processes one completed review atomically: it
	// reschedules the reviewed node, propagates credit to its direct
	// neighbors, appends a history row and attaches the review to the
	// user's open session (opening one if needed).
	//
	// Returns ErrNodeNotFound when the reviewed node does not exist and
	// ErrInvalidQuality for grades outside 0..5. Transient write
	// conflicts are retried internally; ErrConflictRetriesExhausted is
	// returned when retries run out.
	SubmitReview(
		ctx context.Context,
		userID uuid.UUID,
		req SubmitReviewRequest,
	) (*ReviewResult, error)

	// GetDueReviews returns the user's due queue within a domain,
	// optionally narrowed to one node type, plus today's completed count.
	GetDueReviews(
		ctx context.Context,
		userID, domainID uuid.UUID,
		nodeType *domain.NodeType,
	) (*DueReviews, error)

	// GetDomainProgress returns all of the user's progress rows within a
	// domain.
	GetDomainProgress(
		ctx context.Context,
		userID, domainID uuid.UUID,
	) ([]*domain.NodeProgress, error)

	// GetDomainStats aggregates per-status counts, due count and success
	// rate for the user within a domain.
	GetDomainStats(ctx context.Context, userID, domainID uuid.UUID) (*store.DomainStats, error)

	// UpdateNodeStatus manually overrides a node's lifecycle status.
	// Banked credit settles as part of the same transaction when the new
	// status makes the node eligible.
	//
	// Returns ErrNodeNotFound when the node does not exist and
	// ErrInvalidStatus for unknown statuses.
	UpdateNodeStatus(
		ctx context.Context,
		userID uuid.UUID,
		node domain.NodeRef,
		status domain.NodeStatus,
	) (*domain.NodeProgress, error)

	// TestCreditPropagation computes the neighbor effects a review would
	// have without persisting anything. Intended for content authors
	// tuning edge weights.
	TestCreditPropagation(
		ctx context.Context,
		userID uuid.UUID,
		node domain.NodeRef,
		quality domain.Quality,
	) ([]credit.NeighborUpdate, error)

	// EndSession closes the user's open study session.
	// Returns ErrNoOpenSession when there is none.
	EndSession(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error)
}

// Common error types for ReviewService
var (
	// ErrNodeNotFound indicates the reviewed node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidQuality indicates a quality grade outside 0..5.
	ErrInvalidQuality = errors.New("invalid quality grade")

	// ErrInvalidStatus indicates an unknown lifecycle status.
	ErrInvalidStatus = errors.New("invalid node status")

	// ErrNoOpenSession indicates the user has no open study session.
	ErrNoOpenSession = errors.New("no open study session")

	// ErrConflictRetriesExhausted indicates concurrent reviews kept
	// colliding and the bounded retry budget ran out.
	ErrConflictRetriesExhausted = errors.New("review conflicted with concurrent writes; retries exhausted")
)

// ServiceError wraps errors from the review service with additional
// context so consumers can differentiate failures with errors.As instead
// of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit_review")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewSubmitReviewError returns a new ServiceError for the submit_review
// operation.
func NewSubmitReviewError(message string, err error) *ServiceError {
	return &ServiceError{
		Operation: "submit_review",
		Message:   message,
		Err:       err,
	}
}

// NewUpdateStatusError returns a new ServiceError for the
// update_node_status operation.
func NewUpdateStatusError(message string, err error) *ServiceError {
	return &ServiceError{
		Operation: "update_node_status",
		Message:   message,
		Err:       err,
	}
}
