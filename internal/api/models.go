package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/domain/credit"
	"github.com/latticelearn/lattice-api/internal/service/review"
	"github.com/latticelearn/lattice-api/internal/store"
)

// Common request/response structures

// SubmitReviewRequest defines the payload for the review submission endpoint.
type SubmitReviewRequest struct {
	NodeID           string `json:"node_id"            validate:"required,uuid"`
	NodeType         string `json:"node_type"          validate:"required,oneof=definition exercise"`
	Quality          int    `json:"quality"            validate:"gte=0,lte=5"`
	TimeTakenSeconds int    `json:"time_taken_seconds" validate:"gte=0"`
}

// UpdateStatusRequest defines the payload for the manual status override
// endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=fresh tackling grasped learned"`
}

// PropagationTestRequest defines the payload for the propagation dry-run
// endpoint.
type PropagationTestRequest struct {
	NodeID   string `json:"node_id"   validate:"required,uuid"`
	NodeType string `json:"node_type" validate:"required,oneof=definition exercise"`
	Quality  int    `json:"quality"   validate:"gte=0,lte=5"`
}

// NodeProgressResponse represents one node's scheduling state.
type NodeProgressResponse struct {
	NodeID            uuid.UUID  `json:"node_id"`
	NodeType          string     `json:"node_type"`
	Status            string     `json:"status"`
	EasinessFactor    float64    `json:"easiness_factor"`
	IntervalDays      int        `json:"interval_days"`
	Repetitions       int        `json:"repetitions"`
	LastReview        *time.Time `json:"last_review,omitempty"`
	NextReview        *time.Time `json:"next_review,omitempty"`
	AccumulatedCredit float64    `json:"accumulated_credit"`
	CreditPostponed   bool       `json:"credit_postponed"`
	TotalReviews      int        `json:"total_reviews"`
	SuccessfulReviews int        `json:"successful_reviews"`
}

// NeighborEffectResponse describes what a review did to one neighbor.
type NeighborEffectResponse struct {
	NodeID   uuid.UUID `json:"node_id"`
	NodeType string    `json:"node_type"`
	Delta    float64   `json:"delta"`
	Effect   string    `json:"effect"`
	Status   string    `json:"status"`
	Credit   float64   `json:"accumulated_credit"`
}

// SubmitReviewResponse defines the successful response for the review
// submission endpoint.
type SubmitReviewResponse struct {
	Progress  NodeProgressResponse     `json:"progress"`
	ReviewID  uuid.UUID                `json:"review_id"`
	Success   bool                     `json:"success"`
	SessionID uuid.UUID                `json:"session_id"`
	Neighbors []NeighborEffectResponse `json:"neighbors"`
}

// DueItemResponse is one entry of the due queue.
type DueItemResponse struct {
	NodeID     uuid.UUID  `json:"node_id"`
	NodeType   string     `json:"node_type"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	NextReview *time.Time `json:"next_review,omitempty"`
}

// DueReviewsResponse defines the response for the due queue endpoint.
type DueReviewsResponse struct {
	Items          []DueItemResponse `json:"items"`
	CompletedToday int               `json:"completed_today"`
}

// DomainStatsResponse defines the response for the domain stats endpoint.
type DomainStatsResponse struct {
	CountsByStatus    map[string]int `json:"counts_by_status"`
	DueCount          int            `json:"due_count"`
	TotalReviews      int            `json:"total_reviews"`
	SuccessfulReviews int            `json:"successful_reviews"`
	SuccessRate       float64        `json:"success_rate"`
}

// SessionResponse defines the response for session endpoints.
type SessionResponse struct {
	ID        uuid.UUID  `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// progressToResponse converts a domain progress row to its response form.
func progressToResponse(p *domain.NodeProgress) NodeProgressResponse {
	return NodeProgressResponse{
		NodeID:            p.Node.ID,
		NodeType:          string(p.Node.Type),
		Status:            string(p.Status),
		EasinessFactor:    p.EasinessFactor,
		IntervalDays:      p.IntervalDays,
		Repetitions:       p.Repetitions,
		LastReview:        p.LastReview,
		NextReview:        p.NextReview,
		AccumulatedCredit: p.AccumulatedCredit,
		CreditPostponed:   p.CreditPostponed,
		TotalReviews:      p.TotalReviews,
		SuccessfulReviews: p.SuccessfulReviews,
	}
}

// neighborsToResponse converts propagation updates to their response form.
func neighborsToResponse(updates []credit.NeighborUpdate) []NeighborEffectResponse {
	neighbors := make([]NeighborEffectResponse, 0, len(updates))
	for _, u := range updates {
		neighbors = append(neighbors, NeighborEffectResponse{
			NodeID:   u.Node.ID,
			NodeType: string(u.Node.Type),
			Delta:    u.Delta,
			Effect:   string(u.Effect),
			Status:   string(u.Progress.Status),
			Credit:   u.Progress.AccumulatedCredit,
		})
	}
	return neighbors
}

// reviewResultToResponse converts a service review result to its response
// form.
func reviewResultToResponse(result *review.ReviewResult) SubmitReviewResponse {
	return SubmitReviewResponse{
		Progress:  progressToResponse(result.Progress),
		ReviewID:  result.Record.ID,
		Success:   result.Record.Success,
		SessionID: result.Session.ID,
		Neighbors: neighborsToResponse(result.Neighbors),
	}
}

// dueItemsToResponse converts due queue entries to their response form.
func dueItemsToResponse(items []store.DueItem) []DueItemResponse {
	responses := make([]DueItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, DueItemResponse{
			NodeID:     item.Node.ID,
			NodeType:   string(item.Node.Type),
			Code:       item.NodeCode,
			Name:       item.NodeName,
			Status:     string(item.Progress.Status),
			NextReview: item.Progress.NextReview,
		})
	}
	return responses
}

// statsToResponse converts the store aggregate to its response form.
func statsToResponse(stats *store.DomainStats) DomainStatsResponse {
	counts := make(map[string]int, len(stats.CountsByStatus))
	for status, count := range stats.CountsByStatus {
		counts[string(status)] = count
	}
	return DomainStatsResponse{
		CountsByStatus:    counts,
		DueCount:          stats.DueCount,
		TotalReviews:      stats.TotalReviews,
		SuccessfulReviews: stats.SuccessfulReviews,
		SuccessRate:       stats.SuccessRate(),
	}
}

// sessionToResponse converts a study session to its response form.
func sessionToResponse(s *domain.StudySession) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}
