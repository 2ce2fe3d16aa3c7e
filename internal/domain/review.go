package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Quality is the 0..5 self-assessed review outcome. The UI maps
// Again/Hard/Good/Easy to 0, 1, 4 and 5; 3 is a neutral pass and 2,
// while unused by the UI, is still a valid failing grade.
type Quality int

// Named quality grades
const (
	QualityAgain   Quality = 0
	QualityHard    Quality = 1
	QualityNeutral Quality = 3
	QualityGood    Quality = 4
	QualityEasy    Quality = 5
)

// SuccessThreshold is the lowest passing quality.
const SuccessThreshold Quality = 3

// ErrInvalidQuality is returned for grades outside 0..5.
var ErrInvalidQuality = errors.New("quality must be between 0 and 5")

// Validate checks the quality range.
func (q Quality) Validate() error {
	if q < 0 || q > 5 {
		return ErrInvalidQuality
	}
	return nil
}

// Success reports whether the grade counts as a passing review.
func (q Quality) Success() bool {
	return q >= SuccessThreshold
}

// ReviewType records how a review came about.
type ReviewType string

// Review type values: "due" when the node was in the due queue at review
// time, "ahead" when the learner reviewed it before its scheduled time.
const (
	ReviewTypeDue   ReviewType = "due"
	ReviewTypeAhead ReviewType = "ahead"
)

// ReviewRecord is one append-only history row. Records are never
// mutated; they back audit, success-rate statistics and daily counts.
type ReviewRecord struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Node             NodeRef    `json:"node"`
	Quality          Quality    `json:"quality"`
	Success          bool       `json:"success"`
	TimeTakenSeconds int        `json:"time_taken_seconds"`
	ReviewType       ReviewType `json:"review_type"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	ReviewedAt       time.Time  `json:"reviewed_at"`
}

// NewReviewRecord builds a history row for a completed review.
func NewReviewRecord(
	userID uuid.UUID,
	node NodeRef,
	quality Quality,
	timeTakenSeconds int,
	reviewType ReviewType,
	sessionID *uuid.UUID,
	reviewedAt time.Time,
) *ReviewRecord {
	return &ReviewRecord{
		ID:               uuid.New(),
		UserID:           userID,
		Node:             node,
		Quality:          quality,
		Success:          quality.Success(),
		TimeTakenSeconds: timeTakenSeconds,
		ReviewType:       reviewType,
		SessionID:        sessionID,
		ReviewedAt:       reviewedAt,
	}
}
