package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NodeStatus is the lifecycle state of a node for one user.
type NodeStatus string

// Lifecycle states, in order. A progress row is created as fresh, moves
// to tackling when the learner starts working the node, to grasped on the
// first successful review, and to learned after sustained success. Rows
// are overwritten by later reviews but never deleted.
const (
	StatusFresh    NodeStatus = "fresh"
	StatusTackling NodeStatus = "tackling"
	StatusGrasped  NodeStatus = "grasped"
	StatusLearned  NodeStatus = "learned"
)

// Progress-related validation errors
var (
	ErrEmptyProgressUserID = errors.New("node progress user ID cannot be empty")
	ErrInvalidStatus       = errors.New("invalid node status")
	ErrInvalidEasiness     = errors.New("easiness factor must be at least 1.3")
	ErrInvalidIntervalDays = errors.New("interval days must be greater than or equal to 0")
	ErrInvalidRepetitions  = errors.New("repetitions must be greater than or equal to 0")
	ErrCreditOutOfRange    = errors.New("accumulated credit must be within [-1, 1]")
)

// statusRank orders the lifecycle for one-step promotion/demotion.
var statusRank = map[NodeStatus]int{
	StatusFresh:    0,
	StatusTackling: 1,
	StatusGrasped:  2,
	StatusLearned:  3,
}

// IsValid reports whether the status is a known lifecycle state.
func (s NodeStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the lifecycle position of the status, fresh being 0.
func (s NodeStatus) Rank() int {
	return statusRank[s]
}

// Next returns the status one step up the lifecycle, capped at learned.
func (s NodeStatus) Next() NodeStatus {
	switch s {
	case StatusFresh:
		return StatusTackling
	case StatusTackling:
		return StatusGrasped
	default:
		return StatusLearned
	}
}

// Prev returns the status one step down, floored at tackling. Demotion
// never returns a node to fresh: the learner has engaged with it.
func (s NodeStatus) Prev() NodeStatus {
	switch s {
	case StatusLearned:
		return StatusGrasped
	default:
		return StatusTackling
	}
}

// Engaged reports whether the learner has interacted with the node
// directly. Credit may only change the scheduling state of engaged nodes.
func (s NodeStatus) Engaged() bool {
	return s != StatusFresh
}

// Reviewable reports whether the node is eligible for the due queue.
func (s NodeStatus) Reviewable() bool {
	return s == StatusGrasped || s == StatusLearned
}

// DefaultEasinessFactor is the SM-2 starting easiness.
const DefaultEasinessFactor = 2.5

// MinEasinessFactor is the SM-2 floor below which easiness never drops.
const MinEasinessFactor = 1.3

// NodeProgress is one user's scheduling state for one node.
type NodeProgress struct {
	UserID            uuid.UUID  `json:"user_id"`
	Node              NodeRef    `json:"node"`
	Status            NodeStatus `json:"status"`
	EasinessFactor    float64    `json:"easiness_factor"`
	IntervalDays      int        `json:"interval_days"`
	Repetitions       int        `json:"repetitions"`
	LastReview        *time.Time `json:"last_review,omitempty"`
	NextReview        *time.Time `json:"next_review,omitempty"`
	AccumulatedCredit float64    `json:"accumulated_credit"`
	CreditPostponed   bool       `json:"credit_postponed"`
	TotalReviews      int        `json:"total_reviews"`
	SuccessfulReviews int        `json:"successful_reviews"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewNodeProgress creates a fresh progress row with scheduling defaults.
// A neighbor with no stored progress is represented exactly like this.
func NewNodeProgress(userID uuid.UUID, node NodeRef) (*NodeProgress, error) {
	now := time.Now().UTC()
	progress := &NodeProgress{
		UserID:         userID,
		Node:           node,
		Status:         StatusFresh,
		EasinessFactor: DefaultEasinessFactor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := progress.Validate(); err != nil {
		return nil, err
	}
	return progress, nil
}

// Validate checks the NodeProgress invariants.
func (p *NodeProgress) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrEmptyProgressUserID
	}
	if err := p.Node.Validate(); err != nil {
		return err
	}
	if !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	if p.EasinessFactor < MinEasinessFactor {
		return ErrInvalidEasiness
	}
	if p.IntervalDays < 0 {
		return ErrInvalidIntervalDays
	}
	if p.Repetitions < 0 {
		return ErrInvalidRepetitions
	}
	if p.AccumulatedCredit < -1 || p.AccumulatedCredit > 1 {
		return ErrCreditOutOfRange
	}
	return nil
}

// Clone returns a deep copy. The scheduler and propagator return new
// instances instead of mutating loaded state.
func (p *NodeProgress) Clone() *NodeProgress {
	clone := *p
	if p.LastReview != nil {
		t := *p.LastReview
		clone.LastReview = &t
	}
	if p.NextReview != nil {
		t := *p.NextReview
		clone.NextReview = &t
	}
	return &clone
}

// Due reports whether the node should appear in the due queue at the
// given instant: reviewable status and a next-review time that is unset
// or has arrived.
func (p *NodeProgress) Due(now time.Time) bool {
	if !p.Status.Reviewable() {
		return false
	}
	return p.NextReview == nil || !p.NextReview.After(now)
}

// SuccessRate is the share of successful reviews, 0 when unreviewed.
func (p *NodeProgress) SuccessRate() float64 {
	if p.TotalReviews == 0 {
		return 0
	}
	return float64(p.SuccessfulReviews) / float64(p.TotalReviews)
}
