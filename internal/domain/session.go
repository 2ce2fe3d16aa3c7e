package domain

import (
	"time"

	"github.com/google/uuid"
)

// StudySession groups a contiguous run of reviews for reporting. A
// session is created lazily on the first review that has no open session
// and is ended explicitly by the learner or by the idle sweeper.
type StudySession struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewStudySession opens a session for the user.
func NewStudySession(userID uuid.UUID, now time.Time) *StudySession {
	return &StudySession{
		ID:        uuid.New(),
		UserID:    userID,
		StartedAt: now,
	}
}

// Open reports whether the session is still accepting reviews.
func (s *StudySession) Open() bool {
	return s.EndedAt == nil
}
