package srs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticelearn/lattice-api/internal/domain"
)

func newTestProgress(t *testing.T) *domain.NodeProgress {
	t.Helper()
	node, err := domain.NewNodeRef(uuid.New(), domain.NodeTypeDefinition)
	require.NoError(t, err)
	progress, err := domain.NewNodeProgress(uuid.New(), node)
	require.NoError(t, err)
	return progress
}

func TestCalculateNewEasiness(t *testing.T) {
	params := NewDefaultParams()

	testCases := []struct {
		name      string
		currentEF float64
		quality   domain.Quality
		expected  float64
	}{
		{"perfect recall raises easiness", 2.5, domain.QualityEasy, 2.6},
		{"good recall keeps easiness", 2.5, domain.QualityGood, 2.5},
		{"neutral pass lowers easiness", 2.5, domain.QualityNeutral, 2.36},
		{"hard failure lowers easiness more", 2.5, 2, 2.18},
		{"blackout lowers easiness most", 2.5, domain.QualityAgain, 1.7},
		{"easiness never drops below floor", 1.3, domain.QualityAgain, 1.3},
		{"floor applies mid-range too", 1.35, domain.QualityHard, 1.3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			newEF := calculateNewEasiness(tc.currentEF, tc.quality, params)
			assert.InDelta(t, tc.expected, newEF, 1e-9)
			assert.GreaterOrEqual(t, newEF, params.MinEasinessFactor)
		})
	}
}

func TestCalculateNewInterval(t *testing.T) {
	params := NewDefaultParams()

	testCases := []struct {
		name             string
		previousInterval int
		newRepetitions   int
		newEasiness      float64
		quality          domain.Quality
		expected         int
	}{
		{"first success uses first interval", 0, 1, 2.6, domain.QualityEasy, 1},
		{"second success uses second interval", 1, 2, 2.6, domain.QualityGood, 6},
		{"third success multiplies by easiness", 6, 3, 2.5, domain.QualityGood, 15},
		{"interval rounds to nearest day", 6, 3, 2.36, domain.QualityNeutral, 14},
		{"failure resets to failure interval", 30, 0, 2.0, domain.QualityAgain, 1},
		{"growth is capped", 300, 5, 2.5, domain.QualityGood, params.MaxIntervalDays},
		{"interval never drops below one day", 0, 3, 1.3, domain.QualityNeutral, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			interval := calculateNewInterval(
				tc.previousInterval, tc.newRepetitions, tc.newEasiness, tc.quality, params)
			assert.Equal(t, tc.expected, interval)
		})
	}
}

func TestCalculateNewStatus(t *testing.T) {
	params := NewDefaultParams()

	testCases := []struct {
		name        string
		current     domain.NodeStatus
		quality     domain.Quality
		repetitions int
		expected    domain.NodeStatus
	}{
		{"fresh promotes to grasped on success", domain.StatusFresh, domain.QualityGood, 1, domain.StatusGrasped},
		{"tackling promotes to grasped on success", domain.StatusTackling, domain.QualityNeutral, 1, domain.StatusGrasped},
		{"grasped stays grasped below repetition gate", domain.StatusGrasped, domain.QualityEasy, 3, domain.StatusGrasped},
		{"grasped stays grasped below quality gate", domain.StatusGrasped, domain.QualityNeutral, 5, domain.StatusGrasped},
		{"grasped promotes to learned on sustained success", domain.StatusGrasped, domain.QualityGood, 4, domain.StatusLearned},
		{"learned stays learned on success", domain.StatusLearned, domain.QualityGood, 7, domain.StatusLearned},
		{"learned demotes to grasped on failure", domain.StatusLearned, domain.QualityAgain, 0, domain.StatusGrasped},
		{"grasped survives a failure", domain.StatusGrasped, domain.QualityAgain, 0, domain.StatusGrasped},
		{"fresh stays fresh on failure", domain.StatusFresh, domain.QualityHard, 0, domain.StatusFresh},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := calculateNewStatus(tc.current, tc.quality, tc.repetitions, params)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestScheduleSuccessfulReview(t *testing.T) {
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	previous := newTestProgress(t)
	updated := Schedule(previous, domain.QualityGood, now, params)

	assert.Equal(t, 1, updated.Repetitions)
	assert.Equal(t, 1, updated.IntervalDays)
	assert.Equal(t, domain.StatusGrasped, updated.Status)
	assert.Equal(t, 1, updated.TotalReviews)
	assert.Equal(t, 1, updated.SuccessfulReviews)
	require.NotNil(t, updated.LastReview)
	require.NotNil(t, updated.NextReview)
	assert.Equal(t, now, *updated.LastReview)
	assert.Equal(t, now.AddDate(0, 0, 1), *updated.NextReview)

	// The input must not be mutated.
	assert.Equal(t, 0, previous.Repetitions)
	assert.Equal(t, domain.StatusFresh, previous.Status)
	assert.Nil(t, previous.LastReview)
}

func TestScheduleFailureResetsRepetitions(t *testing.T) {
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	previous := newTestProgress(t)
	previous.Status = domain.StatusLearned
	previous.Repetitions = 6
	previous.IntervalDays = 42
	previous.EasinessFactor = 2.2
	previous.TotalReviews = 6
	previous.SuccessfulReviews = 6

	updated := Schedule(previous, domain.QualityAgain, now, params)

	assert.Equal(t, 0, updated.Repetitions)
	assert.Equal(t, params.FailureInterval, updated.IntervalDays)
	assert.Equal(t, domain.StatusGrasped, updated.Status)
	assert.Equal(t, 7, updated.TotalReviews)
	assert.Equal(t, 6, updated.SuccessfulReviews)
	assert.Less(t, updated.EasinessFactor, previous.EasinessFactor)
}

func TestScheduleFailureThenSuccessRestartsIntervals(t *testing.T) {
	// A failed review followed shortly by a success restarts the ladder:
	// the success counts as the first repetition again, scheduling one
	// day out rather than six.
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	progress := newTestProgress(t)
	progress.Status = domain.StatusGrasped
	progress.Repetitions = 2
	progress.IntervalDays = 6

	progress = Schedule(progress, domain.QualityAgain, now, params)
	assert.Equal(t, 0, progress.Repetitions)
	assert.Equal(t, params.FailureInterval, progress.IntervalDays)

	progress = Schedule(progress, domain.QualityEasy, now.Add(time.Hour), params)
	assert.Equal(t, 1, progress.Repetitions)
	assert.Equal(t, 1, progress.IntervalDays)
}

func TestScheduleIntervalGrowthSequence(t *testing.T) {
	// A run of good reviews must produce the classic 1, 6, then
	// easiness-scaled interval progression.
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	progress := newTestProgress(t)
	intervals := []int{}
	for i := 0; i < 4; i++ {
		progress = Schedule(progress, domain.QualityGood, now, params)
		intervals = append(intervals, progress.IntervalDays)
		now = *progress.NextReview
	}

	assert.Equal(t, 1, intervals[0])
	assert.Equal(t, 6, intervals[1])
	assert.Greater(t, intervals[2], intervals[1])
	assert.Greater(t, intervals[3], intervals[2])
}

func TestSchedulePromotionToLearned(t *testing.T) {
	// Four consecutive good reviews starting from fresh: the fourth
	// brings repetitions to the gate and promotes grasped to learned.
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	progress := newTestProgress(t)
	for i := 0; i < 3; i++ {
		progress = Schedule(progress, domain.QualityGood, now, params)
		assert.Equal(t, domain.StatusGrasped, progress.Status)
		now = *progress.NextReview
	}

	progress = Schedule(progress, domain.QualityGood, now, params)
	assert.Equal(t, domain.StatusLearned, progress.Status)
	assert.Equal(t, 4, progress.Repetitions)
}

func TestScheduleNeutralQualityNeverReachesLearned(t *testing.T) {
	// Neutral passes keep the node grasped no matter how many accumulate:
	// the learned gate requires high-quality success.
	params := NewDefaultParams()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	progress := newTestProgress(t)
	for i := 0; i < 8; i++ {
		progress = Schedule(progress, domain.QualityNeutral, now, params)
		now = *progress.NextReview
	}
	assert.Equal(t, domain.StatusGrasped, progress.Status)
}

func TestServiceNextReview(t *testing.T) {
	service := NewDefaultService()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid review", func(t *testing.T) {
		progress := newTestProgress(t)
		updated, err := service.NextReview(progress, domain.QualityGood, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusGrasped, updated.Status)
	})

	t.Run("nil progress", func(t *testing.T) {
		_, err := service.NextReview(nil, domain.QualityGood, now)
		assert.ErrorIs(t, err, ErrNilProgress)
	})

	t.Run("quality out of range", func(t *testing.T) {
		progress := newTestProgress(t)
		_, err := service.NextReview(progress, 6, now)
		assert.ErrorIs(t, err, domain.ErrInvalidQuality)
	})
}
