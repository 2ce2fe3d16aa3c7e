package srs

import (
	"math"
	"time"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// calculateNewEasiness applies the SM-2 easiness update:
//
//	EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02))
//
// clamped to the configured floor. The easiness factor drops on low
// grades and rises slightly on a perfect one; the floor keeps intervals
// from collapsing for chronically hard nodes.
func calculateNewEasiness(currentEF float64, quality domain.Quality, params *Params) float64 {
	q := float64(quality)
	newEF := currentEF + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if newEF < params.MinEasinessFactor {
		newEF = params.MinEasinessFactor
	}
	return newEF
}

// calculateNewInterval computes the next interval in days. Failures
// reset to the failure interval; the first two successful repetitions
// use fixed intervals, after which the interval grows by the new
// easiness factor.
func calculateNewInterval(
	previousInterval int,
	newRepetitions int,
	newEasiness float64,
	quality domain.Quality,
	params *Params,
) int {
	if !quality.Success() {
		return params.FailureInterval
	}

	var interval int
	switch newRepetitions {
	case 1:
		interval = params.FirstInterval
	case 2:
		interval = params.SecondInterval
	default:
		interval = int(math.Round(float64(previousInterval) * newEasiness))
	}

	if interval > params.MaxIntervalDays {
		interval = params.MaxIntervalDays
	}
	if interval < 1 {
		interval = 1
	}
	return interval
}

// calculateNewStatus advances the lifecycle after a review. The first
// success promotes an unengaged node straight to grasped; sustained
// high-quality success promotes grasped to learned; a failure demotes
// learned back to grasped but never below.
func calculateNewStatus(
	current domain.NodeStatus,
	quality domain.Quality,
	newRepetitions int,
	params *Params,
) domain.NodeStatus {
	if quality.Success() {
		switch current {
		case domain.StatusFresh, domain.StatusTackling:
			return domain.StatusGrasped
		case domain.StatusGrasped:
			if newRepetitions >= params.LearnedMinRepetitions &&
				int(quality) >= params.LearnedMinQuality {
				return domain.StatusLearned
			}
			return domain.StatusGrasped
		default:
			return current
		}
	}

	if current == domain.StatusLearned {
		return domain.StatusGrasped
	}
	return current
}

// Schedule computes the post-review scheduling state. It is a pure
// function of (previous progress, quality, now) — no I/O, no clock
// reads — so the whole policy is testable in isolation. The input is
// never mutated.
func Schedule(
	previous *domain.NodeProgress,
	quality domain.Quality,
	now time.Time,
	params *Params,
) *domain.NodeProgress {
	next := previous.Clone()

	next.EasinessFactor = calculateNewEasiness(previous.EasinessFactor, quality, params)

	if quality.Success() {
		next.Repetitions = previous.Repetitions + 1
	} else {
		next.Repetitions = 0
	}

	next.IntervalDays = calculateNewInterval(
		previous.IntervalDays,
		next.Repetitions,
		next.EasinessFactor,
		quality,
		params,
	)

	reviewedAt := now
	nextReview := now.AddDate(0, 0, next.IntervalDays)
	next.LastReview = &reviewedAt
	next.NextReview = &nextReview

	next.TotalReviews = previous.TotalReviews + 1
	if quality.Success() {
		next.SuccessfulReviews = previous.SuccessfulReviews + 1
	}

	next.Status = calculateNewStatus(previous.Status, quality, next.Repetitions, params)
	next.UpdatedAt = now

	return next
}
