package srs

import (
	"errors"
	"time"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// Common errors
var (
	ErrNilProgress = errors.New("node progress cannot be nil")
)

// Service defines the scheduling operations the orchestrator depends on.
type Service interface {
	// NextReview computes new progress for a review outcome.
	NextReview(
		progress *domain.NodeProgress,
		quality domain.Quality,
		now time.Time,
	) (*domain.NodeProgress, error)
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a scheduler with default parameters.
func NewDefaultService() Service {
	return &defaultService{params: NewDefaultParams()}
}

// NewServiceWithParams creates a scheduler with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{params: params}
}

// NextReview implements Service.
func (s *defaultService) NextReview(
	progress *domain.NodeProgress,
	quality domain.Quality,
	now time.Time,
) (*domain.NodeProgress, error) {
	if progress == nil {
		return nil, ErrNilProgress
	}
	if err := quality.Validate(); err != nil {
		return nil, err
	}

	return Schedule(progress, quality, now, s.params), nil
}
