package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron"

	"github.com/latticelearn/lattice-api/internal/config"
	"github.com/latticelearn/lattice-api/internal/domain/credit"
	"github.com/latticelearn/lattice-api/internal/domain/srs"
	"github.com/latticelearn/lattice-api/internal/platform/postgres"
	"github.com/latticelearn/lattice-api/internal/service/auth"
	"github.com/latticelearn/lattice-api/internal/service/review"
	"github.com/latticelearn/lattice-api/internal/store"
)

// application holds the wired dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	progressStore store.NodeProgressStore
	graphStore    store.GraphStore
	reviewLog     store.ReviewLogStore
	sessionStore  store.StudySessionStore

	jwtService    auth.JWTService
	reviewService review.ReviewService

	sweeper *gocron.Scheduler
}

// newApplication builds the dependency graph from configuration: database
// connection, stores, domain services and the review orchestrator.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	progressStore := postgres.NewPostgresNodeProgressStore(db, logger)
	graphStore := postgres.NewPostgresGraphStore(db, logger)
	reviewLog := postgres.NewPostgresReviewLogStore(db, logger)
	sessionStore := postgres.NewPostgresStudySessionStore(db, logger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	srsService := srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		MinEasinessFactor:     cfg.SRS.MinEasinessFactor,
		FirstInterval:         cfg.SRS.FirstInterval,
		SecondInterval:        cfg.SRS.SecondInterval,
		FailureInterval:       cfg.SRS.FailureInterval,
		MaxIntervalDays:       cfg.SRS.MaxIntervalDays,
		LearnedMinRepetitions: cfg.SRS.LearnedMinRepetitions,
		LearnedMinQuality:     cfg.SRS.LearnedMinQuality,
	}))

	creditParams := credit.NewParams(credit.ParamsConfig{
		PropagationFactor:  cfg.Credit.PropagationFactor,
		PromotionThreshold: cfg.Credit.PromotionThreshold,
		DemotionThreshold:  cfg.Credit.DemotionThreshold,
		MaxFanout:          cfg.Credit.MaxFanout,
	})

	direction := credit.DirectionPrerequisites
	if cfg.Credit.PropagateToDependents {
		direction = credit.DirectionDependents
	}

	reviewService := review.NewReviewService(
		db,
		progressStore,
		graphStore,
		reviewLog,
		sessionStore,
		srsService,
		creditParams,
		direction,
		logger,
	)

	return &application{
		config:        cfg,
		logger:        logger,
		db:            db,
		progressStore: progressStore,
		graphStore:    graphStore,
		reviewLog:     reviewLog,
		sessionStore:  sessionStore,
		jwtService:    jwtService,
		reviewService: reviewService,
	}, nil
}

// cleanup releases the application's resources in reverse order of
// acquisition.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
