package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// startSessionSweeper schedules the periodic job that closes study
// sessions with no recent activity. A session's idle clock runs from its
// last logged review, or its start when it has none.
func (app *application) startSessionSweeper() {
	idleTimeout := time.Duration(app.config.Sessions.IdleTimeoutMinutes) * time.Minute
	sweepInterval := app.config.Sessions.SweepIntervalMinutes

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(sweepInterval).Minutes().Do(func() {
		app.sweepIdleSessions(idleTimeout)
	}); err != nil {
		app.logger.Error("failed to schedule session sweeper", "error", err)
		return
	}
	s.StartAsync()

	app.sweeper = s
	app.logger.Info("session sweeper started",
		"idle_timeout_minutes", app.config.Sessions.IdleTimeoutMinutes,
		"sweep_interval_minutes", sweepInterval)
}

// sweepIdleSessions closes every open session idle past the timeout.
func (app *application) sweepIdleSessions(idleTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	closed, err := app.sessionStore.CloseIdleBefore(ctx, now.Add(-idleTimeout), now)
	if err != nil {
		app.logger.Error("session sweep failed", "error", err)
		return
	}
	if closed > 0 {
		app.logger.Info("session sweep closed idle sessions", "count", closed)
	}
}
