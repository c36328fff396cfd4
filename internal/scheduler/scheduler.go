// Package scheduler triggers digest runs on a cron schedule. It is a
// thin collaborator around the pipeline's single entry point; a trigger
// that lands while a run is active is rejected by the pipeline and only
// logged here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pheme/internal/core"
	"pheme/internal/logger"
	"pheme/internal/pipeline"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one digest run and handles delivery of the result.
type RunFunc func(ctx context.Context) (*core.DigestResult, error)

// Scheduler runs the digest job on a fixed cron expression.
type Scheduler struct {
	cron *cron.Cron
	spec string
	run  RunFunc
}

// New builds a scheduler for a standard 5-field cron expression in the
// given timezone.
func New(spec, timezone string, run RunFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", timezone, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{cron: c, spec: spec, run: run}, nil
}

// Start registers the job and starts the cron loop. It returns after
// scheduling; the job runs on the cron goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.spec, err)
	}
	s.cron.Start()
	logger.Info("scheduler started", "cron", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger(ctx context.Context) {
	logger.Info("scheduled digest run starting")
	result, err := s.run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		// Overlapping trigger: rejected, never queued.
		logger.Warn("scheduled run rejected, a run is already in progress")
	case err != nil:
		logger.Error("scheduled digest run failed", err)
	default:
		logger.Info("scheduled digest run complete",
			"entries", result.EntryCount(), "fetched", result.Stats.Fetched)
	}
}
