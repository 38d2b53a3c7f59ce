// Package scheduler fires trader runs on a cron schedule in daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Runner performs one decision run.
type Runner interface {
	Run(ctx context.Context) model.RunReport
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new Scheduler. Specs include a seconds field.
func NewScheduler(ctx context.Context, runner Runner) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds()),
		Runner: runner,
		Ctx:    ctx,
	}
}

// Register adds the trading run at runSpec.
func (s *Scheduler) Register(runSpec string) error {
	if _, err := s.Cron.AddFunc(runSpec, func() { s.runTask() }); err != nil {
		return fmt.Errorf("register run task %q: %w", runSpec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes a run immediately (for RUN_ON_START and manual triggers).
// It reports false if a run was already in progress.
func (s *Scheduler) RunNow() bool {
	return s.runTask()
}

// runTask skips a firing that overlaps a run in progress.
func (s *Scheduler) runTask() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("previous run still in progress, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.Ctx.Err() != nil {
		return false
	}
	rep := s.Runner.Run(s.Ctx)
	log.Debug().Str("run_id", rep.RunID).Str("outcome", string(rep.Outcome)).Msg("scheduled run done")
	return true
}
