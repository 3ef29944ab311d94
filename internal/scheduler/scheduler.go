// Package scheduler drives scheduled sitemap generation with cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// DefaultStepInterval is how often an in-flight run is advanced between generation ticks.
const DefaultStepInterval = time.Minute

// Generator is the generation surface the scheduler drives.
type Generator interface {
	StartGeneration(ctx context.Context, mode domain.Mode) (*generator.Progress, error)
	Step(ctx context.Context) (*generator.Progress, error)
	InFlight(ctx context.Context) (bool, error)
}

// SettingsSource loads the current settings.
type SettingsSource interface {
	Load(ctx context.Context) (*settings.Settings, error)
}

// Scheduler starts a run on the configured cron schedule and advances in-flight runs
// one batch slice per step tick, so large sites are generated across many ticks.
type Scheduler struct {
	gen          Generator
	settings     SettingsSource
	log          logger.Logger
	stepInterval time.Duration

	cron     *cron.Cron
	mu       sync.Mutex
	entry    cron.EntryID
	schedule string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. A zero stepInterval uses DefaultStepInterval.
func New(gen Generator, source SettingsSource, stepInterval time.Duration, log logger.Logger) *Scheduler {
	if stepInterval <= 0 {
		stepInterval = DefaultStepInterval
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		gen:          gen,
		settings:     source,
		log:          log,
		stepInterval: stepInterval,
		cron:         c,
	}
}

// Start registers the cron entries and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.stepInterval), func() {
		s.tickStep(s.ctx)
	}); err != nil {
		return fmt.Errorf("add step entry: %w", err)
	}

	if err := s.Sync(s.ctx); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("Sitemap scheduler started", logger.Duration("step_interval", s.stepInterval))
	return nil
}

// Stop stops the cron runner and waits for running ticks.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.log.Info("Sitemap scheduler stopped")
}

// Sync registers, replaces or removes the generation entry to match the stored settings.
func (s *Scheduler) Sync(ctx context.Context) error {
	cfg, loadErr := s.settings.Load(ctx)
	if loadErr != nil {
		return fmt.Errorf("load settings: %w", loadErr)
	}

	want := ""
	if cfg.CronGenerate {
		want = cfg.CronSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if want == s.schedule {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.schedule = ""

	if want == "" {
		s.log.Info("Scheduled sitemap generation disabled")
		return nil
	}

	entry, addErr := s.cron.AddFunc(want, func() { s.tickGenerate(s.ctx) })
	if addErr != nil {
		return fmt.Errorf("add generation entry %q: %w", want, addErr)
	}
	s.entry = entry
	s.schedule = want

	s.log.Info("Scheduled sitemap generation", logger.String("schedule", want))
	return nil
}

// tickGenerate starts a run, or advances the in-flight one.
func (s *Scheduler) tickGenerate(ctx context.Context) {
	inFlight, err := s.gen.InFlight(ctx)
	if err != nil {
		s.log.Error("Failed to check sitemap generation state", logger.Error(err))
		return
	}

	var progress *generator.Progress
	if inFlight {
		progress, err = s.gen.Step(ctx)
	} else {
		progress, err = s.gen.StartGeneration(ctx, domain.ModeScheduled)
	}
	s.report(progress, err)
}

// tickStep advances the in-flight run, if any, and picks up schedule changes.
func (s *Scheduler) tickStep(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.log.Warn("Failed to sync sitemap schedule", logger.Error(err))
	}

	inFlight, err := s.gen.InFlight(ctx)
	if err != nil {
		s.log.Error("Failed to check sitemap generation state", logger.Error(err))
		return
	}
	if !inFlight {
		return
	}

	progress, err := s.gen.Step(ctx)
	s.report(progress, err)
}

func (s *Scheduler) report(progress *generator.Progress, err error) {
	switch {
	case errors.Is(err, generator.ErrRunLocked):
		s.log.Debug("Sitemap generation busy, skipping tick")
	case err != nil:
		s.log.Warn("Scheduled sitemap generation failed", logger.Error(err))
	case progress != nil:
		s.log.Debug("Scheduled sitemap generation advanced",
			logger.RunID(progress.RunID),
			logger.String("message", progress.Message),
			logger.Float64("fraction", progress.Fraction),
		)
	}
}
