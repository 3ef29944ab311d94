// Package generator runs resumable sitemap generation and serves the published documents.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

// Generator is the entry point for generation runs. Invocations are serialized by an
// in-process mutex and, when configured, a distributed Locker.
type Generator struct {
	coordinator *Coordinator
	states      StateStore
	deltas      DeltaStore
	settings    SettingsSource
	locker      Locker
	telemetry   Telemetry
	observer    Observer
	log         logger.Logger
	now         func() time.Time
	newRunID    func() string

	mu sync.Mutex
}

// Config holds the collaborators of a Generator.
type Config struct {
	Coordinator *Coordinator
	States      StateStore
	Deltas      DeltaStore
	Settings    SettingsSource
	// Locker is optional.
	Locker Locker
	// Telemetry is optional.
	Telemetry Telemetry
	// Observer is optional.
	Observer Observer
	Logger   logger.Logger
	// Now and NewRunID are optional overrides for tests.
	Now      func() time.Time
	NewRunID func() string
}

// New creates a Generator.
func New(cfg Config) *Generator {
	g := &Generator{
		coordinator: cfg.Coordinator,
		states:      cfg.States,
		deltas:      cfg.Deltas,
		settings:    cfg.Settings,
		locker:      cfg.Locker,
		telemetry:   cfg.Telemetry,
		observer:    cfg.Observer,
		log:         cfg.Logger,
		now:         cfg.Now,
		newRunID:    cfg.NewRunID,
	}
	if g.telemetry == nil {
		g.telemetry = NopTelemetry()
	}
	if g.observer == nil {
		g.observer = nopObserver{}
	}
	if g.log == nil {
		g.log = logger.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.newRunID == nil {
		g.newRunID = uuid.NewString
	}
	return g
}

func (g *Generator) lock(ctx context.Context) (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrRunLocked
	}
	if g.locker == nil {
		return g.mu.Unlock, nil
	}

	release, ok, lockErr := g.locker.TryLock(ctx)
	if lockErr != nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("acquire run lock: %w", lockErr)
	}
	if !ok {
		g.mu.Unlock()
		return nil, ErrRunLocked
	}
	return func() {
		release()
		g.mu.Unlock()
	}, nil
}

// StartGeneration discards any in-flight run and starts a new one. Interactive and
// scheduled modes process one batch slice; commandLine loops slices until the run is
// finished; runToCompletion processes everything in one unbounded pass.
func (g *Generator) StartGeneration(ctx context.Context, mode domain.Mode) (*Progress, error) {
	unlock, lockErr := g.lock(ctx)
	if lockErr != nil {
		return nil, lockErr
	}
	defer unlock()

	s, loadErr := g.settings.Load(ctx)
	if loadErr != nil {
		return nil, fmt.Errorf("load settings: %w", loadErr)
	}
	if validateErr := s.Validate(); validateErr != nil {
		return nil, validateErr
	}

	if deleteErr := g.states.Delete(ctx); deleteErr != nil {
		return nil, fmt.Errorf("discard previous run: %w", deleteErr)
	}

	state, initErr := g.coordinator.Initialize(ctx, g.newRunID(), mode, s)
	if initErr != nil {
		return nil, fmt.Errorf("initialize run: %w", initErr)
	}

	g.log.Info("Sitemap generation started",
		logger.RunID(state.RunID),
		logger.String("mode", string(mode)),
		logger.Int("operations", len(state.Operations)),
		logger.Strings("contexts", state.ContextOrder),
	)
	g.observer.Observe(RunStarted, ProgressOf(state), nil)

	if mode == domain.ModeCommandLine {
		return g.loop(ctx, state)
	}
	return g.invoke(ctx, state, mode.Bounded())
}

// Step advances the in-flight run by one batch slice, or to completion when the run
// was started in runToCompletion mode.
func (g *Generator) Step(ctx context.Context) (*Progress, error) {
	unlock, lockErr := g.lock(ctx)
	if lockErr != nil {
		return nil, lockErr
	}
	defer unlock()

	state, loadErr := g.load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	return g.invoke(ctx, state, state.Mode.Bounded())
}

// Resume loops batch slices of the in-flight run until it finishes or ctx ends.
func (g *Generator) Resume(ctx context.Context) (*Progress, error) {
	unlock, lockErr := g.lock(ctx)
	if lockErr != nil {
		return nil, lockErr
	}
	defer unlock()

	state, loadErr := g.load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	return g.loop(ctx, state)
}

// Cancel discards the in-flight run. Published sitemaps are untouched.
func (g *Generator) Cancel(ctx context.Context) error {
	unlock, lockErr := g.lock(ctx)
	if lockErr != nil {
		return lockErr
	}
	defer unlock()

	state, loadErr := g.states.Load(ctx)
	if loadErr != nil {
		return fmt.Errorf("load run state: %w", loadErr)
	}
	if state == nil {
		return ErrNoRun
	}
	if deleteErr := g.states.Delete(ctx); deleteErr != nil {
		return fmt.Errorf("delete run state: %w", deleteErr)
	}

	g.log.Info("Sitemap generation cancelled", logger.RunID(state.RunID))
	g.observer.Observe(RunCancelled, ProgressOf(state), nil)
	return nil
}

// Progress reports the in-flight run.
func (g *Generator) Progress(ctx context.Context) (*Progress, error) {
	state, loadErr := g.load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	return ProgressOf(state), nil
}

// InFlight reports whether a run is in progress.
func (g *Generator) InFlight(ctx context.Context) (bool, error) {
	_, loadErr := g.load(ctx)
	switch {
	case errors.Is(loadErr, ErrNoRun):
		return false, nil
	case loadErr != nil:
		return false, loadErr
	}
	return true, nil
}

func (g *Generator) load(ctx context.Context) (*domain.ProgressState, error) {
	state, loadErr := g.states.Load(ctx)
	if loadErr != nil {
		return nil, fmt.Errorf("load run state: %w", loadErr)
	}
	if state == nil {
		return nil, ErrNoRun
	}
	return state, nil
}

func (g *Generator) loop(ctx context.Context, state *domain.ProgressState) (*Progress, error) {
	for {
		progress, invokeErr := g.invoke(ctx, state, true)
		if invokeErr != nil || progress.Finished {
			return progress, invokeErr
		}
	}
}

// invoke runs one coordinator invocation and persists the outcome. The state is
// saved even when the invocation fails so that completed work is not repeated.
func (g *Generator) invoke(ctx context.Context, state *domain.ProgressState, bounded bool) (*Progress, error) {
	start := g.now()
	spanCtx, span := g.telemetry.StartSpan(ctx, "sitemap.invocation",
		attribute.String("sitemap.run_id", state.RunID),
		attribute.String("sitemap.mode", string(state.Mode)),
		attribute.Bool("sitemap.bounded", bounded),
	)
	defer span.End()

	invokeErr := g.coordinator.Invoke(spanCtx, state, bounded)
	state.UpdatedAt = g.now()
	g.telemetry.RecordInvocation(state.Mode, state.UpdatedAt.Sub(start))

	// Work already done must be recorded even when the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	var persistErr error
	if state.Phase == domain.PhaseDone {
		persistErr = g.states.Delete(persistCtx)
	} else {
		persistErr = g.states.Save(persistCtx, state)
	}
	if persistErr != nil {
		persistErr = fmt.Errorf("persist run state: %w", persistErr)
	}

	progress := ProgressOf(state)
	if err := errors.Join(invokeErr, persistErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Error("Sitemap generation invocation failed",
			logger.RunID(state.RunID),
			logger.String("phase", string(state.Phase)),
			logger.Error(err),
		)
		g.observer.Observe(RunFailed, progress, err)
		return progress, err
	}

	if progress.Finished {
		g.telemetry.RecordRunCompleted(state.Mode, *state.FinishedAt)
		g.log.Info("Sitemap generation finished",
			logger.RunID(state.RunID),
			logger.Int("emitted", state.Emitted),
			logger.Int("rejected", state.Rejected),
			logger.Int("failed", state.Failed),
			logger.Duration("elapsed", state.FinishedAt.Sub(state.StartedAt)),
		)
		g.observer.Observe(RunFinished, progress, nil)
		return progress, nil
	}

	g.observer.Observe(RunProgressed, progress, nil)
	return progress, nil
}
