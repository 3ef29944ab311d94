//nolint:testpackage // drives ticks without waiting on cron
package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

type fakeGenerator struct {
	inFlight bool
	started  []domain.Mode
	steps    int
	stepErr  error
}

func (f *fakeGenerator) StartGeneration(_ context.Context, mode domain.Mode) (*generator.Progress, error) {
	f.started = append(f.started, mode)
	f.inFlight = true
	return &generator.Progress{RunID: "run", Mode: mode}, nil
}

func (f *fakeGenerator) Step(context.Context) (*generator.Progress, error) {
	f.steps++
	if f.stepErr != nil {
		return nil, f.stepErr
	}
	return &generator.Progress{RunID: "run"}, nil
}

func (f *fakeGenerator) InFlight(context.Context) (bool, error) {
	return f.inFlight, nil
}

type staticSettings struct {
	s *settings.Settings
}

func (st *staticSettings) Load(context.Context) (*settings.Settings, error) {
	return st.s.Clone(), nil
}

func newScheduler(gen *fakeGenerator) (*Scheduler, *staticSettings) {
	source := &staticSettings{s: settings.Defaults()}
	return New(gen, source, 0, logger.NewNop()), source
}

func TestTickGenerate_StartsScheduledRun(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	s, _ := newScheduler(gen)

	s.tickGenerate(context.Background())

	assert.Equal(t, []domain.Mode{domain.ModeScheduled}, gen.started)
	assert.Zero(t, gen.steps)
}

func TestTickGenerate_AdvancesInFlightRun(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{inFlight: true}
	s, _ := newScheduler(gen)

	s.tickGenerate(context.Background())

	assert.Empty(t, gen.started)
	assert.Equal(t, 1, gen.steps)
}

func TestTickStep(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	s, _ := newScheduler(gen)

	s.tickStep(context.Background())
	assert.Zero(t, gen.steps)

	gen.inFlight = true
	gen.stepErr = generator.ErrRunLocked
	s.tickStep(context.Background())
	assert.Equal(t, 1, gen.steps)
}

func TestSync_ReplacesGenerationEntry(t *testing.T) {
	t.Parallel()

	s, source := newScheduler(&fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, s.Sync(ctx))
	require.Len(t, s.cron.Entries(), 1)
	first := s.entry

	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, first, s.entry)

	source.s.CronSchedule = "0 3 * * *"
	require.NoError(t, s.Sync(ctx))
	require.Len(t, s.cron.Entries(), 1)
	assert.NotEqual(t, first, s.entry)
	assert.Equal(t, "0 3 * * *", s.schedule)

	source.s.CronGenerate = false
	require.NoError(t, s.Sync(ctx))
	assert.Empty(t, s.cron.Entries())
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(&fakeGenerator{})

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
