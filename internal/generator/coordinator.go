package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/sitemap/internal/dedup"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/language"
	"github.com/jonesrussell/north-cloud/sitemap/internal/producer"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
	"github.com/jonesrussell/north-cloud/sitemap/internal/sitemapxml"
)

// Candidate outcomes reported to telemetry.
const (
	outcomeEmitted    = "emitted"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
	outcomeDropped    = "dropped"
	outcomeDuplicate  = "duplicate"
	outcomeNoVariants = "no_variants"
)

// Coordinator drives the batch state machine of a run: it pages candidates out of the
// producers, buffers their variants per context, and flushes full chunks as deltas.
type Coordinator struct {
	registry  *producer.Registry
	deltas    DeltaStore
	hooks     Hooks
	telemetry Telemetry
	log       logger.Logger
	retry     retry.Config
	now       func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithHooks installs output hooks.
func WithHooks(h Hooks) CoordinatorOption {
	return func(c *Coordinator) { c.hooks = h }
}

// WithTelemetry installs a telemetry sink.
func WithTelemetry(t Telemetry) CoordinatorOption {
	return func(c *Coordinator) { c.telemetry = t }
}

// WithRetry sets the retry policy for delta store writes.
func WithRetry(cfg retry.Config) CoordinatorOption {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	registry *producer.Registry, deltas DeltaStore, log logger.Logger, opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		registry:  registry,
		deltas:    deltas,
		telemetry: NopTelemetry(),
		log:       log,
		retry:     retry.DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates the state of a new run. The operation list is fixed here:
// producers in registration order, then contexts in configured order, then each
// producer's data sets. Categories overridden by another producer are skipped.
func (c *Coordinator) Initialize(
	ctx context.Context, runID string, mode domain.Mode, s *settings.Settings,
) (*domain.ProgressState, error) {
	snapshot, marshalErr := json.Marshal(s)
	if marshalErr != nil {
		return nil, fmt.Errorf("snapshot settings: %w", marshalErr)
	}

	now := c.now()
	state := &domain.ProgressState{
		RunID:         runID,
		Mode:          mode,
		Phase:         domain.PhaseUninitialized,
		StartedAt:     now,
		UpdatedAt:     now,
		Settings:      snapshot,
		ContextOrder:  slices.Clone(s.Contexts),
		SeenGlobal:    make(map[string]bool),
		SeenByContext: make(map[string]map[string]bool),
	}

	for _, p := range c.registry.Producers() {
		for _, sitemapContext := range s.Contexts {
			sets, setsErr := p.DataSets(ctx, sitemapContext, s)
			if setsErr != nil {
				return nil, fmt.Errorf("list data sets of %s: %w", p.Name(), setsErr)
			}
			for _, ds := range sets {
				if c.registry.Skips(p.Name(), ds.Category) {
					continue
				}
				state.Operations = append(state.Operations, domain.Operation{
					Producer: p.Name(),
					Context:  sitemapContext,
					DataSet:  ds,
				})
			}
		}
	}

	for _, name := range s.Contexts {
		state.Context(name)
	}
	state.Phase = domain.PhaseRunning

	return state, nil
}

// DecodeSettings returns the settings snapshot of a run.
func DecodeSettings(state *domain.ProgressState) (*settings.Settings, error) {
	s := &settings.Settings{}
	if unmarshalErr := json.Unmarshal(state.Settings, s); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: settings snapshot: %w", ErrStateCorrupt, unmarshalErr)
	}
	return s, nil
}

// Invoke advances the run. A bounded invocation consumes at most one batch slice of
// candidates; an unbounded one runs every remaining operation. State is mutated in
// place and stays consistent on error, so the caller must save it either way.
func (c *Coordinator) Invoke(ctx context.Context, state *domain.ProgressState, bounded bool) error {
	s, decodeErr := DecodeSettings(state)
	if decodeErr != nil {
		return decodeErr
	}
	r := c.newRun(state, s)

	if state.Phase == domain.PhaseFlushPending {
		if flushErr := r.flushFull(ctx); flushErr != nil {
			return flushErr
		}
	}

	budget := s.BatchProcessLimit
	for !state.Done() && (!bounded || budget > 0) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		limit := s.BatchProcessLimit
		if bounded {
			limit = budget
		}

		op := state.CurrentOperation()
		n, stepErr := r.step(ctx, op, limit)
		if stepErr != nil {
			return stepErr
		}
		budget -= n
		if op.Finished {
			state.Current++
		}

		if !bounded {
			state.Phase = domain.PhaseFlushPending
			if flushErr := r.flushFull(ctx); flushErr != nil {
				return flushErr
			}
		}
	}

	state.Phase = domain.PhaseFlushPending
	if flushErr := r.flushFull(ctx); flushErr != nil {
		return flushErr
	}

	if !state.Done() {
		state.Phase = domain.PhaseRunning
		return nil
	}

	if finalizeErr := r.finalize(ctx); finalizeErr != nil {
		return finalizeErr
	}
	finished := c.now()
	state.FinishedAt = &finished
	state.Phase = domain.PhaseDone

	return nil
}

// run is the per-invocation working set built from the persisted state.
type run struct {
	*Coordinator
	state    *domain.ProgressState
	settings *settings.Settings
	dedup    *dedup.Registry
	expander *language.Expander
	writer   *sitemapxml.Writer
	log      logger.Logger
}

func (c *Coordinator) newRun(state *domain.ProgressState, s *settings.Settings) *run {
	if state.SeenGlobal == nil {
		state.SeenGlobal = make(map[string]bool)
	}
	if state.SeenByContext == nil {
		state.SeenByContext = make(map[string]map[string]bool)
	}

	return &run{
		Coordinator: c,
		state:       state,
		settings:    s,
		dedup: dedup.New(dedup.Policy{
			Global:     s.RemoveDuplicates,
			PerContext: s.RemoveDuplicatesByContext,
		}, state.SeenGlobal, state.SeenByContext),
		expander: language.NewExpander(language.Config{
			BaseURL:          s.BaseURL,
			Languages:        s.Languages,
			Default:          s.DefaultLanguage,
			Excluded:         s.ExcludedLanguages,
			SkipUntranslated: s.SkipUntranslated,
		}),
		writer: sitemapxml.NewWriter(s.GeneratedBy),
		log:    c.log.With(logger.RunID(state.RunID)),
	}
}

// step processes up to limit candidates of op and returns how many were consumed.
func (r *run) step(ctx context.Context, op *domain.Operation, limit int) (int, error) {
	p, ok := r.registry.Get(op.Producer)
	if !ok {
		r.log.Warn("Producer no longer registered, skipping operation",
			logger.Producer(op.Producer),
			logger.SitemapContext(op.Context),
		)
		op.Finished = true
		return 0, nil
	}

	scope := producer.Scope{Context: op.Context, DataSet: op.DataSet, Settings: r.settings}

	if !op.Counted {
		total, countErr := p.Count(ctx, scope)
		if countErr != nil {
			return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, countErr)
		}
		op.Total = total
		op.Counted = true
	}

	if op.Processed >= op.Total {
		op.Finished = true
		return 0, nil
	}

	limit = min(limit, op.Total-op.Processed)
	candidates, fetchErr := p.Fetch(ctx, scope, op.Processed, limit)
	if fetchErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, fetchErr)
	}

	// The store shrank since the operation was counted.
	if len(candidates) == 0 {
		r.log.Debug("Data set exhausted before its counted total",
			logger.Producer(op.Producer),
			logger.SitemapContext(op.Context),
			logger.String("data_set", op.DataSet.String()),
			logger.Int("processed", op.Processed),
			logger.Int("total", op.Total),
		)
		op.Finished = true
		return 0, nil
	}

	for _, cand := range candidates {
		op.Processed++
		op.CurrentItemID = cand.CandidateID()
		r.process(ctx, p, scope, cand)
	}

	if op.Processed >= op.Total {
		op.Finished = true
	}
	return len(candidates), nil
}

func (r *run) process(ctx context.Context, p producer.Producer, scope producer.Scope, cand producer.Candidate) {
	rec, mapErr := p.ToURLRecord(ctx, scope, cand)
	switch {
	case errors.Is(mapErr, producer.ErrRejected), mapErr == nil && rec == nil:
		r.state.Rejected++
		r.telemetry.RecordCandidate(p.Name(), outcomeRejected)
		return
	case mapErr != nil:
		r.state.Failed++
		r.telemetry.RecordCandidate(p.Name(), outcomeFailed)
		r.log.Warn("Failed to map candidate",
			logger.Producer(p.Name()),
			logger.SitemapContext(scope.Context),
			logger.String("candidate_id", cand.CandidateID()),
			logger.Error(mapErr),
		)
		return
	}

	rec.Context = scope.Context
	if rec.Meta.Producer == "" {
		rec.Meta.Producer = p.Name()
	}

	if r.hooks.AlterRecord != nil && !r.hooks.AlterRecord(ctx, rec) {
		r.telemetry.RecordCandidate(p.Name(), outcomeDropped)
		return
	}

	variants := r.expander.Expand(rec)
	if len(variants) == 0 {
		r.telemetry.RecordCandidate(p.Name(), outcomeNoVariants)
		return
	}

	if !r.dedup.Admit(scope.Context, rec.Path) {
		r.telemetry.RecordCandidate(p.Name(), outcomeDuplicate)
		return
	}

	cs := r.state.Context(scope.Context)
	cs.Buffer = append(cs.Buffer, variants...)
	r.state.Emitted++
	r.telemetry.RecordVariants(scope.Context, len(variants))
	r.telemetry.RecordCandidate(p.Name(), outcomeEmitted)
}

// flushFull writes every complete chunk of every context buffer. With no link
// limit everything is kept for the final flush.
func (r *run) flushFull(ctx context.Context) error {
	limit := r.settings.MaxLinks
	if limit <= 0 {
		return nil
	}

	for _, name := range r.state.ContextOrder {
		cs := r.state.Context(name)
		for len(cs.Buffer) >= limit {
			if flushErr := r.flushChunk(ctx, name, cs, limit); flushErr != nil {
				return flushErr
			}
		}
	}
	return nil
}

// flushChunk writes the first n buffered variants of a context as its next delta.
func (r *run) flushChunk(ctx context.Context, name string, cs *domain.ContextState, n int) (err error) {
	ctx, span := r.telemetry.StartSpan(ctx, "sitemap.flush",
		attribute.String("sitemap.context", name),
		attribute.Int("sitemap.delta_index", cs.DeltaCount+1),
		attribute.Int("sitemap.links", n),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		r.telemetry.RecordFlush(name, err)
	}()

	chunk := slices.Clone(cs.Buffer[:n])
	if r.hooks.AlterVariants != nil {
		chunk = r.hooks.AlterVariants(name, chunk)
	}

	payload, encodeErr := r.writer.URLSet(chunk, r.expander.Hreflang())
	if encodeErr != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailed, encodeErr)
	}

	// The first delta of a context in this run clears staged leftovers of earlier runs.
	if cs.DeltaCount == 0 {
		if clearErr := r.withRetry(ctx, func() error {
			return r.deltas.DeletePending(ctx, name)
		}); clearErr != nil {
			return fmt.Errorf("%w: clear pending deltas of %s: %w", ErrFlushFailed, name, clearErr)
		}
	}

	delta := &domain.Delta{
		Context:    name,
		RunID:      r.state.RunID,
		DeltaIndex: cs.DeltaCount + 1,
		Payload:    payload,
		CreatedAt:  r.now(),
	}
	if insertErr := r.withRetry(ctx, func() error {
		return r.deltas.Insert(ctx, delta)
	}); insertErr != nil {
		return fmt.Errorf("%w: write delta %d of %s: %w", ErrFlushFailed, delta.DeltaIndex, name, insertErr)
	}

	cs.DeltaCount++
	cs.Buffer = slices.Clone(cs.Buffer[n:])

	r.log.Info("Sitemap delta written",
		logger.SitemapContext(name),
		logger.Int("delta_index", delta.DeltaIndex),
		logger.Int("links", n),
	)
	return nil
}

// finalize flushes the partial chunks and publishes every context.
func (r *run) finalize(ctx context.Context) error {
	for _, name := range r.state.ContextOrder {
		cs := r.state.Context(name)
		switch {
		case len(cs.Buffer) > 0:
			if flushErr := r.flushChunk(ctx, name, cs, len(cs.Buffer)); flushErr != nil {
				return flushErr
			}
		case cs.DeltaCount == 0:
			if clearErr := r.withRetry(ctx, func() error {
				return r.deltas.DeletePending(ctx, name)
			}); clearErr != nil {
				return fmt.Errorf("%w: clear pending deltas of %s: %w", ErrFlushFailed, name, clearErr)
			}
		}
	}

	for _, name := range r.state.ContextOrder {
		if publishErr := r.publish(ctx, name); publishErr != nil {
			return publishErr
		}
	}
	return nil
}

func (r *run) publish(ctx context.Context, name string) (err error) {
	ctx, span := r.telemetry.StartSpan(ctx, "sitemap.publish", attribute.String("sitemap.context", name))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if publishErr := r.withRetry(ctx, func() error {
		return r.deltas.Publish(ctx, name, r.state.RunID)
	}); publishErr != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrFlushFailed, name, publishErr)
	}

	r.log.Info("Sitemap published",
		logger.SitemapContext(name),
		logger.Int("deltas", r.state.Context(name).DeltaCount),
	)
	return nil
}

func (r *run) withRetry(ctx context.Context, fn func() error) error {
	return retry.Retry(ctx, r.retry, fn)
}
