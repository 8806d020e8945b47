package batch

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/rs/zerolog"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

// DefaultBatchSize is the number of items per step when the progress
// context does not set one.
const DefaultBatchSize = 10

// Common batch processing errors.
var (
	ErrInvalidBatchSize   = errors.New("batch size must not be negative")
	ErrNotInitialized     = errors.New("processor session not initialized")
	ErrAlreadyInitialized = errors.New("processor session already initialized")
	ErrMissingQuery       = errors.New("source has no query")
	ErrViewTypeMismatch   = errors.New("view record type does not match session")
)

// ValidateBatchSize rejects negative batch sizes. Zero selects
// DefaultBatchSize; there is no upper bound.
func ValidateBatchSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, n)
	}
	return nil
}

// Source selects the items of a run: a finite descriptor list, a live
// query, or both when the operation needs full rows for listed items.
type Source struct {
	List  []entity.Descriptor `json:"list,omitempty"  yaml:"list,omitempty"`
	Query query.Spec          `json:"query,omitempty" yaml:"query,omitempty"`
}

// ProgressCallback is an optional callback invoked after each populate call.
type ProgressCallback func(progress Progress)

// StepResult is the outcome of one Step.
type StepResult struct {
	Count    int
	Outcomes []operation.Outcome
	Misses   []*ResolutionMiss
	Progress Progress
	Done     bool
}

// Processor runs one operation over a record source in resumable steps.
// A Processor serves a single run and is not safe for concurrent use.
type Processor struct {
	catalog  *operation.Catalog
	provider storage.Provider
	executor query.Executor

	onProgress ProgressCallback

	session  *Session
	resolver *Resolver

	// per-step state, rebuilt by PopulateQueue
	queue  []entity.Entity
	misses []*ResolutionMiss
	view   *query.Result
}

// NewProcessor creates a processor resolving operations from catalog,
// record storage from provider and live queries through executor.
func NewProcessor(catalog *operation.Catalog, provider storage.Provider, executor query.Executor) *Processor {
	return &Processor{
		catalog:  catalog,
		provider: provider,
		executor: executor,
	}
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor) WithProgressCallback(callback ProgressCallback) *Processor {
	p.onProgress = callback
	return p
}

// Session returns the session established by Initialize.
func (p *Processor) Session() (Session, error) {
	if p.session == nil {
		return Session{}, ErrNotInitialized
	}
	s := *p.session
	s.Config = maps.Clone(p.session.Config)
	return s, nil
}

// Queue returns the entities queued by the last PopulateQueue call.
func (p *Processor) Queue() []entity.Entity {
	return append([]entity.Entity(nil), p.queue...)
}

// Misses returns the source items the last PopulateQueue call could not resolve.
func (p *Processor) Misses() []*ResolutionMiss {
	return append([]*ResolutionMiss(nil), p.misses...)
}

// View returns the query rows attached to the operation by the last
// PopulateQueue call, or nil when the operation does not request them.
func (p *Processor) View() *query.Result {
	return p.view
}

// PopulateQueue builds the queue for one step and returns its length.
//
// With a nil progress the whole source is queued at once. Otherwise the
// step covers [Offset, Offset+BatchSize) of the source, the total is
// computed on the first step only, and progress is advanced before
// returning. Items that do not resolve are left out of the queue.
func (p *Processor) PopulateQueue(ctx context.Context, src Source, progress *Progress) (int, error) {
	if p.session == nil {
		return 0, ErrNotInitialized
	}
	p.queue, p.misses, p.view = nil, nil, nil
	p.resolver.Reset()

	def := p.session.Definition
	log := p.logger(ctx)

	var base query.Query
	if len(src.List) == 0 || def.PassView {
		if src.Query.IsZero() {
			return 0, ErrMissingQuery
		}
		base = query.New(src.Query)
	}

	offset, batchSize := 0, 0
	if progress != nil {
		if progress.BatchSize == 0 {
			progress.BatchSize = DefaultBatchSize
		}
		if err := ValidateBatchSize(progress.BatchSize); err != nil {
			return 0, err
		}
		batchSize = progress.BatchSize
		offset = progress.Offset

		if progress.Total == nil {
			total := len(src.List)
			if len(src.List) == 0 {
				n, err := p.executor.Count(ctx, base)
				if err != nil {
					return 0, fmt.Errorf("counting source: %w", err)
				}
				total = n
			}
			progress.Total = &total
			log.Debug().Ctx(ctx).Int("total", total).Msg("source total computed")
		}

		if def.PassContext {
			if aware, ok := p.session.operation.(operation.ProgressAware); ok {
				aware.SetProgress(progress.Snapshot())
			}
		}
	}

	var err error
	if len(src.List) == 0 {
		err = p.populateFromQuery(ctx, base, offset, batchSize)
	} else {
		err = p.populateFromList(ctx, src.List, base, offset, batchSize)
	}
	if err != nil {
		p.queue, p.misses, p.view = nil, nil, nil
		return 0, err
	}

	if progress != nil {
		progress.advance(batchSize)
		progress.Steps++
		progress.Processed += len(p.queue)
		progress.Skipped += len(p.misses)

		log.Debug().Ctx(ctx).
			Int("step", progress.Steps).
			Int("offset", offset).
			Int("next_offset", progress.Offset).
			Int("batch_size", batchSize).
			Int("queued", len(p.queue)).
			Int("skipped", len(p.misses)).
			Msg("queue populated")

		if p.onProgress != nil {
			p.onProgress(progress.Clone())
		}
	}

	if def.PassView {
		if aware, ok := p.session.operation.(operation.ViewAware); ok {
			aware.SetView(p.view)
		}
	}

	return len(p.queue), nil
}

func (p *Processor) populateFromQuery(ctx context.Context, base query.Query, offset, batchSize int) error {
	q := base.WithOffset(offset)
	if batchSize > 0 {
		q = q.WithLimit(batchSize)
	}
	result, err := p.executor.Execute(ctx, q)
	if err != nil {
		return fmt.Errorf("executing source query: %w", err)
	}
	if err = p.checkView(result); err != nil {
		return err
	}
	p.view = result

	for i, row := range result.Rows {
		e, resolveErr := p.resolver.ResolveRow(row, offset+i)
		if err := p.enqueue(ctx, e, resolveErr); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) populateFromList(
	ctx context.Context,
	list []entity.Descriptor,
	base query.Query,
	offset, batchSize int,
) error {
	start := min(offset, len(list))
	end := len(list)
	if batchSize > 0 {
		end = min(start+batchSize, len(list))
	}

	for _, d := range list[start:end] {
		e, resolveErr := p.resolver.ResolveDescriptor(ctx, d)
		if err := p.enqueue(ctx, e, resolveErr); err != nil {
			return err
		}
	}

	if !p.session.Definition.PassView {
		return nil
	}

	seen := make(map[string]bool, len(p.queue))
	ids := make([]string, 0, len(p.queue))
	for _, e := range p.queue {
		if !seen[e.EntityID()] {
			seen[e.EntityID()] = true
			ids = append(ids, e.EntityID())
		}
	}
	result, err := p.executor.Execute(ctx, base.WithIDs(ids))
	if err != nil {
		return fmt.Errorf("executing row query: %w", err)
	}
	if err = p.checkView(result); err != nil {
		return err
	}
	p.view = result
	return nil
}

// checkView rejects rows of a view over another record type.
func (p *Processor) checkView(result *query.Result) error {
	if result.View.RecordType != p.session.RecordType {
		return fmt.Errorf("%w: view %s lists %s, session is %s",
			ErrViewTypeMismatch, result.View.ID, result.View.RecordType, p.session.RecordType)
	}
	return nil
}

// enqueue appends a resolved entity, records a miss, or returns a fault.
func (p *Processor) enqueue(ctx context.Context, e entity.Entity, err error) error {
	var miss *ResolutionMiss
	if errors.As(err, &miss) {
		p.misses = append(p.misses, miss)
		p.logger(ctx).Warn().Ctx(ctx).Err(miss.Err).Str("item", miss.Item).Msg("item skipped")
		return nil
	}
	if err != nil {
		return err
	}
	p.queue = append(p.queue, e)
	return nil
}

// Process runs the operation over the current queue in a single call.
//
// When the operation returns no outcomes, one outcome carrying the
// definition label is reported per queued entity. Otherwise the operation's
// outcomes are returned unchanged. Operation errors are not retried.
func (p *Processor) Process(ctx context.Context) ([]operation.Outcome, error) {
	if p.session == nil {
		return nil, ErrNotInitialized
	}

	outcomes, err := p.session.operation.ExecuteMultiple(ctx, p.Queue())
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", p.session.OperationID, err)
	}
	if len(outcomes) > 0 {
		return outcomes, nil
	}

	outcomes = make([]operation.Outcome, len(p.queue))
	for i := range outcomes {
		outcomes[i] = operation.Done(p.session.Definition.Label)
	}
	return outcomes, nil
}

// Step populates the queue and processes it.
func (p *Processor) Step(ctx context.Context, src Source, progress *Progress) (*StepResult, error) {
	count, err := p.PopulateQueue(ctx, src, progress)
	if err != nil {
		return nil, err
	}
	outcomes, err := p.Process(ctx)
	if err != nil {
		return nil, err
	}

	result := &StepResult{
		Count:    count,
		Outcomes: outcomes,
		Misses:   p.Misses(),
		Done:     true,
	}
	if progress != nil {
		result.Progress = progress.Clone()
		result.Done = progress.Done()
	}
	return result, nil
}

func (p *Processor) logger(ctx context.Context) *zerolog.Logger {
	l := logging.ComponentLogger(*logging.FromContext(ctx), "batch").With().
		Str("operation", p.session.OperationID).
		Logger()
	return &l
}
