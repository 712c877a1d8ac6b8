// Package coordinator runs batched photo evaluations against a provider.
//
// A coordinator owns the job queue for one run: it partitions enqueued photos
// into batches, dispatches them strictly sequentially with a courtesy delay
// between calls, isolates per-job failures, and honors cancellation between
// dispatches. Observers receive an immutable progress snapshot after every
// state mutation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"photo-critic/internal/imaging"
	"photo-critic/internal/model"
	pcotel "photo-critic/internal/otel"
	"photo-critic/internal/provider"
	"photo-critic/internal/results"
)

var tracer = otel.Tracer("photo-critic")

var (
	// ErrRunActive is returned when Start or Enqueue is called while a run
	// is already in flight. Only one run may be active per coordinator.
	ErrRunActive = errors.New("a run is already active")
	// ErrNoJobs is returned by Start when nothing has been enqueued.
	ErrNoJobs = errors.New("no jobs enqueued")
)

// Prompter supplies the evaluation prompt and its revision tag.
type Prompter interface {
	Current() string
	Version() string
}

// Sink receives successful verdicts. Storing the same source twice replaces
// the earlier result, so re-evaluation is idempotent per photo.
type Sink interface {
	Upsert(r results.Result)
}

// Options configures a Coordinator. Provider, Encoder, Prompter and Sink
// are required.
type Options struct {
	Provider provider.Provider
	Encoder  imaging.Encoder
	Prompter Prompter
	Sink     Sink

	// BatchSize is the number of photos per batch.
	BatchSize int
	// RequestDelay is the courtesy pause between consecutive provider
	// calls and between batches.
	RequestDelay time.Duration
	// MaxTokens caps the model's output per evaluation.
	MaxTokens int64

	Logger  zerolog.Logger
	Metrics *pcotel.Metrics

	// Observer is invoked after every state mutation with a progress
	// snapshot. Called from the run goroutine; must not block.
	Observer func(model.Progress)

	// Sleep replaces the courtesy-delay wait in tests. Nil means real time.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Coordinator dispatches evaluation jobs sequentially. All state behind mu;
// safe for concurrent Cancel/Progress while a run is active.
type Coordinator struct {
	provider provider.Provider
	encoder  imaging.Encoder
	prompter Prompter
	sink     Sink

	batchSize int
	delay     time.Duration
	maxTokens int64

	logger   zerolog.Logger
	metrics  *pcotel.Metrics
	observer func(model.Progress)
	sleep    func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	jobs         []model.EvaluationJob
	progress     model.Progress
	isProcessing bool
	cancelled    bool
}

// New creates a Coordinator from opts.
func New(opts Options) (*Coordinator, error) {
	if opts.Provider == nil {
		return nil, errors.New("coordinator: Provider is required")
	}
	if opts.Encoder == nil {
		return nil, errors.New("coordinator: Encoder is required")
	}
	if opts.Prompter == nil {
		return nil, errors.New("coordinator: Prompter is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("coordinator: Sink is required")
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("coordinator: batch size %d is invalid", opts.BatchSize)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Coordinator{
		provider:  opts.Provider,
		encoder:   opts.Encoder,
		prompter:  opts.Prompter,
		sink:      opts.Sink,
		batchSize: opts.BatchSize,
		delay:     opts.RequestDelay,
		maxTokens: opts.MaxTokens,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		observer:  opts.Observer,
		sleep:     sleep,
	}, nil
}

// Enqueue appends pending jobs for the given sources and returns their IDs.
// Rejected while a run is active.
func (c *Coordinator) Enqueue(sources ...string) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isProcessing {
		return nil, ErrRunActive
	}
	ids := make([]uuid.UUID, 0, len(sources))
	for _, src := range sources {
		job := model.EvaluationJob{
			ID:     uuid.New(),
			Source: src,
			Status: model.JobPending,
		}
		c.jobs = append(c.jobs, job)
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// Cancel requests that the active run stop. The flag is honored before the
// next dispatch; a provider call already in flight finishes but its result
// is discarded. Safe to call at any time, from any goroutine.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

// Progress returns a snapshot of the current run state.
func (c *Coordinator) Progress() model.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Jobs returns a copy of the job list.
func (c *Coordinator) Jobs() []model.EvaluationJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EvaluationJob, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// Batches partitions n jobs into batch sizes: full batches of size, then the
// remainder. Batches(7, 3) is [3 3 1].
func Batches(n, size int) []int {
	if n <= 0 || size <= 0 {
		return nil
	}
	var out []int
	for n > 0 {
		b := size
		if n < b {
			b = n
		}
		out = append(out, b)
		n -= b
	}
	return out
}

// Start runs every enqueued job to completion, blocking until the run
// finishes or is cancelled. Per-job failures are recorded and do not abort
// the run; cancellation stops before the next dispatch. Returns ErrRunActive
// if a run is already in flight.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isProcessing {
		c.mu.Unlock()
		return ErrRunActive
	}
	// Jobs from a previous run are cleared; a retry is a new job referencing
	// the same source.
	kept := c.jobs[:0]
	for _, j := range c.jobs {
		if j.Status == model.JobPending {
			kept = append(kept, j)
		}
	}
	c.jobs = kept
	if len(c.jobs) == 0 {
		c.mu.Unlock()
		return ErrNoJobs
	}
	c.isProcessing = true
	c.cancelled = false
	total := len(c.jobs)
	batches := Batches(total, c.batchSize)
	c.progress = model.Progress{
		Total:        total,
		TotalBatches: len(batches),
		StatusMsg:    fmt.Sprintf("starting run: %d photos in %d batches", total, len(batches)),
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isProcessing = false
		c.mu.Unlock()
	}()

	runID := uuid.New()
	ctx, span := tracer.Start(ctx, "evaluate_run",
		trace.WithAttributes(
			attribute.String("run.id", runID.String()),
			attribute.Int("run.total", total),
			attribute.Int("run.batches", len(batches)),
			attribute.String("llm.provider", c.provider.Name()),
			attribute.String("llm.model", c.provider.Model()),
		))
	defer span.End()

	c.logger.Info().
		Str("run_id", runID.String()).
		Int("total", total).
		Int("batches", len(batches)).
		Msg("starting evaluation run")
	c.notify()

	for idx := 0; idx < total; idx++ {
		if c.runCancelled(ctx) {
			return c.finishCancelled(ctx, span)
		}

		batch := idx/c.batchSize + 1
		c.mu.Lock()
		entered := c.progress.BatchIndex != batch
		if entered {
			c.progress.BatchIndex = batch
			c.progress.StatusMsg = fmt.Sprintf("batch %d/%d", batch, len(batches))
		}
		c.mu.Unlock()
		if entered {
			c.logger.Info().Int("batch", batch).Int("of", len(batches)).Msg("starting batch")
			c.notify()
		}

		c.dispatch(ctx, idx)

		if idx < total-1 && !c.runCancelled(ctx) {
			if err := c.sleep(ctx, c.delay); err != nil {
				return c.finishCancelled(ctx, span)
			}
		}
	}

	if c.runCancelled(ctx) {
		return c.finishCancelled(ctx, span)
	}

	p := c.Progress()
	span.SetAttributes(
		attribute.Int("run.succeeded", p.SuccessCount),
		attribute.Int("run.failed", p.FailureCount),
	)
	c.mutate(func(p *model.Progress) {
		p.StatusMsg = fmt.Sprintf("run complete: %d succeeded, %d failed", p.SuccessCount, p.FailureCount)
	})
	c.logger.Info().
		Int("succeeded", p.SuccessCount).
		Int("failed", p.FailureCount).
		Msg("evaluation run complete")
	return nil
}

// dispatch runs one job end to end: encode, evaluate, record. The job only
// reaches a terminal status when the run is still live; a result arriving
// after cancellation is discarded and the job is left in_flight, never
// counted. The next run clears it; re-evaluating the photo is a new job.
func (c *Coordinator) dispatch(ctx context.Context, idx int) {
	c.mu.Lock()
	job := c.jobs[idx]
	c.jobs[idx].Status = model.JobInFlight
	c.progress.StatusMsg = fmt.Sprintf("evaluating %s (%d/%d)", job.Source, idx+1, c.progress.Total)
	c.mu.Unlock()
	c.notify()

	c.logger.Info().Str("source", job.Source).Str("job_id", job.ID.String()).Msg("evaluating photo")

	verdict, err := c.evaluate(ctx, job)

	c.mu.Lock()
	if c.cancelled {
		// Result arrived after a cancel request: discard it. The job stays
		// in_flight (never counted); re-evaluating it is a new job.
		c.progress.StatusMsg = fmt.Sprintf("discarded result for %s: run cancelled", job.Source)
		c.mu.Unlock()
		c.notify()
		c.metrics.RecordEvaluation(ctx, pcotel.OutcomeCancelled)
		c.logger.Info().Str("source", job.Source).Msg("discarding result: run cancelled")
		return
	}

	if err != nil {
		c.jobs[idx].Status = model.JobFailed
		c.jobs[idx].Err = err.Error()
		c.progress.Cursor++
		c.progress.FailureCount++
		c.progress.StatusMsg = fmt.Sprintf("failed %s: %v", job.Source, err)
		c.mu.Unlock()
		c.notify()
		c.metrics.RecordEvaluation(ctx, pcotel.OutcomeFailed)
		c.logger.Warn().Str("source", job.Source).Err(err).Msg("evaluation failed")
		return
	}

	cost := c.provider.CalculateCost(verdict.Usage)
	c.jobs[idx].Status = model.JobSucceeded
	c.progress.Cursor++
	c.progress.SuccessCount++
	c.progress.StatusMsg = fmt.Sprintf("completed %s (%.1f, %s)", job.Source, verdict.OverallScore, verdict.PrimaryPlacement)
	c.mu.Unlock()

	c.sink.Upsert(results.Result{
		Source:      job.Source,
		Verdict:     *verdict,
		CostUSD:     cost,
		Provider:    c.provider.Name(),
		Model:       c.provider.Model(),
		PromptVer:   c.prompter.Version(),
		EvaluatedAt: time.Now().UTC(),
	})
	c.notify()

	c.metrics.RecordEvaluation(ctx, pcotel.OutcomeSucceeded)
	c.metrics.RecordTokens(ctx, c.provider.Name(), c.provider.Model(),
		verdict.Usage.InputTokens, verdict.Usage.OutputTokens, cost)
	c.logger.Info().
		Str("source", job.Source).
		Float64("overall", verdict.OverallScore).
		Str("placement", verdict.PrimaryPlacement).
		Float64("cost_usd", cost).
		Msg("evaluation succeeded")
}

func (c *Coordinator) evaluate(ctx context.Context, job model.EvaluationJob) (*model.Verdict, error) {
	data, mediaType, err := c.encoder.Encode(ctx, job.Source)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return c.provider.Evaluate(ctx, model.EvaluationRequest{
		ImageBase64: data,
		MediaType:   mediaType,
		Prompt:      c.prompter.Current(),
		MaxTokens:   c.maxTokens,
	})
}

func (c *Coordinator) runCancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		c.Cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Coordinator) finishCancelled(ctx context.Context, span trace.Span) error {
	c.mutate(func(p *model.Progress) {
		p.Cancelled = true
		p.StatusMsg = fmt.Sprintf("cancelled after %d of %d", p.Cursor, p.Total)
	})
	p := c.Progress()
	span.SetAttributes(
		attribute.Bool("run.cancelled", true),
		attribute.Int("run.succeeded", p.SuccessCount),
		attribute.Int("run.failed", p.FailureCount),
	)
	c.logger.Info().
		Int("completed", p.Cursor).
		Int("total", p.Total).
		Msg("evaluation run cancelled")
	return ctx.Err()
}

// mutate applies fn to the progress under the lock, then notifies observers.
func (c *Coordinator) mutate(fn func(*model.Progress)) {
	c.mu.Lock()
	fn(&c.progress)
	c.mu.Unlock()
	c.notify()
}

// notify hands the current snapshot to the observer, outside the lock so the
// observer may call Progress, Jobs or Cancel.
func (c *Coordinator) notify() {
	if c.observer == nil {
		return
	}
	c.observer(c.Progress())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
