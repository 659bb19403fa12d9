// Package orchestrator drives a batch of images through the counting
// backend one at a time while sampling backend telemetry alongside.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/objcounter/internal/client"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

var (
	// ErrEmptyBatch is reported when Run is given no jobs.
	ErrEmptyBatch = errors.New("no images to process")

	// ErrProcessingTimeout marks a job whose submission outlived the job timeout.
	ErrProcessingTimeout = errors.New("processing timeout")

	// ErrAlreadyRunning is returned when Run is called while another run is active.
	ErrAlreadyRunning = errors.New("a batch is already running")
)

// Backend is the slice of the counting API the orchestrator depends on.
type Backend interface {
	StartMonitoring(ctx context.Context, totalImages int) (*models.StartMonitoringResponse, error)
	StopMonitoring(ctx context.Context) (models.PerformanceSummary, error)
	Summary(ctx context.Context) (models.PerformanceSummary, error)
	Metrics(ctx context.Context) (models.PerformanceMetrics, error)
	UpdateStage(ctx context.Context, stage string, imageIndex *int) error
	CountAll(ctx context.Context, filename string, image []byte, prompt string) (*models.CountResponse, error)
}

var _ Backend = (*client.HTTPClient)(nil)

// Callbacks receive run events. Any of them may be nil.
type Callbacks struct {
	// OnProgress is called once per job with every result so far.
	OnProgress func(results []models.ProcessedResult)
	// OnComplete is called once at the end of a run with the successful results.
	OnComplete func(results []models.ProcessedResult)
	// OnError is called once when the run aborts.
	OnError func(err error)
}

func (c Callbacks) progress(results []models.ProcessedResult) {
	if c.OnProgress != nil {
		c.OnProgress(results)
	}
}

func (c Callbacks) complete(results []models.ProcessedResult) {
	if c.OnComplete != nil {
		c.OnComplete(results)
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Options tunes run timings. Zero fields take the defaults except the two
// yields, which may be zero to disable them. Start from DefaultOptions to
// keep the standard yields.
type Options struct {
	JobTimeout      time.Duration
	PollInterval    time.Duration
	TickInterval    time.Duration
	PreSubmitYield  time.Duration
	PostJobYield    time.Duration
	StopTimeout     time.Duration
	HistoryCapacity int
	Now             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		JobTimeout:      120 * time.Second,
		PollInterval:    250 * time.Millisecond,
		TickInterval:    100 * time.Millisecond,
		PreSubmitYield:  100 * time.Millisecond,
		PostJobYield:    50 * time.Millisecond,
		StopTimeout:     5 * time.Second,
		HistoryCapacity: DefaultHistoryCapacity,
		Now:             time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.JobTimeout <= 0 {
		o.JobTimeout = d.JobTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.PreSubmitYield < 0 {
		o.PreSubmitYield = 0
	}
	if o.PostJobYield < 0 {
		o.PostJobYield = 0
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = d.StopTimeout
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = d.HistoryCapacity
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Orchestrator runs one batch at a time against a Backend.
type Orchestrator struct {
	backend Backend
	opts    Options

	mu      sync.Mutex
	session *Session
	running bool
}

func New(backend Backend, opts Options) *Orchestrator {
	return &Orchestrator{backend: backend, opts: opts.withDefaults()}
}

// Session returns the most recent run's session, or nil before the first run.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Run processes jobs in order and reports through cb. It blocks until the
// batch completes or aborts; the returned error is the one passed to
// OnError, or nil after OnComplete.
func (o *Orchestrator) Run(ctx context.Context, jobs []models.ImageJob, cb Callbacks) error {
	if len(jobs) == 0 {
		cb.fail(ErrEmptyBatch)
		return ErrEmptyBatch
	}

	session, err := o.acquire(jobs)
	if err != nil {
		cb.fail(err)
		return err
	}
	defer o.release()

	session.begin()

	if _, err := o.backend.StartMonitoring(ctx, len(jobs)); err != nil {
		return o.abort(ctx, session, cb, fmt.Errorf("starting performance monitoring: %w", err), nil)
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)
	p := &poller{backend: o.backend, session: session, interval: o.opts.PollInterval, now: o.opts.Now}
	t := &tracker{session: session, interval: o.opts.TickInterval, now: o.opts.Now}
	g.Go(func() error { return p.run(gctx) })
	g.Go(func() error { return t.run(gctx) })
	stopBackground := func() {
		cancelBg()
		_ = g.Wait()
	}

	var results []models.ProcessedResult
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, session, cb, err, stopBackground)
		}

		session.setCurrent(i)
		idx := i
		if err := o.backend.UpdateStage(ctx, models.StageProcessingImage, &idx); err != nil {
			slog.Warn("stage update failed", "stage", models.StageProcessingImage, "image_index", i, "error", err)
		}

		if err := sleep(ctx, o.opts.PreSubmitYield); err != nil {
			return o.abort(ctx, session, cb, err, stopBackground)
		}

		result := o.process(ctx, job)
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, session, cb, err, stopBackground)
		}

		results = session.appendResult(result)
		cb.progress(results)

		if err := sleep(ctx, o.opts.PostJobYield); err != nil {
			return o.abort(ctx, session, cb, err, stopBackground)
		}
	}

	if err := o.backend.UpdateStage(ctx, models.StageCompleted, nil); err != nil {
		slog.Warn("stage update failed", "stage", models.StageCompleted, "error", err)
	}
	stopBackground()

	session.finish(o.finalSummary(ctx))
	cb.complete(successful(results))
	return nil
}

func (o *Orchestrator) acquire(jobs []models.ImageJob) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, ErrAlreadyRunning
	}
	o.running = true
	o.session = newSession(jobs, o.opts.HistoryCapacity)
	return o.session, nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

type submission struct {
	resp *models.CountResponse
	err  error
}

// process submits one job and waits for the first of response, job timeout
// or cancellation. The losing submission's context is cancelled.
func (o *Orchestrator) process(ctx context.Context, job models.ImageJob) models.ProcessedResult {
	prompt := job.Prompt
	if prompt == "" {
		prompt = models.DefaultPrompt
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan submission, 1)
	go func() {
		resp, err := o.backend.CountAll(jobCtx, job.Filename, job.Data, prompt)
		done <- submission{resp: resp, err: err}
	}()

	timer := time.NewTimer(o.opts.JobTimeout)
	defer timer.Stop()

	select {
	case s := <-done:
		if s.err != nil {
			slog.Warn("image processing failed", "filename", job.Filename, "error", s.err)
			return errorResult(job, s.err)
		}
		return successResult(job, s.resp)
	case <-timer.C:
		slog.Warn("image processing timed out", "filename", job.Filename, "timeout", o.opts.JobTimeout)
		return errorResult(job, ErrProcessingTimeout)
	case <-ctx.Done():
		return errorResult(job, ctx.Err())
	}
}

func successResult(job models.ImageJob, resp *models.CountResponse) models.ProcessedResult {
	objects := resp.Objects
	if objects == nil {
		objects = []models.ObjectCount{}
	}
	resultID := resp.ResultID
	return models.ProcessedResult{
		ID:             uuid.New(),
		Filename:       job.Filename,
		ResultID:       &resultID,
		Objects:        objects,
		TotalSegments:  resp.TotalSegments,
		ProcessingTime: resp.ProcessingTime,
	}
}

func errorResult(job models.ImageJob, err error) models.ProcessedResult {
	return models.ProcessedResult{
		ID:       uuid.New(),
		Filename: job.Filename,
		Objects:  []models.ObjectCount{},
		Error:    errorMessage(err),
	}
}

// errorMessage prefers the backend's own error text over the wrapped form.
func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// finalSummary stops monitoring and returns its summary, falling back to the
// summary endpoint. A nil summary means neither call succeeded.
func (o *Orchestrator) finalSummary(ctx context.Context) *models.PerformanceSummary {
	summary, err := o.backend.StopMonitoring(ctx)
	if err == nil {
		return &summary
	}
	slog.Warn("stopping performance monitoring failed", "error", err)

	summary, err = o.backend.Summary(ctx)
	if err != nil {
		slog.Warn("fetching performance summary failed", "error", err)
		return nil
	}
	return &summary
}

// abort ends a run that cannot continue. Monitoring is stopped on a context
// detached from ctx so a cancelled run still releases the backend session.
func (o *Orchestrator) abort(ctx context.Context, session *Session, cb Callbacks, err error, stopBackground func()) error {
	if stopBackground != nil {
		stopBackground()
	}
	session.fail(err)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.StopTimeout)
	defer cancel()
	if _, stopErr := o.backend.StopMonitoring(stopCtx); stopErr != nil {
		slog.Warn("stopping performance monitoring failed", "error", stopErr)
	}

	slog.Error("batch processing aborted", "error", err)
	cb.fail(err)
	return err
}

func successful(results []models.ProcessedResult) []models.ProcessedResult {
	out := make([]models.ProcessedResult, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
