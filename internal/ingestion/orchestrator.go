package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/worker"
)

// ErrUnknownType is returned by RunType for a type with no fetcher.
var ErrUnknownType = errors.New("unknown disaster type")

// Summary aggregates one RunAll. Totals count successful sources only.
type Summary struct {
	Success    bool      `json:"success"`
	Total      int       `json:"total"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Results    []Result  `json:"results"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Orchestrator runs the registered fetchers.
type Orchestrator struct {
	fetchers   []Fetcher
	maxWorkers int
	metrics    *observability.Metrics
	logger     *slog.Logger

	running atomic.Int32

	mu          sync.RWMutex
	lastSummary *Summary
	lastResults map[models.DisasterType]Result
}

func NewOrchestrator(metrics *observability.Metrics, fetchers ...Fetcher) *Orchestrator {
	return &Orchestrator{
		fetchers:    fetchers,
		metrics:     orMetrics(metrics),
		logger:      slog.With("component", "orchestrator"),
		lastResults: make(map[models.DisasterType]Result),
	}
}

// SetMaxWorkers caps how many fetchers RunAll runs at once. Zero or less
// means one worker per fetcher. A cap below the number of fetchers queues
// the surplus sources behind the running ones, so one slow feed can delay
// them; isolation between sources holds only when n covers every fetcher.
func (o *Orchestrator) SetMaxWorkers(n int) {
	o.maxWorkers = n
}

// Types lists the registered fetcher types in registration order.
func (o *Orchestrator) Types() []models.DisasterType {
	out := make([]models.DisasterType, 0, len(o.fetchers))
	for _, f := range o.fetchers {
		out = append(out, f.Type())
	}
	return out
}

type fetchJob struct {
	ctx     context.Context
	index   int
	fetcher Fetcher
}

// RunAll runs every fetcher concurrently and waits for all of them. A failing
// or panicking fetcher does not affect the others.
func (o *Orchestrator) RunAll(ctx context.Context) Summary {
	o.running.Add(1)
	defer o.running.Add(-1)

	summary := Summary{StartedAt: time.Now().UTC()}
	results := make([]Result, len(o.fetchers))

	if len(o.fetchers) > 0 {
		workers := len(o.fetchers)
		if o.maxWorkers > 0 && o.maxWorkers < workers {
			workers = o.maxWorkers
		}
		pool := worker.NewWorkerPool[fetchJob](workers, len(o.fetchers), func(_ context.Context, j fetchJob) error {
			results[j.index] = o.runOne(j.ctx, j.fetcher)
			return nil
		})
		// The pool must drain every job even if ctx is cancelled; fetchers
		// observe cancellation through the job context instead.
		pool.Start(context.WithoutCancel(ctx))
		for i, f := range o.fetchers {
			pool.Submit(fetchJob{ctx: ctx, index: i, fetcher: f})
		}
		pool.Stop()
	}

	for _, r := range results {
		if !r.Success {
			continue
		}
		summary.Success = true
		summary.Total += r.Total
		summary.New += r.New
		summary.Updated += r.Updated
	}
	summary.Results = results
	summary.FinishedAt = time.Now().UTC()

	o.mu.Lock()
	o.lastSummary = &summary
	for _, r := range results {
		o.lastResults[r.Type] = r
	}
	o.mu.Unlock()

	o.logger.Info("sync finished",
		"success", summary.Success,
		"total", summary.Total,
		"new", summary.New,
		"updated", summary.Updated,
		"duration", summary.FinishedAt.Sub(summary.StartedAt))
	return summary
}

// RunType runs the fetcher registered for t.
func (o *Orchestrator) RunType(ctx context.Context, t models.DisasterType) (Result, error) {
	for _, f := range o.fetchers {
		if f.Type() != t {
			continue
		}
		o.running.Add(1)
		defer o.running.Add(-1)

		r := o.runOne(ctx, f)
		o.mu.Lock()
		o.lastResults[t] = r
		o.mu.Unlock()
		return r, nil
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func (o *Orchestrator) runOne(ctx context.Context, f Fetcher) (r Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("fetcher panicked", "type", f.Type(), "panic", p)
			r = failed(f.Type(), fmt.Errorf("panic: %v", p), "Fetcher crashed")
		}
		outcome := "success"
		if !r.Success {
			outcome = "failure"
		}
		o.metrics.FetchResults.WithLabelValues(string(f.Type()), outcome).Inc()
		o.metrics.FetchDuration.WithLabelValues(string(f.Type())).Observe(time.Since(start).Seconds())
	}()

	r = f.Fetch(ctx)
	r.Type = f.Type()
	return r
}

// LastSummary returns the most recent RunAll summary, if any.
func (o *Orchestrator) LastSummary() (Summary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastSummary == nil {
		return Summary{}, false
	}
	return *o.lastSummary, true
}

// LastResults returns the latest result per type from RunAll or RunType.
func (o *Orchestrator) LastResults() map[models.DisasterType]Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[models.DisasterType]Result, len(o.lastResults))
	for k, v := range o.lastResults {
		out[k] = v
	}
	return out
}

// Running reports whether a sync is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load() > 0
}
