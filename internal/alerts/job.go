package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
)

// ErrCycleInProgress is returned when RunCycle is called while another cycle
// is still running.
var ErrCycleInProgress = errors.New("alert cycle already in progress")

type State int32

const (
	StateIdle State = iota
	StateFetching
	StateDiffing
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDiffing:
		return "diffing"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CountryResolver resolves each disaster to a country, keyed by disaster_id.
type CountryResolver interface {
	ResolveAll(ctx context.Context, disasters []models.Disaster) map[string]string
}

// TopicCounter keeps per-country topic counts current.
type TopicCounter interface {
	RefreshCounts(ctx context.Context, counts map[string]int) error
	CleanupInactive(ctx context.Context) (int, error)
}

// Report summarises one alert cycle.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Active     int           `json:"active"`
	New        int           `json:"new"`
	Dispatch   DispatchStats `json:"dispatch"`
	Error      string        `json:"error,omitempty"`
}

type JobOptions struct {
	// CleanupTopics deletes zero-count topics after each count refresh.
	CleanupTopics bool
	Clock         clockwork.Clock
	Metrics       *observability.Metrics
}

// Job runs the alert cycle: refresh topic counts over every active disaster,
// then dispatch the ones not yet alerted on.
type Job struct {
	store      ActiveLister
	resolver   CountryResolver
	topics     TopicCounter
	detector   *Detector
	dispatcher *Dispatcher
	opts       JobOptions
	logger     *slog.Logger

	running atomic.Bool
	state   atomic.Int32

	mu   sync.RWMutex
	last *Report
}

func NewJob(store ActiveLister, resolver CountryResolver, topics TopicCounter, detector *Detector, dispatcher *Dispatcher, opts JobOptions) *Job {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	return &Job{
		store:      store,
		resolver:   resolver,
		topics:     topics,
		detector:   detector,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     slog.With("component", "alert-job"),
	}
}

// Init seeds the detector. Call once before the first cycle.
func (j *Job) Init(ctx context.Context) error {
	if err := j.detector.Init(ctx); err != nil {
		return err
	}
	j.opts.Metrics.ProcessedSize.Set(float64(j.detector.Processed().Len()))
	return nil
}

func (j *Job) State() State {
	return State(j.state.Load())
}

// LastReport returns the report of the most recent completed cycle.
func (j *Job) LastReport() (Report, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return Report{}, false
	}
	return *j.last, true
}

// RunCycle runs one alert cycle. It is not re-entrant: a call made while a
// cycle is running returns ErrCycleInProgress immediately.
func (j *Job) RunCycle(ctx context.Context) (Report, error) {
	if !j.running.CompareAndSwap(false, true) {
		return Report{}, ErrCycleInProgress
	}
	defer j.running.Store(false)
	defer j.setState(StateIdle)

	start := j.opts.Clock.Now()
	report := Report{StartedAt: start.UTC()}

	err := j.cycle(ctx, &report)
	if err != nil {
		report.Error = err.Error()
		j.logger.Error("alert cycle failed", "error", err)
	}

	report.FinishedAt = j.opts.Clock.Now().UTC()
	j.opts.Metrics.CycleDuration.Observe(j.opts.Clock.Since(start).Seconds())
	j.opts.Metrics.ProcessedSize.Set(float64(j.detector.Processed().Len()))

	j.mu.Lock()
	j.last = &report
	j.mu.Unlock()
	return report, err
}

func (j *Job) cycle(ctx context.Context, report *Report) error {
	j.setState(StateFetching)
	active, err := j.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active disasters: %w", err)
	}
	report.Active = len(active)

	countries := j.resolver.ResolveAll(ctx, active)
	if err := j.topics.RefreshCounts(ctx, geocode.CountryCounts(active, countries)); err != nil {
		j.logger.Warn("topic count refresh incomplete", "error", err)
	}
	if j.opts.CleanupTopics {
		if _, err := j.topics.CleanupInactive(ctx); err != nil {
			j.logger.Warn("topic cleanup failed", "error", err)
		}
	}

	j.setState(StateDiffing)
	fresh := j.detector.Delta(active)
	report.New = len(fresh)
	if len(fresh) == 0 {
		j.logger.Info("no new disasters found", "active", len(active))
		return nil
	}
	j.logger.Info("found new disasters", "count", len(fresh))

	j.setState(StateDispatching)
	report.Dispatch = j.dispatcher.Dispatch(ctx, geocode.GroupByCountry(fresh, countries))
	j.logger.Info("alert cycle finished",
		"new", report.New,
		"sent", report.Dispatch.Sent,
		"failed", report.Dispatch.Failed,
		"countries", report.Dispatch.Countries)
	return nil
}

func (j *Job) setState(s State) {
	j.state.Store(int32(s))
}
