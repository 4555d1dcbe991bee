package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AgileSeagull/DIAS/internal/alerts"
	"github.com/AgileSeagull/DIAS/internal/ingestion"
	"github.com/AgileSeagull/DIAS/internal/models"
)

// ErrStopped is returned by the manual triggers once Stop has been called.
var ErrStopped = errors.New("scheduler stopped")

type Syncer interface {
	RunAll(ctx context.Context) ingestion.Summary
	RunType(ctx context.Context, t models.DisasterType) (ingestion.Result, error)
}

type AlertRunner interface {
	RunCycle(ctx context.Context) (alerts.Report, error)
}

type Options struct {
	SyncInterval  time.Duration
	AlertInterval time.Duration

	// RunOnStart syncs as soon as Start is called and runs the first alert
	// cycle AlertInitialDelay later, instead of waiting a full interval.
	RunOnStart        bool
	AlertInitialDelay time.Duration

	Clock clockwork.Clock
}

// Scheduler drives the periodic sync and alert tasks. Both run on their own
// interval and share nothing but the store.
type Scheduler struct {
	syncer  Syncer
	alerter AlertRunner
	opts    Options
	logger  *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

func New(syncer Syncer, alerter AlertRunner, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		syncer:  syncer,
		alerter: alerter,
		opts:    opts,
		logger:  slog.With("component", "scheduler"),
	}
}

// Start launches both loops. They stop when ctx is cancelled or Stop is
// called. A run already in progress is not cancelled; it finishes on a
// context that keeps ctx's values but not its cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runSyncLoop(ctx)
	go s.runAlertLoop(ctx)
}

func (s *Scheduler) runSyncLoop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("starting sync loop", "interval", s.opts.SyncInterval, "run_on_start", s.opts.RunOnStart)

	runCtx := context.WithoutCancel(ctx)
	ticker := s.opts.Clock.NewTicker(s.opts.SyncInterval)
	defer ticker.Stop()

	if s.opts.RunOnStart {
		s.sync(runCtx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop shutting down")
			return
		case <-ticker.Chan():
			s.sync(runCtx)
		}
	}
}

func (s *Scheduler) runAlertLoop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("starting alert loop", "interval", s.opts.AlertInterval, "initial_delay", s.opts.AlertInitialDelay)

	runCtx := context.WithoutCancel(ctx)
	ticker := s.opts.Clock.NewTicker(s.opts.AlertInterval)
	defer ticker.Stop()

	if s.opts.RunOnStart {
		select {
		case <-ctx.Done():
			return
		case <-s.opts.Clock.After(s.opts.AlertInitialDelay):
			s.alert(runCtx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert loop shutting down")
			return
		case <-ticker.Chan():
			s.alert(runCtx)
		}
	}
}

func (s *Scheduler) sync(ctx context.Context) ingestion.Summary {
	s.logger.Debug("running scheduled sync")
	return s.syncer.RunAll(ctx)
}

func (s *Scheduler) alert(ctx context.Context) {
	_, err := s.alerter.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, alerts.ErrCycleInProgress):
		s.logger.Info("skipping alert tick, previous cycle still running")
	default:
		s.logger.Error("scheduled alert cycle failed", "error", err)
	}
}

// track registers a manual run so Stop waits for it.
func (s *Scheduler) track() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.wg.Add(1)
	return nil
}

// TriggerSync runs a full sync in the caller's goroutine.
func (s *Scheduler) TriggerSync(ctx context.Context) (ingestion.Summary, error) {
	if err := s.track(); err != nil {
		return ingestion.Summary{}, err
	}
	defer s.wg.Done()
	return s.sync(ctx), nil
}

func (s *Scheduler) TriggerSyncType(ctx context.Context, t models.DisasterType) (ingestion.Result, error) {
	if err := s.track(); err != nil {
		return ingestion.Result{}, err
	}
	defer s.wg.Done()
	return s.syncer.RunType(ctx, t)
}

// TriggerAlerts runs one alert cycle now. It returns
// alerts.ErrCycleInProgress when a cycle is already running.
func (s *Scheduler) TriggerAlerts(ctx context.Context) (alerts.Report, error) {
	if err := s.track(); err != nil {
		return alerts.Report{}, err
	}
	defer s.wg.Done()
	return s.alerter.RunCycle(ctx)
}

// Stop ends both loops and waits for any in-flight run, scheduled or
// manual, to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}
