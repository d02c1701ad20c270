package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lok-dashboard/internal/logging"
)

// SweepRunner is the crawler surface the scheduler drives.
type SweepRunner interface {
	RunDaily(ctx context.Context) error
	CheckAndRecover(ctx context.Context) (bool, error)
}

type jobKind int

const (
	jobDaily jobKind = iota
	jobRecovery
	jobManual
)

func (k jobKind) String() string {
	switch k {
	case jobDaily:
		return "daily"
	case jobRecovery:
		return "recovery"
	case jobManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Scheduler drives the crawler: a daily run at a fixed UTC time, a recovery
// check at startup and on an interval, and manual triggers. Every source
// funnels into one queue consumed by a single worker, so at most one sweep
// runs at a time and a slow sweep can never overlap the next trigger.
type Scheduler struct {
	runner           SweepRunner
	runAtHour        int
	runAtMinute      int
	recoveryInterval time.Duration
	now              func() time.Time
	logger           *logging.Logger

	queue   chan jobKind
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Runner SweepRunner

	// RunAtHour and RunAtMinute fix the daily run time in UTC.
	RunAtHour   int
	RunAtMinute int

	// RecoveryInterval is how often the recovery check re-runs. Default: 8h.
	RecoveryInterval time.Duration

	// Now overrides the clock. Tests use this.
	Now func() time.Time

	Logger *logging.Logger
}

// NewScheduler creates a new crawler scheduler
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("sweep runner is required")
	}
	if cfg.RunAtHour < 0 || cfg.RunAtHour > 23 || cfg.RunAtMinute < 0 || cfg.RunAtMinute > 59 {
		return nil, fmt.Errorf("invalid daily run time %02d:%02d", cfg.RunAtHour, cfg.RunAtMinute)
	}

	recoveryInterval := cfg.RecoveryInterval
	if recoveryInterval <= 0 {
		recoveryInterval = 8 * time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Scheduler{
		runner:           cfg.Runner,
		runAtHour:        cfg.RunAtHour,
		runAtMinute:      cfg.RunAtMinute,
		recoveryInterval: recoveryInterval,
		now:              now,
		logger:           logger.WithField("component", "scheduler"),
		// Room for one of each trigger source; extra triggers while a sweep
		// is queued are redundant and dropped.
		queue: make(chan jobKind, 3),
	}, nil
}

// Start launches the worker and timer goroutines. The startup recovery check
// is enqueued immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"daily_run_at":      fmt.Sprintf("%02d:%02d UTC", s.runAtHour, s.runAtMinute),
		"recovery_interval": s.recoveryInterval.String(),
	}).Info("Starting crawler scheduler")

	s.enqueue(jobRecovery)

	go s.worker(ctx)
	go s.timerLoop(ctx)

	return nil
}

// Stop signals the scheduler to stop and waits for the in-flight sweep to
// finish or the context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.Info("Crawler scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Crawler scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerManual enqueues a sweep run. It reports whether the trigger was
// accepted; false means a run is already queued.
func (s *Scheduler) TriggerManual() bool {
	return s.enqueue(jobManual)
}

func (s *Scheduler) enqueue(kind jobKind) bool {
	select {
	case s.queue <- kind:
		return true
	default:
		s.logger.WithField("job", kind.String()).Debug("Dropping trigger, queue is full")
		return false
	}
}

// worker consumes the queue one job at a time.
func (s *Scheduler) worker(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case kind := <-s.queue:
			s.runJob(ctx, kind)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, kind jobKind) {
	logger := s.logger.WithField("job", kind.String())
	logger.Info("Running scheduled job")

	var err error
	switch kind {
	case jobRecovery:
		var ran bool
		ran, err = s.runner.CheckAndRecover(ctx)
		if err == nil && !ran {
			logger.Debug("Recovery check found nothing to do")
		}
	default:
		err = s.runner.RunDaily(ctx)
	}

	if err != nil {
		logger.WithError(err).Error("Scheduled job failed")
	}
}

// timerLoop fires the daily run timer and the recovery ticker.
func (s *Scheduler) timerLoop(ctx context.Context) {
	timer := time.NewTimer(time.Until(s.nextDailyRun()))
	defer timer.Stop()

	recovery := time.NewTicker(s.recoveryInterval)
	defer recovery.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			s.enqueue(jobDaily)
			timer.Reset(time.Until(s.nextDailyRun()))
		case <-recovery.C:
			s.enqueue(jobRecovery)
		}
	}
}

// nextDailyRun returns the next occurrence of the configured run time in UTC.
func (s *Scheduler) nextDailyRun() time.Time {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.runAtHour, s.runAtMinute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
