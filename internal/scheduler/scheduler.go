package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

// ErrCycleInProgress is returned when RunCycle is invoked while a
// previous cycle is still draining. Overlapping external triggers are
// expected to skip the tick rather than double-probe.
var ErrCycleInProgress = errors.New("check cycle already in progress")

// Prober classifies one monitor's health. All failure modes come back
// as values, never as errors.
type Prober interface {
	Probe(ctx context.Context, m model.Monitor) model.ProbeResult
}

// Observer consumes each probe outcome, in per-monitor completion order.
type Observer interface {
	Observe(ctx context.Context, m model.Monitor, res model.ProbeResult)
}

type Deps struct {
	Store     store.Store
	Checker   Prober
	Tracker   Observer
	Logger    *zap.Logger
	BatchSize int
}

// Scheduler decides which monitors are due and fans probes out in
// bounded-concurrency batches. It holds no timer of its own: an
// external trigger invokes RunCycle and the cycle runs to completion.
type Scheduler struct {
	deps    Deps
	running atomic.Bool

	// last probe time per monitor, bootstrapped read-through from the
	// most recent persisted result so a restart doesn't re-probe
	// everything at once
	lastProbe sync.Map // monitor id -> time.Time
}

func New(deps Deps) *Scheduler {
	if deps.BatchSize <= 0 {
		deps.BatchSize = 10
	}
	return &Scheduler{deps: deps}
}

// CycleResult summarizes one completed pass.
type CycleResult struct {
	Timestamp time.Time `json:"timestamp"`
	Checked   int       `json:"checked"`
}

// RunCycle probes every monitor currently due. The only error returns
// are an in-flight cycle and a failure to load the monitor list;
// everything below that is isolated per monitor.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleResult{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	monitors, err := s.deps.Store.ListActiveMonitors(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("load active monitors: %w", err)
	}

	now := time.Now().UTC()
	var due []model.Monitor
	for _, m := range monitors {
		if s.isDue(ctx, m, now) {
			due = append(due, m)
		}
	}

	for i := 0; i < len(due); i += s.deps.BatchSize {
		end := min(i+s.deps.BatchSize, len(due))
		var wg sync.WaitGroup
		for _, m := range due[i:end] {
			wg.Add(1)
			go func(m model.Monitor) {
				defer wg.Done()
				s.probeOne(ctx, m)
			}(m)
		}
		wg.Wait()
	}

	return CycleResult{Timestamp: time.Now().UTC(), Checked: len(due)}, nil
}

// isDue reports whether the monitor has never been probed or its
// interval has elapsed since the last probe.
func (s *Scheduler) isDue(ctx context.Context, m model.Monitor, now time.Time) bool {
	v, ok := s.lastProbe.Load(m.ID)
	if !ok {
		latest, err := s.deps.Store.LatestProbeResult(ctx, m.ID)
		if err != nil {
			s.deps.Logger.Warn("failed to load latest probe result",
				zap.String("monitor_id", m.ID), zap.Error(err))
			return true
		}
		if latest == nil {
			return true
		}
		s.lastProbe.Store(m.ID, latest.CheckedAt)
		v = latest.CheckedAt
	}
	return !now.Before(v.(time.Time).Add(m.Interval()))
}

func (s *Scheduler) probeOne(ctx context.Context, m model.Monitor) {
	res := s.safeProbe(ctx, m)
	s.lastProbe.Store(m.ID, res.CheckedAt)

	if err := s.deps.Store.AppendProbeResult(ctx, res); err != nil {
		// A dropped write for one monitor must not block the others.
		s.deps.Logger.Error("failed to persist probe result",
			zap.String("monitor_id", m.ID), zap.Error(err))
	}

	s.deps.Tracker.Observe(ctx, m, res)
}

// safeProbe converts a panicking probe into a down result so one broken
// monitor cannot abort the cycle.
func (s *Scheduler) safeProbe(ctx context.Context, m model.Monitor) (res model.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("probe panicked",
				zap.String("monitor_id", m.ID), zap.Any("panic", r))
			res = model.ProbeResult{
				MonitorID: m.ID,
				Status:    model.StatusDown,
				Error:     fmt.Sprintf("probe failure: %v", r),
				CheckedAt: time.Now().UTC(),
			}
		}
	}()
	return s.deps.Checker.Probe(ctx, m)
}

// LastProbeTime returns the in-memory last probe time for a monitor.
func (s *Scheduler) LastProbeTime(monitorID string) (time.Time, bool) {
	v, ok := s.lastProbe.Load(monitorID)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}
