package incident

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/notify"
	"github.com/lsy88/uptime-sentry/internal/store"
)

// Dispatcher receives incident lifecycle transitions. Its outcome never
// fails the transition itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event) error
}

// Tracker turns runs of failed probes into incidents and recoveries
// into resolutions. Failure counters are process-local and reset on
// restart; the at-most-one-open-incident invariant is enforced against
// durable storage, so a restart can only delay detection, never
// duplicate an incident.
type Tracker struct {
	store      store.Store
	logger     *zap.Logger
	dispatcher Dispatcher

	// one slot per monitor so concurrent batches touching different
	// monitors never contend
	states sync.Map // monitor id -> *monitorState
}

type monitorState struct {
	mu       sync.Mutex
	failures int
}

type TrackerDeps struct {
	Store      store.Store
	Logger     *zap.Logger
	Dispatcher Dispatcher
}

func NewTracker(deps TrackerDeps) *Tracker {
	return &Tracker{
		store:      deps.Store,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
	}
}

// Observe consumes one probe outcome for a monitor. Calls for the same
// monitor are serialized on its state slot, keeping the counter and the
// open-incident check consistent with probe completion order.
func (t *Tracker) Observe(ctx context.Context, m model.Monitor, res model.ProbeResult) {
	st := t.state(m.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if res.Status.Healthy() {
		st.failures = 0
		t.resolveIfOpen(ctx, m, res)
		return
	}

	// degraded counts like down: not fully healthy
	st.failures++

	open, err := t.store.OpenIncident(ctx, m.ID)
	if err != nil {
		t.logger.Error("failed to look up open incident",
			zap.String("monitor_id", m.ID), zap.Error(err))
		return
	}
	if open != nil {
		return
	}

	if st.failures < t.effectiveThreshold(ctx, m.ID) {
		return
	}

	now := time.Now().UTC()
	inc := model.Incident{
		ID:         uuid.NewString(),
		MonitorID:  m.ID,
		State:      model.IncidentDetected,
		DetectedAt: now,
		Cause:      res.Error,
	}
	if err := t.store.CreateIncident(ctx, inc); err != nil {
		t.logger.Error("failed to create incident",
			zap.String("monitor_id", m.ID), zap.Error(err))
		return
	}

	t.logger.Info("incident detected",
		zap.String("monitor_id", m.ID),
		zap.String("monitor_name", m.Name),
		zap.String("incident_id", inc.ID),
		zap.Int("failures", st.failures),
		zap.String("cause", inc.Cause),
	)

	t.emit(ctx, notify.Event{
		Type:        notify.EventDetected,
		MonitorID:   m.ID,
		MonitorName: m.Name,
		MonitorURL:  m.URL,
		IncidentID:  inc.ID,
		Error:       res.Error,
		Timestamp:   now,
	})
}

func (t *Tracker) resolveIfOpen(ctx context.Context, m model.Monitor, res model.ProbeResult) {
	open, err := t.store.OpenIncident(ctx, m.ID)
	if err != nil {
		t.logger.Error("failed to look up open incident",
			zap.String("monitor_id", m.ID), zap.Error(err))
		return
	}
	if open == nil {
		return
	}

	now := time.Now().UTC()
	open.State = model.IncidentResolved
	open.ResolvedAt = &now
	if err := t.store.UpdateIncident(ctx, *open); err != nil {
		t.logger.Error("failed to resolve incident",
			zap.String("monitor_id", m.ID),
			zap.String("incident_id", open.ID),
			zap.Error(err))
		return
	}

	t.logger.Info("incident resolved",
		zap.String("monitor_id", m.ID),
		zap.String("monitor_name", m.Name),
		zap.String("incident_id", open.ID),
		zap.Duration("downtime", now.Sub(open.DetectedAt)),
	)

	t.emit(ctx, notify.Event{
		Type:        notify.EventRecovered,
		MonitorID:   m.ID,
		MonitorName: m.Name,
		MonitorURL:  m.URL,
		IncidentID:  open.ID,
		Timestamp:   now,
	})
}

// effectiveThreshold is the minimum failure threshold among the
// monitor's enabled alert configurations: the most sensitive subscriber
// decides when the episode becomes an incident. Monitors with no
// enabled configuration fall back to the default.
func (t *Tracker) effectiveThreshold(ctx context.Context, monitorID string) int {
	configs, err := t.store.ListEnabledAlertConfigs(ctx, monitorID)
	if err != nil {
		t.logger.Warn("failed to load alert configs, using default threshold",
			zap.String("monitor_id", monitorID), zap.Error(err))
		return model.DefaultFailureThreshold
	}

	threshold := 0
	for _, c := range configs {
		if c.FailureThreshold <= 0 {
			continue
		}
		if threshold == 0 || c.FailureThreshold < threshold {
			threshold = c.FailureThreshold
		}
	}
	if threshold == 0 {
		return model.DefaultFailureThreshold
	}
	return threshold
}

func (t *Tracker) emit(ctx context.Context, ev notify.Event) {
	if t.dispatcher == nil {
		return
	}
	if err := t.dispatcher.Dispatch(ctx, ev); err != nil {
		// Dispatch failure must not fail the incident transition.
		t.logger.Error("notification dispatch failed",
			zap.String("monitor_id", ev.MonitorID),
			zap.String("incident_id", ev.IncidentID),
			zap.Error(err))
	}
}

// Failures reports the current consecutive-failure count for a monitor.
func (t *Tracker) Failures(monitorID string) int {
	st := t.state(monitorID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.failures
}

func (t *Tracker) state(monitorID string) *monitorState {
	v, _ := t.states.LoadOrStore(monitorID, &monitorState{})
	return v.(*monitorState)
}
