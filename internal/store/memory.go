package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
)

// MemoryStore keeps everything in process memory. It backs tests and
// small single-node setups where durability across restarts is not needed.
type MemoryStore struct {
	mu            sync.RWMutex
	monitors      map[string]model.Monitor
	alertConfigs  map[string]model.AlertConfig
	probeResults  map[string][]model.ProbeResult
	incidents     map[string]model.Incident
	notifications []model.NotificationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		monitors:     map[string]model.Monitor{},
		alertConfigs: map[string]model.AlertConfig{},
		probeResults: map[string][]model.ProbeResult{},
		incidents:    map[string]model.Incident{},
	}
}

func (s *MemoryStore) ListMonitors(_ context.Context) ([]model.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListActiveMonitors(ctx context.Context) ([]model.Monitor, error) {
	all, _ := s.ListMonitors(ctx)
	out := all[:0]
	for _, m := range all {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetMonitor(_ context.Context, id string) (model.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[id]
	if !ok {
		return model.Monitor{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) UpsertMonitor(_ context.Context, m model.Monitor) (model.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.monitors[m.ID]; ok {
		m.CreatedAt = prev.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.monitors[m.ID] = m
	return m, nil
}

func (s *MemoryStore) DeleteMonitor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitors, id)
	return nil
}

func (s *MemoryStore) ListAlertConfigs(_ context.Context, monitorID string) ([]model.AlertConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AlertConfig
	for _, c := range s.alertConfigs {
		if c.MonitorID == monitorID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListEnabledAlertConfigs(ctx context.Context, monitorID string) ([]model.AlertConfig, error) {
	all, _ := s.ListAlertConfigs(ctx, monitorID)
	var out []model.AlertConfig
	for _, c := range all {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertAlertConfig(_ context.Context, c model.AlertConfig) (model.AlertConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.alertConfigs[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.alertConfigs[c.ID] = c
	return c, nil
}

func (s *MemoryStore) DeleteAlertConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alertConfigs, id)
	return nil
}

func (s *MemoryStore) AppendProbeResult(_ context.Context, r model.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeResults[r.MonitorID] = append(s.probeResults[r.MonitorID], r)
	return nil
}

func (s *MemoryStore) LatestProbeResult(_ context.Context, monitorID string) (*model.ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.probeResults[monitorID]
	if len(results) == 0 {
		return nil, nil
	}
	latest := results[0]
	for _, r := range results[1:] {
		if r.CheckedAt.After(latest.CheckedAt) {
			latest = r
		}
	}
	return &latest, nil
}

func (s *MemoryStore) ProbeResultsSince(_ context.Context, monitorID string, since time.Time) ([]model.ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ProbeResult
	for _, r := range s.probeResults[monitorID] {
		if !r.CheckedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) OpenIncident(_ context.Context, monitorID string) (*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents {
		if inc.MonitorID == monitorID && inc.Open() {
			v := inc
			return &v, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateIncident(_ context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.ID] = inc
	return nil
}

func (s *MemoryStore) UpdateIncident(_ context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		return ErrNotFound
	}
	s.incidents[inc.ID] = inc
	return nil
}

func (s *MemoryStore) GetIncident(_ context.Context, id string) (model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return model.Incident{}, ErrNotFound
	}
	return inc, nil
}

func (s *MemoryStore) ListIncidents(_ context.Context, monitorID string, limit int) ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Incident
	for _, inc := range s.incidents {
		if monitorID == "" || inc.MonitorID == monitorID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendNotificationRecord(_ context.Context, rec model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *MemoryStore) ListNotificationRecords(_ context.Context, incidentID string) ([]model.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.NotificationRecord
	for _, rec := range s.notifications {
		if incidentID == "" || rec.IncidentID == incidentID {
			out = append(out, rec)
		}
	}
	return out, nil
}
