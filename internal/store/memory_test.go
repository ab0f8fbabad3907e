package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsy88/uptime-sentry/internal/model"
)

func TestMonitorCRUD(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.GetMonitor(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := st.UpsertMonitor(ctx, model.Monitor{ID: "m1", Name: "api", URL: "https://api.example.com", Active: true})
	require.NoError(t, err)
	assert.False(t, m.CreatedAt.IsZero())

	got, err := st.GetMonitor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "api", got.Name)

	// update keeps the original creation time
	m.Name = "api-v2"
	updated, err := st.UpsertMonitor(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, m.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "api-v2", updated.Name)

	require.NoError(t, st.DeleteMonitor(ctx, "m1"))
	_, err = st.GetMonitor(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActiveMonitors(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.UpsertMonitor(ctx, model.Monitor{ID: "m1", Name: "on", Active: true})
	require.NoError(t, err)
	_, err = st.UpsertMonitor(ctx, model.Monitor{ID: "m2", Name: "off", Active: false})
	require.NoError(t, err)

	active, err := st.ListActiveMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "m1", active[0].ID)

	all, err := st.ListMonitors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAlertConfigsByMonitor(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.UpsertAlertConfig(ctx, model.AlertConfig{ID: "a1", MonitorID: "m1", Channel: model.ChannelWebhook, Enabled: true})
	require.NoError(t, err)
	_, err = st.UpsertAlertConfig(ctx, model.AlertConfig{ID: "a2", MonitorID: "m1", Channel: model.ChannelEmail, Enabled: false})
	require.NoError(t, err)
	_, err = st.UpsertAlertConfig(ctx, model.AlertConfig{ID: "a3", MonitorID: "m2", Channel: model.ChannelSlack, Enabled: true})
	require.NoError(t, err)

	all, err := st.ListAlertConfigs(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := st.ListEnabledAlertConfigs(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "a1", enabled[0].ID)
}

func TestProbeResultHistory(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	latest, err := st.LatestProbeResult(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i, status := range []model.ProbeStatus{model.StatusUp, model.StatusDown, model.StatusUp} {
		require.NoError(t, st.AppendProbeResult(ctx, model.ProbeResult{
			MonitorID: "m1",
			Status:    status,
			CheckedAt: now.Add(time.Duration(i-2) * time.Hour),
		}))
	}

	latest, err = st.LatestProbeResult(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.StatusUp, latest.Status)
	assert.Equal(t, now, latest.CheckedAt)

	recent, err := st.ProbeResultsSince(ctx, "m1", now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestIncidentLifecycle(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	open, err := st.OpenIncident(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, open)

	inc := model.Incident{ID: "inc1", MonitorID: "m1", State: model.IncidentDetected, DetectedAt: time.Now().UTC()}
	require.NoError(t, st.CreateIncident(ctx, inc))

	open, err = st.OpenIncident(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "inc1", open.ID)

	// investigating still counts as open
	open.State = model.IncidentInvestigating
	require.NoError(t, st.UpdateIncident(ctx, *open))
	open, err = st.OpenIncident(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, open)

	now := time.Now().UTC()
	open.State = model.IncidentResolved
	open.ResolvedAt = &now
	require.NoError(t, st.UpdateIncident(ctx, *open))

	open, err = st.OpenIncident(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, open)

	got, err := st.GetIncident(ctx, "inc1")
	require.NoError(t, err)
	assert.Equal(t, model.IncidentResolved, got.State)

	err = st.UpdateIncident(ctx, model.Incident{ID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIncidentsOrderAndLimit(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, st.CreateIncident(ctx, model.Incident{
			ID:         id,
			MonitorID:  "m1",
			State:      model.IncidentResolved,
			DetectedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}

	out, err := st.ListIncidents(ctx, "m1", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)

	all, err := st.ListIncidents(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNotificationRecords(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AppendNotificationRecord(ctx, model.NotificationRecord{
		ID: "n1", IncidentID: "inc1", Channel: model.ChannelWebhook, Success: true, SentAt: time.Now().UTC(),
	}))
	require.NoError(t, st.AppendNotificationRecord(ctx, model.NotificationRecord{
		ID: "n2", IncidentID: "inc2", Channel: model.ChannelSlack, Success: false, Error: "410 gone", SentAt: time.Now().UTC(),
	}))

	recs, err := st.ListNotificationRecords(ctx, "inc1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "n1", recs[0].ID)
}
