package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

func testEvent() Event {
	return Event{
		Type:        EventDetected,
		MonitorID:   "m1",
		MonitorName: "api",
		MonitorURL:  "https://api.example.com",
		IncidentID:  "inc1",
		Error:       "connection refused",
		Timestamp:   time.Now().UTC(),
	}
}

func addConfig(t *testing.T, st *store.MemoryStore, id string, kind model.ChannelKind, target string, enabled bool) {
	t.Helper()
	_, err := st.UpsertAlertConfig(context.Background(), model.AlertConfig{
		ID:               id,
		MonitorID:        "m1",
		Channel:          kind,
		Target:           target,
		FailureThreshold: 3,
		Enabled:          enabled,
	})
	require.NoError(t, err)
}

type stubChannel struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubChannel) Send(_ context.Context, _ model.AlertConfig, _ Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *stubChannel) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestDispatchRecordsEveryAttempt(t *testing.T) {
	st := store.NewMemoryStore()
	d := NewDispatcher(DispatcherDeps{Store: st, Logger: zap.NewNop()})

	good := &stubChannel{}
	bad := &stubChannel{err: fmt.Errorf("rate limited")}
	d.SetChannel(model.ChannelWebhook, good)
	d.SetChannel(model.ChannelSlack, good)
	d.SetChannel(model.ChannelDiscord, bad)

	addConfig(t, st, "a1", model.ChannelWebhook, "https://hooks.example.com/1", true)
	addConfig(t, st, "a2", model.ChannelSlack, "https://hooks.example.com/2", true)
	addConfig(t, st, "a3", model.ChannelDiscord, "https://hooks.example.com/3", true)

	err := d.Dispatch(context.Background(), testEvent())
	require.NoError(t, err)

	records, err := st.ListNotificationRecords(context.Background(), "inc1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	succeeded, failed := 0, 0
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "inc1", rec.IncidentID)
		if rec.Success {
			succeeded++
			assert.Empty(t, rec.Error)
		} else {
			failed++
			assert.Contains(t, rec.Error, "rate limited")
			assert.Equal(t, model.ChannelDiscord, rec.Channel)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
}

func TestDispatchSkipsDisabledConfigs(t *testing.T) {
	st := store.NewMemoryStore()
	d := NewDispatcher(DispatcherDeps{Store: st, Logger: zap.NewNop()})

	ch := &stubChannel{}
	d.SetChannel(model.ChannelWebhook, ch)

	addConfig(t, st, "a1", model.ChannelWebhook, "https://hooks.example.com/1", true)
	addConfig(t, st, "a2", model.ChannelWebhook, "https://hooks.example.com/2", false)

	require.NoError(t, d.Dispatch(context.Background(), testEvent()))

	assert.Equal(t, 1, ch.Calls())
	records, _ := st.ListNotificationRecords(context.Background(), "inc1")
	assert.Len(t, records, 1)
}

func TestDispatchNoConfigsIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	d := NewDispatcher(DispatcherDeps{Store: st, Logger: zap.NewNop()})

	require.NoError(t, d.Dispatch(context.Background(), testEvent()))

	records, _ := st.ListNotificationRecords(context.Background(), "inc1")
	assert.Empty(t, records)
}

func TestDispatchUnknownChannelRecordsFailure(t *testing.T) {
	st := store.NewMemoryStore()
	d := NewDispatcher(DispatcherDeps{Store: st, Logger: zap.NewNop()})

	addConfig(t, st, "a1", model.ChannelKind("pager"), "whoever", true)

	require.NoError(t, d.Dispatch(context.Background(), testEvent()))

	records, _ := st.ListNotificationRecords(context.Background(), "inc1")
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Contains(t, records[0].Error, "unknown channel kind")
}

func TestWebhookChannelPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	err := ch.Send(context.Background(), model.AlertConfig{Target: srv.URL}, testEvent())
	require.NoError(t, err)

	assert.Equal(t, "detected", got["event"])
	assert.Equal(t, "connection refused", got["error"])
	monitor := got["monitor"].(map[string]any)
	assert.Equal(t, "m1", monitor["id"])
	assert.Equal(t, "api", monitor["name"])
	incident := got["incident"].(map[string]any)
	assert.Equal(t, "inc1", incident["id"])
}

func TestWebhookChannelNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad signature", http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	err := ch.Send(context.Background(), model.AlertConfig{Target: srv.URL}, testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSlackChannelPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlackChannel()
	err := ch.Send(context.Background(), model.AlertConfig{Target: srv.URL}, testEvent())
	require.NoError(t, err)

	attachments := got["attachments"].([]any)
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]any)
	assert.Equal(t, "#dc3545", att["color"])
	assert.Contains(t, att["title"], "api")
}

func TestDiscordChannelPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := testEvent()
	ev.Type = EventRecovered
	ev.Error = ""

	ch := NewDiscordChannel()
	err := ch.Send(context.Background(), model.AlertConfig{Target: srv.URL}, ev)
	require.NoError(t, err)

	embeds := got["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, float64(0x5cdd8b), embed["color"])
	assert.Contains(t, embed["title"], "recovered")
}

func TestRenderEmail(t *testing.T) {
	subject, plain, html := renderEmail(testEvent())
	assert.Equal(t, "Monitor Down: api", subject)
	assert.Contains(t, plain, "connection refused")
	assert.Contains(t, html, "https://api.example.com")

	ev := testEvent()
	ev.Type = EventRecovered
	subject, plain, _ = renderEmail(ev)
	assert.Equal(t, "Monitor Recovered: api", subject)
	assert.Contains(t, plain, "back online")
}
