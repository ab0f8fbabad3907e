package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

type EventType string

const (
	EventDetected  EventType = "detected"
	EventRecovered EventType = "recovered"
)

// Event is one incident lifecycle transition to fan out.
type Event struct {
	Type        EventType `json:"event"`
	MonitorID   string    `json:"monitorId"`
	MonitorName string    `json:"monitorName"`
	MonitorURL  string    `json:"monitorUrl"`
	IncidentID  string    `json:"incidentId"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Channel delivers one event to one configured destination.
type Channel interface {
	Send(ctx context.Context, cfg model.AlertConfig, ev Event) error
}

// Dispatcher fans an incident event out to every enabled alert
// configuration of the monitor. Channels run concurrently and
// independently; one channel's failure never delays or fails another's.
// Every attempt writes exactly one NotificationRecord. Delivery is
// best-effort, at most once per event per configuration, with no retries.
type Dispatcher struct {
	store    store.Store
	logger   *zap.Logger
	channels map[model.ChannelKind]Channel
}

type DispatcherDeps struct {
	Store  store.Store
	Logger *zap.Logger
	SMTP   SMTPConfig
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		store:  deps.Store,
		logger: deps.Logger,
		channels: map[model.ChannelKind]Channel{
			model.ChannelEmail:   NewEmailChannel(deps.SMTP),
			model.ChannelWebhook: NewWebhookChannel(),
			model.ChannelSlack:   NewSlackChannel(),
			model.ChannelDiscord: NewDiscordChannel(),
		},
	}
}

// SetChannel overrides the implementation for a channel kind.
func (d *Dispatcher) SetChannel(kind model.ChannelKind, ch Channel) {
	d.channels[kind] = ch
}

// Dispatch returns once every attempt has settled, failed ones
// included. The only error is a failure to load the configurations.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	configs, err := d.store.ListEnabledAlertConfigs(ctx, ev.MonitorID)
	if err != nil {
		return fmt.Errorf("load alert configs for monitor %s: %w", ev.MonitorID, err)
	}

	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg model.AlertConfig) {
			defer wg.Done()
			d.attempt(ctx, cfg, ev)
		}(cfg)
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, cfg model.AlertConfig, ev Event) {
	ch, ok := d.channels[cfg.Channel]

	var sendErr error
	if !ok {
		sendErr = fmt.Errorf("unknown channel kind %q", cfg.Channel)
	} else {
		sendErr = ch.Send(ctx, cfg, ev)
	}

	rec := model.NotificationRecord{
		ID:            uuid.NewString(),
		AlertConfigID: cfg.ID,
		IncidentID:    ev.IncidentID,
		Channel:       cfg.Channel,
		Success:       sendErr == nil,
		SentAt:        time.Now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
		d.logger.Warn("notification delivery failed",
			zap.String("monitor_id", ev.MonitorID),
			zap.String("incident_id", ev.IncidentID),
			zap.String("channel", string(cfg.Channel)),
			zap.String("target", cfg.Target),
			zap.Error(sendErr),
		)
	}

	if err := d.store.AppendNotificationRecord(ctx, rec); err != nil {
		d.logger.Error("failed to record notification attempt",
			zap.String("incident_id", ev.IncidentID),
			zap.String("channel", string(cfg.Channel)),
			zap.Error(err),
		)
	}
}
