package store

import (
	"context"
	"errors"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract the engine depends on. Probe results,
// incidents and notification records are append-heavy; monitors and alert
// configs are mutated only through the API surface.
type Store interface {
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	ListActiveMonitors(ctx context.Context) ([]model.Monitor, error)
	GetMonitor(ctx context.Context, id string) (model.Monitor, error)
	UpsertMonitor(ctx context.Context, m model.Monitor) (model.Monitor, error)
	DeleteMonitor(ctx context.Context, id string) error

	ListAlertConfigs(ctx context.Context, monitorID string) ([]model.AlertConfig, error)
	ListEnabledAlertConfigs(ctx context.Context, monitorID string) ([]model.AlertConfig, error)
	UpsertAlertConfig(ctx context.Context, c model.AlertConfig) (model.AlertConfig, error)
	DeleteAlertConfig(ctx context.Context, id string) error

	// AppendProbeResult records one executed probe. Results are immutable.
	AppendProbeResult(ctx context.Context, r model.ProbeResult) error
	// LatestProbeResult returns nil when the monitor has never been probed.
	LatestProbeResult(ctx context.Context, monitorID string) (*model.ProbeResult, error)
	ProbeResultsSince(ctx context.Context, monitorID string, since time.Time) ([]model.ProbeResult, error)

	// OpenIncident returns the monitor's non-resolved incident, or nil.
	OpenIncident(ctx context.Context, monitorID string) (*model.Incident, error)
	CreateIncident(ctx context.Context, inc model.Incident) error
	UpdateIncident(ctx context.Context, inc model.Incident) error
	GetIncident(ctx context.Context, id string) (model.Incident, error)
	ListIncidents(ctx context.Context, monitorID string, limit int) ([]model.Incident, error)

	AppendNotificationRecord(ctx context.Context, rec model.NotificationRecord) error
	ListNotificationRecords(ctx context.Context, incidentID string) ([]model.NotificationRecord, error)
}
