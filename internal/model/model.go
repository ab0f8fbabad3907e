package model

import "time"

type MonitorKind string

const (
	MonitorKindHTTP      MonitorKind = "http"
	MonitorKindHTTPS     MonitorKind = "https"
	MonitorKindTCP       MonitorKind = "tcp"
	MonitorKindPing      MonitorKind = "ping"
	MonitorKindContainer MonitorKind = "container"
)

type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// Healthy reports whether the status counts as fully healthy.
// Degraded does not: it feeds the failure counter like down.
func (s ProbeStatus) Healthy() bool {
	return s == StatusUp
}

// Monitor is a user-owned probe target. The engine reads monitors but
// never mutates them.
type Monitor struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	URL                 string            `json:"url"`
	Kind                MonitorKind       `json:"kind"`
	Method              string            `json:"method,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`
	Body                string            `json:"body,omitempty"`
	AcceptedStatusCodes []int             `json:"acceptedStatusCodes,omitempty"`
	IntervalSeconds     int               `json:"intervalSeconds"`
	TimeoutMs           int               `json:"timeoutMs"`
	Active              bool              `json:"active"`
	Public              bool              `json:"public"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Interval returns the check interval as a duration.
func (m Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Timeout returns the probe timeout as a duration.
func (m Monitor) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// StatusAccepted reports whether an HTTP status code is acceptable for
// this monitor. An empty accepted set means any 2xx.
func (m Monitor) StatusAccepted(code int) bool {
	if len(m.AcceptedStatusCodes) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range m.AcceptedStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ProbeResult is the immutable outcome of one executed probe.
type ProbeResult struct {
	MonitorID  string      `json:"monitorId"`
	Status     ProbeStatus `json:"status"`
	StatusCode int         `json:"statusCode,omitempty"`
	LatencyMs  int         `json:"latencyMs"`
	Error      string      `json:"error,omitempty"`
	CheckedAt  time.Time   `json:"checkedAt"`
}

type IncidentState string

const (
	IncidentDetected      IncidentState = "detected"
	IncidentInvestigating IncidentState = "investigating"
	IncidentResolved      IncidentState = "resolved"
)

// Incident is one contiguous episode of a monitor being unhealthy.
// At most one non-resolved incident exists per monitor at any time.
type Incident struct {
	ID             string        `json:"id"`
	MonitorID      string        `json:"monitorId"`
	State          IncidentState `json:"state"`
	DetectedAt     time.Time     `json:"detectedAt"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty"`
	Cause          string        `json:"cause,omitempty"`
	Postmortem     string        `json:"postmortem,omitempty"`
}

func (i Incident) Open() bool {
	return i.State != IncidentResolved
}

type ChannelKind string

const (
	ChannelEmail   ChannelKind = "email"
	ChannelWebhook ChannelKind = "webhook"
	ChannelSlack   ChannelKind = "slack"
	ChannelDiscord ChannelKind = "discord"
)

// DefaultFailureThreshold governs incident creation for monitors with no
// enabled alert configuration.
const DefaultFailureThreshold = 3

// AlertConfig is a monitor-scoped rule describing one notification
// destination. Several may exist per monitor; each is independent.
type AlertConfig struct {
	ID               string      `json:"id"`
	MonitorID        string      `json:"monitorId"`
	Channel          ChannelKind `json:"channel"`
	Target           string      `json:"target"`
	FailureThreshold int         `json:"failureThreshold"`
	Enabled          bool        `json:"enabled"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// NotificationRecord is the immutable audit row for one attempted
// delivery, written regardless of outcome.
type NotificationRecord struct {
	ID            string      `json:"id"`
	AlertConfigID string      `json:"alertConfigId"`
	IncidentID    string      `json:"incidentId"`
	Channel       ChannelKind `json:"channel"`
	Success       bool        `json:"success"`
	Error         string      `json:"error,omitempty"`
	SentAt        time.Time   `json:"sentAt"`
}
