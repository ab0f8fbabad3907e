package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store implementation. Monitors and alert
// configs are stored as JSON rows; probe results, incidents and
// notification records get real columns since they are queried by range.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS monitors (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS alert_configs (
			id TEXT PRIMARY KEY,
			monitor_id TEXT NOT NULL,
			data TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alert_configs_monitor ON alert_configs(monitor_id);`,
		`CREATE TABLE IF NOT EXISTS probe_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			monitor_id TEXT NOT NULL,
			status TEXT NOT NULL,
			status_code INTEGER,
			latency_ms INTEGER NOT NULL,
			error TEXT,
			checked_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_probe_results_monitor_checked ON probe_results(monitor_id, checked_at DESC);`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			monitor_id TEXT NOT NULL,
			state TEXT NOT NULL,
			detected_at DATETIME NOT NULL,
			acknowledged_at DATETIME,
			resolved_at DATETIME,
			cause TEXT,
			postmortem TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_monitor_state ON incidents(monitor_id, state);`,
		`CREATE TABLE IF NOT EXISTS notification_records (
			id TEXT PRIMARY KEY,
			alert_config_id TEXT NOT NULL,
			incident_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			sent_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notification_records_incident ON notification_records(incident_id);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to exec query %q: %w", query, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) listMonitors(ctx context.Context, query string, args ...any) ([]model.Monitor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	monitors := []model.Monitor{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m model.Monitor
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

func (s *SQLiteStore) ListMonitors(ctx context.Context) ([]model.Monitor, error) {
	return s.listMonitors(ctx, "SELECT data FROM monitors ORDER BY created_at")
}

func (s *SQLiteStore) ListActiveMonitors(ctx context.Context) ([]model.Monitor, error) {
	return s.listMonitors(ctx, "SELECT data FROM monitors WHERE active = 1 ORDER BY created_at")
}

func (s *SQLiteStore) GetMonitor(ctx context.Context, id string) (model.Monitor, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM monitors WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Monitor{}, ErrNotFound
	}
	if err != nil {
		return model.Monitor{}, err
	}
	var m model.Monitor
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return model.Monitor{}, err
	}
	return m, nil
}

func (s *SQLiteStore) UpsertMonitor(ctx context.Context, m model.Monitor) (model.Monitor, error) {
	now := time.Now().UTC()
	m.UpdatedAt = now
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	data, err := json.Marshal(m)
	if err != nil {
		return model.Monitor{}, err
	}

	query := `INSERT INTO monitors (id, data, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET data=excluded.data, active=excluded.active, updated_at=excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, m.ID, string(data), boolToInt(m.Active), m.CreatedAt, m.UpdatedAt); err != nil {
		return model.Monitor{}, err
	}

	return m, nil
}

func (s *SQLiteStore) DeleteMonitor(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM monitors WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) listAlertConfigs(ctx context.Context, query string, args ...any) ([]model.AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []model.AlertConfig{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c model.AlertConfig
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (s *SQLiteStore) ListAlertConfigs(ctx context.Context, monitorID string) ([]model.AlertConfig, error) {
	return s.listAlertConfigs(ctx,
		"SELECT data FROM alert_configs WHERE monitor_id = ? ORDER BY created_at", monitorID)
}

func (s *SQLiteStore) ListEnabledAlertConfigs(ctx context.Context, monitorID string) ([]model.AlertConfig, error) {
	return s.listAlertConfigs(ctx,
		"SELECT data FROM alert_configs WHERE monitor_id = ? AND enabled = 1 ORDER BY created_at", monitorID)
}

func (s *SQLiteStore) UpsertAlertConfig(ctx context.Context, c model.AlertConfig) (model.AlertConfig, error) {
	now := time.Now().UTC()
	c.UpdatedAt = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	data, err := json.Marshal(c)
	if err != nil {
		return model.AlertConfig{}, err
	}

	query := `INSERT INTO alert_configs (id, monitor_id, data, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET monitor_id=excluded.monitor_id, data=excluded.data, enabled=excluded.enabled, updated_at=excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, c.ID, c.MonitorID, string(data), boolToInt(c.Enabled), c.CreatedAt, c.UpdatedAt); err != nil {
		return model.AlertConfig{}, err
	}

	return c, nil
}

func (s *SQLiteStore) DeleteAlertConfig(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM alert_configs WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) AppendProbeResult(ctx context.Context, r model.ProbeResult) error {
	query := `INSERT INTO probe_results (monitor_id, status, status_code, latency_ms, error, checked_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.MonitorID, string(r.Status), r.StatusCode, r.LatencyMs, r.Error, r.CheckedAt)
	return err
}

func (s *SQLiteStore) LatestProbeResult(ctx context.Context, monitorID string) (*model.ProbeResult, error) {
	query := `SELECT status, status_code, latency_ms, error, checked_at FROM probe_results
			  WHERE monitor_id = ? ORDER BY checked_at DESC LIMIT 1`
	var r model.ProbeResult
	var status string
	var errText sql.NullString
	err := s.db.QueryRowContext(ctx, query, monitorID).
		Scan(&status, &r.StatusCode, &r.LatencyMs, &errText, &r.CheckedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.MonitorID = monitorID
	r.Status = model.ProbeStatus(status)
	r.Error = errText.String
	return &r, nil
}

func (s *SQLiteStore) ProbeResultsSince(ctx context.Context, monitorID string, since time.Time) ([]model.ProbeResult, error) {
	query := `SELECT status, status_code, latency_ms, error, checked_at FROM probe_results
			  WHERE monitor_id = ? AND checked_at >= ? ORDER BY checked_at`
	rows, err := s.db.QueryContext(ctx, query, monitorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ProbeResult
	for rows.Next() {
		var r model.ProbeResult
		var status string
		var errText sql.NullString
		if err := rows.Scan(&status, &r.StatusCode, &r.LatencyMs, &errText, &r.CheckedAt); err != nil {
			return nil, err
		}
		r.MonitorID = monitorID
		r.Status = model.ProbeStatus(status)
		r.Error = errText.String
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) OpenIncident(ctx context.Context, monitorID string) (*model.Incident, error) {
	query := `SELECT id, state, detected_at, acknowledged_at, resolved_at, cause, postmortem
			  FROM incidents WHERE monitor_id = ? AND state != 'resolved' LIMIT 1`
	inc, err := s.scanIncident(s.db.QueryRowContext(ctx, query, monitorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inc.MonitorID = monitorID
	return &inc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanIncident(row rowScanner) (model.Incident, error) {
	var inc model.Incident
	var state string
	var ackAt, resolvedAt sql.NullTime
	var cause, postmortem sql.NullString
	err := row.Scan(&inc.ID, &state, &inc.DetectedAt, &ackAt, &resolvedAt, &cause, &postmortem)
	if err != nil {
		return model.Incident{}, err
	}
	inc.State = model.IncidentState(state)
	if ackAt.Valid {
		inc.AcknowledgedAt = &ackAt.Time
	}
	if resolvedAt.Valid {
		inc.ResolvedAt = &resolvedAt.Time
	}
	inc.Cause = cause.String
	inc.Postmortem = postmortem.String
	return inc, nil
}

func (s *SQLiteStore) CreateIncident(ctx context.Context, inc model.Incident) error {
	query := `INSERT INTO incidents (id, monitor_id, state, detected_at, acknowledged_at, resolved_at, cause, postmortem)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		inc.ID, inc.MonitorID, string(inc.State), inc.DetectedAt,
		nullTime(inc.AcknowledgedAt), nullTime(inc.ResolvedAt), inc.Cause, inc.Postmortem)
	return err
}

func (s *SQLiteStore) UpdateIncident(ctx context.Context, inc model.Incident) error {
	query := `UPDATE incidents SET state = ?, acknowledged_at = ?, resolved_at = ?, cause = ?, postmortem = ?
			  WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		string(inc.State), nullTime(inc.AcknowledgedAt), nullTime(inc.ResolvedAt),
		inc.Cause, inc.Postmortem, inc.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetIncident(ctx context.Context, id string) (model.Incident, error) {
	query := `SELECT id, state, detected_at, acknowledged_at, resolved_at, cause, postmortem
			  FROM incidents WHERE id = ?`
	inc, err := s.scanIncident(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return model.Incident{}, ErrNotFound
	}
	if err != nil {
		return model.Incident{}, err
	}
	var monitorID string
	if err := s.db.QueryRowContext(ctx, "SELECT monitor_id FROM incidents WHERE id = ?", id).Scan(&monitorID); err != nil {
		return model.Incident{}, err
	}
	inc.MonitorID = monitorID
	return inc, nil
}

func (s *SQLiteStore) ListIncidents(ctx context.Context, monitorID string, limit int) ([]model.Incident, error) {
	query := `SELECT id, monitor_id, state, detected_at, acknowledged_at, resolved_at, cause, postmortem
			  FROM incidents`
	args := []any{}
	if monitorID != "" {
		query += " WHERE monitor_id = ?"
		args = append(args, monitorID)
	}
	query += " ORDER BY detected_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var inc model.Incident
		var state string
		var ackAt, resolvedAt sql.NullTime
		var cause, postmortem sql.NullString
		if err := rows.Scan(&inc.ID, &inc.MonitorID, &state, &inc.DetectedAt, &ackAt, &resolvedAt, &cause, &postmortem); err != nil {
			return nil, err
		}
		inc.State = model.IncidentState(state)
		if ackAt.Valid {
			inc.AcknowledgedAt = &ackAt.Time
		}
		if resolvedAt.Valid {
			inc.ResolvedAt = &resolvedAt.Time
		}
		inc.Cause = cause.String
		inc.Postmortem = postmortem.String
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

func (s *SQLiteStore) AppendNotificationRecord(ctx context.Context, rec model.NotificationRecord) error {
	query := `INSERT INTO notification_records (id, alert_config_id, incident_id, channel, success, error, sent_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.AlertConfigID, rec.IncidentID, string(rec.Channel),
		boolToInt(rec.Success), rec.Error, rec.SentAt)
	return err
}

func (s *SQLiteStore) ListNotificationRecords(ctx context.Context, incidentID string) ([]model.NotificationRecord, error) {
	query := `SELECT id, alert_config_id, incident_id, channel, success, error, sent_at
			  FROM notification_records WHERE incident_id = ? ORDER BY sent_at`
	rows, err := s.db.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.NotificationRecord
	for rows.Next() {
		var rec model.NotificationRecord
		var channel string
		var success int
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AlertConfigID, &rec.IncidentID, &channel, &success, &errText, &rec.SentAt); err != nil {
			return nil, err
		}
		rec.Channel = model.ChannelKind(channel)
		rec.Success = success != 0
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
