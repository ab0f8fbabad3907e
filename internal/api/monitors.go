package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

func monitorsRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		monitors, err := deps.Store.ListMonitors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, monitors)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var m model.Monitor
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m = normalizeMonitor(m)
		if err := validateMonitor(m); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		now := time.Now().UTC()
		m.CreatedAt = now
		m.UpdatedAt = now
		out, err := deps.Store.UpsertMonitor(r.Context(), m)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		m, err := deps.Store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	})
	r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
		existing, err := deps.Store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		var m model.Monitor
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = time.Now().UTC()
		m = normalizeMonitor(m)
		if err := validateMonitor(m); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		out, err := deps.Store.UpsertMonitor(r.Context(), m)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteMonitor(r.Context(), chi.URLParam(r, "id")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Post("/{id}/pause", setActiveHandler(deps, false))
	r.Post("/{id}/resume", setActiveHandler(deps, true))

	r.Get("/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		window := 24 * time.Hour
		if raw := r.URL.Query().Get("window"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid window %q", raw))
				return
			}
			window = d
		}
		since := time.Now().UTC().Add(-window)
		results, err := deps.Store.ProbeResultsSince(r.Context(), chi.URLParam(r, "id"), since)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Get("/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Stats.Summary(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	r.Mount("/{id}/alerts", alertsRouter(deps))

	return r
}

func setActiveHandler(deps Deps, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := deps.Store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		m.Active = active
		m.UpdatedAt = time.Now().UTC()
		out, err := deps.Store.UpsertMonitor(r.Context(), m)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func normalizeMonitor(m model.Monitor) model.Monitor {
	if m.Kind == "" {
		m.Kind = model.MonitorKindHTTP
	}
	if m.IntervalSeconds <= 0 {
		m.IntervalSeconds = 60
	}
	if m.TimeoutMs <= 0 {
		m.TimeoutMs = 10000
	}
	if m.Method == "" && (m.Kind == model.MonitorKindHTTP || m.Kind == model.MonitorKindHTTPS) {
		m.Method = http.MethodGet
	}
	return m
}

func validateMonitor(m model.Monitor) error {
	switch m.Kind {
	case model.MonitorKindHTTP, model.MonitorKindHTTPS, model.MonitorKindTCP,
		model.MonitorKindPing, model.MonitorKindContainer:
	default:
		return fmt.Errorf("unknown monitor kind %q", m.Kind)
	}
	if m.Name == "" {
		return fmt.Errorf("monitor name is required")
	}
	if m.URL == "" {
		return fmt.Errorf("monitor url is required")
	}
	// The probe must be able to finish before the next one is due.
	if m.TimeoutMs >= m.IntervalSeconds*1000 {
		return fmt.Errorf("timeoutMs (%d) must be less than the check interval (%dms)",
			m.TimeoutMs, m.IntervalSeconds*1000)
	}
	return nil
}
