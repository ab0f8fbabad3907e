package api

import (
	"context"
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

// alertsRouter is mounted under /monitors/{id}/alerts; the monitor id
// comes from the parent route.
func alertsRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		configs, err := deps.Store.ListAlertConfigs(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, configs)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		monitorID := chi.URLParam(r, "id")
		if _, err := deps.Store.GetMonitor(r.Context(), monitorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		var c model.AlertConfig
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.MonitorID = monitorID
		c = normalizeAlertConfig(c)
		if err := validateAlertConfig(c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		now := time.Now().UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
		out, err := deps.Store.UpsertAlertConfig(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Put("/{alertID}", func(w http.ResponseWriter, r *http.Request) {
		existing, err := getAlertConfig(r.Context(), deps, chi.URLParam(r, "id"), chi.URLParam(r, "alertID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		var c model.AlertConfig
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c.ID = existing.ID
		c.MonitorID = existing.MonitorID
		c.CreatedAt = existing.CreatedAt
		c = normalizeAlertConfig(c)
		if err := validateAlertConfig(c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c.UpdatedAt = time.Now().UTC()
		out, err := deps.Store.UpsertAlertConfig(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Delete("/{alertID}", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteAlertConfig(r.Context(), chi.URLParam(r, "alertID")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	return r
}

// getAlertConfig finds one config among the monitor's list; the store
// has no point lookup for alert configs.
func getAlertConfig(ctx context.Context, deps Deps, monitorID, alertID string) (model.AlertConfig, error) {
	configs, err := deps.Store.ListAlertConfigs(ctx, monitorID)
	if err != nil {
		return model.AlertConfig{}, err
	}
	for _, c := range configs {
		if c.ID == alertID {
			return c, nil
		}
	}
	return model.AlertConfig{}, store.ErrNotFound
}

func normalizeAlertConfig(c model.AlertConfig) model.AlertConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = model.DefaultFailureThreshold
	}
	return c
}

func validateAlertConfig(c model.AlertConfig) error {
	switch c.Channel {
	case model.ChannelEmail, model.ChannelWebhook, model.ChannelSlack, model.ChannelDiscord:
	default:
		return fmt.Errorf("unknown channel kind %q", c.Channel)
	}
	if c.Target == "" {
		return fmt.Errorf("alert target is required")
	}
	return nil
}
