package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lsy88/uptime-sentry/internal/model"
	"github.com/lsy88/uptime-sentry/internal/store"
)

func incidentsRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
				return
			}
			limit = n
		}
		incidents, err := deps.Store.ListIncidents(r.Context(), r.URL.Query().Get("monitorId"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, incidents)
	})
	r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		inc, err := deps.Store.GetIncident(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)
	})

	// Acknowledging moves a detected incident to investigating. The
	// automatic resolve on recovery still applies afterwards.
	r.Post("/{id}/ack", func(w http.ResponseWriter, r *http.Request) {
		inc, err := deps.Store.GetIncident(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if inc.State != model.IncidentDetected {
			writeError(w, http.StatusConflict,
				fmt.Errorf("incident is %s, only detected incidents can be acknowledged", inc.State))
			return
		}
		now := time.Now().UTC()
		inc.State = model.IncidentInvestigating
		inc.AcknowledgedAt = &now
		if err := deps.Store.UpdateIncident(r.Context(), inc); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)
	})

	r.Post("/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		inc, err := deps.Store.GetIncident(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !inc.Open() {
			writeError(w, http.StatusConflict, fmt.Errorf("incident already resolved"))
			return
		}
		var body struct {
			Postmortem string `json:"postmortem"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		now := time.Now().UTC()
		inc.State = model.IncidentResolved
		inc.ResolvedAt = &now
		if body.Postmortem != "" {
			inc.Postmortem = body.Postmortem
		}
		if err := deps.Store.UpdateIncident(r.Context(), inc); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)
	})

	r.Get("/{id}/notifications", func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.Store.ListNotificationRecords(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	return r
}
