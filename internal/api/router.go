package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lsy88/uptime-sentry/internal/scheduler"
)

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors(deps.Config.AllowedCORSOrigin))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Mount("/monitors", monitorsRouter(deps))
		r.Mount("/incidents", incidentsRouter(deps))
		r.Post("/cycle/run", deps.handleRunCycle)
	})

	return r
}

// handleRunCycle triggers one check cycle on demand. A cycle already in
// flight is reported as a conflict rather than queued.
func (d Deps) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	res, err := d.Scheduler.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": res.Timestamp,
		"checked":   res.Checked,
	})
}
