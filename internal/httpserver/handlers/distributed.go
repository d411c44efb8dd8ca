package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/status"
)

// Distributed serves GET /v1/distributed/{server}: the probe is fanned out
// to every connected node and the per-region results aggregated.
func Distributed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server := chi.URLParam(r, "server")
		protocol := r.URL.Query().Get("type")
		if !domain.ValidProtocol(protocol) {
			writeError(w, http.StatusBadRequest, missingTypeMsg)
			return
		}

		d.Logger.Info("distributed status request",
			logger.String("server", server),
			logger.String("type", protocol),
			logger.Int("probes", d.Registry.Count()))

		resp, err := d.Orchestrator.Distributed(r.Context(), server, protocol)
		if err != nil {
			if errors.Is(err, status.ErrNoProbes) {
				writeError(w, http.StatusServiceUnavailable, "No probe nodes available")
				return
			}
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
