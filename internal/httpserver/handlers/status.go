package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/logger"
)

const missingTypeMsg = "Missing required parameter: type (java or bedrock)"

// Status serves GET /v1/status/{server}: a controller-side probe of one
// address, enriched with DNS and GeoIP data.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server := chi.URLParam(r, "server")
		protocol := r.URL.Query().Get("type")
		if !domain.ValidProtocol(protocol) {
			writeError(w, http.StatusBadRequest, missingTypeMsg)
			return
		}

		d.Logger.Info("status request",
			logger.String("server", server),
			logger.String("type", protocol))

		result := d.Orchestrator.Direct(r.Context(), server, protocol)
		if result == nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
