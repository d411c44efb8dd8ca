package handlers

import (
	"fmt"
	"net/http"

	"github.com/minescope/minescope/internal/httpserver/deps"
)

type healthResponse struct {
	Status string `json:"status"`
	Probes int    `json:"probes"`
}

// Health serves GET /health.
func Health(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Probes: d.Registry.Count(),
		})
	}
}

// Root serves the service banner.
func Root(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "minescope %s — Minecraft server status controller\n", d.Version)
	}
}
