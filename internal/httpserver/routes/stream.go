package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/httpserver/handlers"
)

func init() { Register(registerStream) }

func registerStream(r chi.Router, d deps.Deps) {
	r.Get("/v1/stream", handlers.Stream(d))
}
