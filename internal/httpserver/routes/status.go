package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/minescope/minescope/internal/httpserver/deps"
	"github.com/minescope/minescope/internal/httpserver/handlers"
)

func init() { Register(registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/v1/status/{server}", handlers.Status(d))
	r.Get("/v1/distributed/{server}", handlers.Distributed(d))
}
