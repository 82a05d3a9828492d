package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", s.handleListRooms)

			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", s.handleGetRoom)
				r.Get("/power", s.handleRoomPower)

				r.Route("/devices/{deviceID}", func(r chi.Router) {
					r.Get("/state", s.handleGetDeviceState)
					r.Put("/state", s.handleSetDeviceState)
					r.Post("/toggle", s.handleToggleDevice)
				})
			})
		})

		r.Get("/power", s.handlePowerSummary)

		r.Route("/billing", func(r chi.Router) {
			r.Get("/compute", s.handleComputeBill)
			r.Get("/estimate", s.handleEstimateMonthly)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Put("/", s.handlePutSettings)
		})
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}
