package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsvoboda/rollcall/internal/web/handlers"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.store, s.tokens, s.log)
	studentsHandler := handlers.NewStudentsHandler(s.service, s.store, s.log)
	recognizeHandler := handlers.NewRecognizeHandler(s.service, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.store, s.config.App.Timezone, s.log)

	// Unauthenticated surface
	s.router.Get("/", handlers.Banner)
	s.router.Get("/healthz", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/api/auth/register", authHandler.Register)
	s.router.Post("/api/auth/login", authHandler.Login)

	// Everything below requires a bearer token and runs tenant-scoped
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.tokens, s.store))

		r.Get("/api/auth/profile", authHandler.Profile)

		r.Post("/register", studentsHandler.Register)
		r.Get("/students", studentsHandler.List)

		r.Post("/recognize", recognizeHandler.Recognize)

		r.Get("/download", attendanceHandler.Download)
		r.Post("/delete_attendance", attendanceHandler.Delete)
		r.Post("/clear_attendance", attendanceHandler.Clear)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})
}
