package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/middleware"
)

// NewRouter wires the public and operator-only routes
func NewRouter(h *Handler, cfg *config.Config, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/rates", h.Rates).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/forecasts", h.RunForecast).Methods("POST")
	authRouter.HandleFunc("/forecasts", h.ListRuns).Methods("GET")
	authRouter.HandleFunc("/forecasts/{id}", h.GetRun).Methods("GET")
	authRouter.HandleFunc("/scenarios", h.RunScenarios).Methods("POST")
	return r
}
