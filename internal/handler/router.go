package handler

import (
	"net/http"

	"github.com/Dan9191/fintrack/internal/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires every route of the API
func NewRouter(h *Handler, auth func(http.Handler) http.Handler, corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	r.HandleFunc("/", h.Health).Methods("GET")

	// Public routes
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/auth/me", h.Me).Methods("GET")
	api.HandleFunc("/auth/categories", h.UpdateCategories).Methods("PUT")

	api.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	api.HandleFunc("/transactions", h.AddTransaction).Methods("POST")
	api.HandleFunc("/transactions/export", h.ExportTransactions).Methods("GET")
	api.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")

	api.HandleFunc("/recurring", h.ListRules).Methods("GET")
	api.HandleFunc("/recurring", h.CreateRule).Methods("POST")
	api.HandleFunc("/recurring/{id}", h.UpdateRule).Methods("PATCH")
	api.HandleFunc("/recurring/{id}", h.DeleteRule).Methods("DELETE")
	api.HandleFunc("/recurring/{id}/upcoming", h.UpcomingOccurrences).Methods("GET")

	api.HandleFunc("/analytics/dashboard", h.Dashboard).Methods("GET")

	return handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.RequestIDHeader}),
	)(r)
}
