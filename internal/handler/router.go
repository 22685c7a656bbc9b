package handler

import (
	"net/http"

	"sms-activation-tracker/internal/middleware"
	"sms-activation-tracker/pkg/logger"
)

// NewRouter registers every route. groups may be nil when WhatsApp is disabled.
func NewRouter(activations *ActivationHandler, health *HealthHandler, groups *GroupsHandler, auth *middleware.AuthMiddleware, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", health.CheckHealth)
	mux.HandleFunc("GET /api/v1/health", health.CheckHealth)

	// Protected routes
	mux.HandleFunc("GET /api/v1/services", auth.Authenticate(activations.ListServices))
	mux.HandleFunc("GET /api/v1/countries", auth.Authenticate(activations.ListCountries))
	mux.HandleFunc("GET /api/v1/prices", auth.Authenticate(activations.GetPrices))
	mux.HandleFunc("GET /api/v1/balance", auth.Authenticate(activations.GetBalance))
	mux.HandleFunc("GET /api/v1/activations", auth.Authenticate(activations.ListActivations))
	mux.HandleFunc("POST /api/v1/activations", auth.Authenticate(activations.CreateActivation))
	mux.HandleFunc("GET /api/v1/activations/{id}/status", auth.Authenticate(activations.GetStatus))
	mux.HandleFunc("POST /api/v1/activations/{id}/status", auth.Authenticate(activations.SetStatus))
	if groups != nil {
		mux.HandleFunc("GET /api/v1/notify/groups", auth.Authenticate(groups.ListGroups))
	}

	return middleware.RequestID(log, mux)
}
