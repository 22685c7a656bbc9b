package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"sms-activation-tracker/internal/config"
	"sms-activation-tracker/internal/service"
	"sms-activation-tracker/pkg/logger"
)

// ConnectionReporter describes the notifier connection
type ConnectionReporter interface {
	GetConnectionStatus() map[string]interface{}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	poller    *service.Poller
	notifier  ConnectionReporter
	config    *config.Config
	logger    *logger.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. notifier may be nil.
func NewHealthHandler(poller *service.Poller, notifier ConnectionReporter, cfg *config.Config, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		poller:    poller,
		notifier:  notifier,
		config:    cfg,
		logger:    log,
		startTime: time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.poller.Snapshot()

	poller := map[string]interface{}{
		"tracked_activations": len(snapshot.Activations),
	}
	if !snapshot.UpdatedAt.IsZero() {
		poller["updated_at"] = snapshot.UpdatedAt.Format(time.RFC3339)
	}
	if snapshot.LastError != "" {
		poller["last_error"] = snapshot.LastError
		poller["error_kind"] = snapshot.ErrorKind
	}

	whatsapp := map[string]interface{}{"enabled": false}
	if h.notifier != nil {
		whatsapp = h.notifier.GetConnectionStatus()
		whatsapp["enabled"] = true
	}

	status := "healthy"
	if snapshot.LastError != "" {
		status = "degraded"
	}

	response := map[string]interface{}{
		"status": status,
		"upstream": map[string]interface{}{
			"url":            h.config.Upstream.BaseURL,
			"key_configured": h.config.Upstream.APIKey != "",
		},
		"poller":    poller,
		"whatsapp":  whatsapp,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
