package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/internal/service"
	"sms-activation-tracker/pkg/logger"
)

const maxBodyBytes = 1 << 16

// ActivationHandler exposes the activation service and the poller snapshot
type ActivationHandler struct {
	activationService *service.ActivationService
	poller            *service.Poller
	logger            *logger.Logger
}

// NewActivationHandler creates a new activation handler
func NewActivationHandler(activationService *service.ActivationService, poller *service.Poller, log *logger.Logger) *ActivationHandler {
	return &ActivationHandler{
		activationService: activationService,
		poller:            poller,
		logger:            log,
	}
}

// ListServices handles GET /api/v1/services
func (h *ActivationHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.activationService.ListServices(r.Context())
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Services retrieved successfully", services)
}

// ListCountries handles GET /api/v1/countries
func (h *ActivationHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.activationService.ListCountries(r.Context())
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Countries retrieved successfully", countries)
}

// GetPrices handles GET /api/v1/prices?service=&country=
func (h *ActivationHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	prices, err := h.activationService.GetPrices(r.Context(),
		strings.TrimSpace(query.Get("service")),
		strings.TrimSpace(query.Get("country")),
	)
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Prices retrieved successfully", prices)
}

// CreateActivation handles POST /api/v1/activations
func (h *ActivationHandler) CreateActivation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateActivationRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}

	created, err := h.activationService.CreateActivation(r.Context(), req)
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusCreated, "Activation created successfully", created)
}

// ListActivations handles GET /api/v1/activations
func (h *ActivationHandler) ListActivations(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, r, http.StatusOK, "Activations retrieved successfully", h.poller.Snapshot())
}

// GetStatus handles GET /api/v1/activations/{id}/status
func (h *ActivationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.activationService.GetActivationStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Status retrieved successfully", status)
}

// setStatusBody is the body of POST /api/v1/activations/{id}/status
type setStatusBody struct {
	Status int `json:"status"`
}

// SetStatus handles POST /api/v1/activations/{id}/status
func (h *ActivationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body setStatusBody
	if err := decodeBody(w, r, &body); err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.activationService.SetActivationStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Status updated successfully", map[string]string{
		"activation_id": r.PathValue("id"),
		"result":        result,
	})
}

// GetBalance handles GET /api/v1/balance
func (h *ActivationHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.activationService.GetBalance(r.Context())
	if err != nil {
		sendErrorResponse(w, r, h.logger, err)
		return
	}
	sendSuccessResponse(w, r, http.StatusOK, "Balance retrieved successfully", balance)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return apierr.Validation("invalid JSON body", map[string]any{"body": err.Error()})
	}
	return nil
}
