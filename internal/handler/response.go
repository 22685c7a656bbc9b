package handler

import (
	"encoding/json"
	"net/http"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/middleware"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/pkg/logger"
)

// sendSuccessResponse sends success response
func sendSuccessResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := model.APIResponse{
		Status:    "success",
		Message:   message,
		Data:      data,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}

	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse maps err onto a status code and error body
func sendErrorResponse(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	statusCode := apierr.HTTPStatus(err)
	code := string(apierr.KindOf(err))
	message := apierr.Message(err)
	if code == "" {
		code = "ERR_INTERNAL_SERVER"
		message = "internal server error"
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	if statusCode >= http.StatusInternalServerError {
		log.WithRequestID(requestID).Error("Request failed", "error", err, "path", r.URL.Path)
	} else {
		log.WithRequestID(requestID).Warn("Request rejected", "error", err, "path", r.URL.Path)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:     code,
			Message:  message,
			Upstream: apierr.UpstreamText(err),
			Fields:   apierr.Fields(err),
		},
		RequestID: requestID,
	}

	json.NewEncoder(w).Encode(response)
}
