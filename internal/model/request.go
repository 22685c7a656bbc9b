package model

// CreateActivationRequest represents a purchase request
type CreateActivationRequest struct {
	Service  string   `json:"service" validate:"required,max=64"`
	Country  string   `json:"country" validate:"required,numeric"`
	MaxPrice *float64 `json:"maxPrice,omitempty" validate:"omitempty,gt=0"`
}

// SetStatusRequest represents a status change request
type SetStatusRequest struct {
	ActivationID string `json:"-" validate:"required"`
	Status       int    `json:"status" validate:"oneof=1 3 6 8"`
}

// APIResponse represents the API response envelope
type APIResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError represents error details in the response
type APIError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Upstream string         `json:"upstream,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}
