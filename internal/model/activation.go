package model

import (
	"time"

	"sms-activation-tracker/internal/lifecycle"
)

// Raw upstream activation status codes
const (
	StatusWaitingForSMS = 1
	StatusRetrying      = 3
	StatusCodeReceived  = 4
	StatusCompleted     = 6
	StatusCanceled      = 8
)

// Lifetime is the provider-imposed total lifetime of an activation
const Lifetime = 20 * time.Minute

// Default values for fields missing from upstream rows
const (
	DefaultCurrency = "840"
	DefaultDiscount = "0.00"
)

// ActivationRecord represents one purchased phone number
type ActivationRecord struct {
	ActivationID     string     `json:"activation_id"`
	ServiceCode      string     `json:"service_code"`
	CountryCode      string     `json:"country_code"`
	PhoneNumber      string     `json:"phone_number"`
	Cost             float64    `json:"cost"`
	Currency         string     `json:"currency"`
	Discount         string     `json:"discount"`
	RawStatus        int        `json:"raw_status"`
	SMSCode          *string    `json:"sms_code,omitempty"`
	SMSText          *string    `json:"sms_text,omitempty"`
	ServerCreatedAt  string     `json:"server_created_at"`
	LocalCreatedAt   *time.Time `json:"local_created_at,omitempty"`
	CanGetAnotherSMS bool       `json:"can_get_another_sms"`
}

// Code returns the raw SMS code or an empty string
func (r ActivationRecord) Code() string {
	if r.SMSCode == nil {
		return ""
	}
	return *r.SMSCode
}

// CreatedActivation is the result of a successful purchase
type CreatedActivation struct {
	ActivationID     string  `json:"activation_id"`
	PhoneNumber      string  `json:"phone_number"`
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`
	CountryCode      string  `json:"country_code"`
	ActivationTime   string  `json:"activation_time,omitempty"`
	CanGetAnotherSMS bool    `json:"can_get_another_sms"`
}

// ActivationStatus is the normalized answer of a status query
type ActivationStatus struct {
	Raw       string `json:"raw"`
	RawStatus int    `json:"raw_status"`
	Code      string `json:"code,omitempty"`
}

// Remaining is the countdown of an activation relative to its lifetime
type Remaining struct {
	Minutes  int           `json:"minutes"`
	Seconds  int           `json:"seconds"`
	Expired  bool          `json:"expired"`
	Duration time.Duration `json:"-"`
	Source   string        `json:"source"`
}

// TrackedActivation is a surviving record annotated for display.
// State is nil when the status refresh failed on this tick.
type TrackedActivation struct {
	ActivationRecord
	Remaining Remaining        `json:"remaining"`
	State     *lifecycle.State `json:"state"`
}
