package model

import "time"

// Service is one purchasable upstream service
type Service struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Country is one upstream country
type Country struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// PriceEntry is the offer for one service in one country
type PriceEntry struct {
	Cost          float64 `json:"cost"`
	Count         int     `json:"count"`
	PhysicalCount int     `json:"physical_count"`
}

// NormalizedPrice maps country -> service -> offer
type NormalizedPrice map[string]map[string]PriceEntry

// Balance is the account balance
type Balance struct {
	Amount float64 `json:"amount"`
}

// Snapshot is the immutable result of one polling tick
type Snapshot struct {
	Activations []TrackedActivation `json:"activations"`
	Balance     *Balance            `json:"balance,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
	LastError   string              `json:"last_error,omitempty"`
	ErrorKind   string              `json:"error_kind,omitempty"`
}
