package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const timerKeyPrefix = "activation_timer:"

// timerEntry is the persisted value of one activation timer
type timerEntry struct {
	LocalCreatedAt time.Time `json:"localCreatedAt"`
}

// ActivationStore remembers when this process created each activation so
// the trusted clock survives restarts.
type ActivationStore struct {
	kv KV
}

// NewActivationStore creates an ActivationStore on top of kv
func NewActivationStore(kv KV) *ActivationStore {
	return &ActivationStore{kv: kv}
}

func timerKey(activationID string) string {
	return timerKeyPrefix + activationID
}

// RecordCreated persists the trusted creation instant of an activation
func (s *ActivationStore) RecordCreated(ctx context.Context, activationID string, createdAt time.Time) error {
	if activationID == "" {
		return fmt.Errorf("activation id is required")
	}
	value, err := json.Marshal(timerEntry{LocalCreatedAt: createdAt.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal activation timer: %w", err)
	}
	if err := s.kv.Set(ctx, timerKey(activationID), string(value)); err != nil {
		return fmt.Errorf("failed to save activation timer: %w", err)
	}
	return nil
}

// LocalCreatedAt returns the trusted creation instant, or nil when this
// process did not create the activation. A corrupt entry reads as absent.
func (s *ActivationStore) LocalCreatedAt(ctx context.Context, activationID string) (*time.Time, error) {
	raw, ok, err := s.kv.Get(ctx, timerKey(activationID))
	if err != nil {
		return nil, fmt.Errorf("failed to read activation timer: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var entry timerEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.LocalCreatedAt.IsZero() {
		return nil, nil
	}
	createdAt := entry.LocalCreatedAt
	return &createdAt, nil
}

// Forget removes the persisted timer of an activation
func (s *ActivationStore) Forget(ctx context.Context, activationID string) error {
	if err := s.kv.Remove(ctx, timerKey(activationID)); err != nil {
		return fmt.Errorf("failed to remove activation timer: %w", err)
	}
	return nil
}
