package service

import (
	"context"

	"sms-activation-tracker/internal/lifecycle"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/internal/reconciler"
	"sms-activation-tracker/internal/repository"
	"sms-activation-tracker/pkg/logger"
)

// StatusFetcher refreshes the status of one activation
type StatusFetcher func(ctx context.Context, activationID string) (model.ActivationStatus, error)

// ExpirationSweeper drops expired and terminal activations and annotates
// the survivors with their countdown and display state.
type ExpirationSweeper struct {
	store      *repository.ActivationStore
	reconciler *reconciler.Reconciler
	fetch      StatusFetcher
	logger     *logger.Logger
}

// NewExpirationSweeper creates a new sweeper
func NewExpirationSweeper(store *repository.ActivationStore, rec *reconciler.Reconciler, fetch StatusFetcher, log *logger.Logger) *ExpirationSweeper {
	return &ExpirationSweeper{
		store:      store,
		reconciler: rec,
		fetch:      fetch,
		logger:     log,
	}
}

// Sweep returns a fresh list of tracked activations. The input records are
// never modified.
func (s *ExpirationSweeper) Sweep(ctx context.Context, records []model.ActivationRecord) []model.TrackedActivation {
	tracked := make([]model.TrackedActivation, 0, len(records))

	for _, record := range records {
		log := s.logger.WithActivationID(record.ActivationID)

		remaining := s.reconciler.RemainingFor(record)
		if remaining.Expired {
			s.forget(ctx, record.ActivationID)
			log.Info("Activation expired", "clock", remaining.Source)
			continue
		}
		if lifecycle.IsTerminal(record.RawStatus, record.Code()) {
			s.forget(ctx, record.ActivationID)
			log.Info("Activation canceled", "raw_status", record.RawStatus)
			continue
		}

		entry := model.TrackedActivation{
			ActivationRecord: record,
			Remaining:        remaining,
		}

		if s.fetch != nil {
			status, err := s.fetch(ctx, record.ActivationID)
			if err != nil {
				log.Warn("Failed to refresh activation status", "error", err)
				tracked = append(tracked, entry)
				continue
			}
			entry.RawStatus = status.RawStatus
			if status.Code != "" {
				code := status.Code
				entry.SMSCode = &code
			}
			// Terminal after refresh: the timer goes now, the entry is shown
			// as canceled for this tick only.
			if lifecycle.IsTerminal(entry.RawStatus, entry.Code()) {
				s.forget(ctx, record.ActivationID)
				log.Info("Activation canceled", "raw_status", entry.RawStatus)
			}
		}

		state := lifecycle.Classify(entry.RawStatus, entry.Code())
		entry.State = &state
		tracked = append(tracked, entry)
	}

	return tracked
}

func (s *ExpirationSweeper) forget(ctx context.Context, activationID string) {
	if err := s.store.Forget(ctx, activationID); err != nil {
		s.logger.WithActivationID(activationID).Warn("Failed to forget activation timer", "error", err)
	}
}
