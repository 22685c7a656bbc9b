package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sms-activation-tracker/internal/lifecycle"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/internal/reconciler"
	"sms-activation-tracker/internal/repository"
	"sms-activation-tracker/pkg/logger"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func newTestSweeper(now time.Time, fetch StatusFetcher) (*ExpirationSweeper, *repository.ActivationStore) {
	store := repository.NewActivationStore(repository.NewMemoryKV())
	rec := reconciler.New().WithLocation(time.UTC).WithNow(func() time.Time { return now })
	return NewExpirationSweeper(store, rec, fetch, logger.Discard()), store
}

func TestSweepDropsExpiredAndForgetsTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper, store := newTestSweeper(now, nil)

	created := now.Add(-25 * time.Minute)
	if err := store.RecordCreated(ctx, "old", created); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	tracked := sweeper.Sweep(ctx, []model.ActivationRecord{
		{ActivationID: "old", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: timePtr(created)},
		{ActivationID: "fresh", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: timePtr(now.Add(-2 * time.Minute))},
	})

	if len(tracked) != 1 || tracked[0].ActivationID != "fresh" {
		t.Fatalf("expected only the fresh activation, got %+v", tracked)
	}
	if tracked[0].Remaining.Minutes != 18 || tracked[0].Remaining.Seconds != 0 {
		t.Fatalf("unexpected remaining %+v", tracked[0].Remaining)
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "old"); createdAt != nil {
		t.Fatal("expected expired timer to be forgotten")
	}
}

func TestSweepDropsCanceledWithoutCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper, store := newTestSweeper(now, nil)
	created := timePtr(now.Add(-time.Minute))
	if err := store.RecordCreated(ctx, "canceled", *created); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	tracked := sweeper.Sweep(ctx, []model.ActivationRecord{
		{ActivationID: "canceled", RawStatus: model.StatusCanceled, LocalCreatedAt: created},
		{ActivationID: "canceled-with-code", RawStatus: model.StatusCanceled, SMSCode: strPtr("1234"), LocalCreatedAt: created},
	})

	if len(tracked) != 1 || tracked[0].ActivationID != "canceled-with-code" {
		t.Fatalf("expected only the record with a code, got %+v", tracked)
	}
	if tracked[0].State == nil || tracked[0].State.Kind != lifecycle.KindCodeReceived {
		t.Fatalf("expected code received state, got %v", tracked[0].State)
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "canceled"); createdAt != nil {
		t.Fatal("expected canceled timer to be forgotten")
	}
}

func TestSweepRefreshedCancelForgetsTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetch := func(_ context.Context, id string) (model.ActivationStatus, error) {
		return model.ActivationStatus{RawStatus: model.StatusCanceled}, nil
	}
	sweeper, store := newTestSweeper(now, fetch)
	created := now.Add(-3 * time.Minute)
	if err := store.RecordCreated(ctx, "123", created); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	tracked := sweeper.Sweep(ctx, []model.ActivationRecord{
		{ActivationID: "123", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: timePtr(created)},
	})
	if len(tracked) != 1 || tracked[0].State == nil || tracked[0].State.Kind != lifecycle.KindCanceled {
		t.Fatalf("expected one canceled entry for this tick, got %+v", tracked)
	}

	// The provider no longer lists the activation on the next tick.
	if next := sweeper.Sweep(ctx, nil); len(next) != 0 {
		t.Fatalf("expected empty sweep, got %+v", next)
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "123"); createdAt != nil {
		t.Fatal("expected timer to be forgotten once the refreshed status is terminal")
	}
}

func TestSweepRefreshedCancelWithCodeKeepsTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetch := func(_ context.Context, id string) (model.ActivationStatus, error) {
		return model.ActivationStatus{RawStatus: model.StatusCanceled, Code: "5512"}, nil
	}
	sweeper, store := newTestSweeper(now, fetch)
	created := now.Add(-3 * time.Minute)
	if err := store.RecordCreated(ctx, "123", created); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	tracked := sweeper.Sweep(ctx, []model.ActivationRecord{
		{ActivationID: "123", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: timePtr(created)},
	})
	if len(tracked) != 1 || tracked[0].State.Kind != lifecycle.KindCodeReceived {
		t.Fatalf("expected code received entry, got %+v", tracked)
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "123"); createdAt == nil {
		t.Fatal("expected timer to be kept while a code is pending")
	}
}

func TestSweepRefreshesStatusWithoutMutatingInput(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetch := func(_ context.Context, id string) (model.ActivationStatus, error) {
		if id == "broken" {
			return model.ActivationStatus{}, errors.New("timeout")
		}
		return model.ActivationStatus{RawStatus: model.StatusCodeReceived, Code: "4821"}, nil
	}
	sweeper, _ := newTestSweeper(now, fetch)
	created := timePtr(now.Add(-time.Minute))

	records := []model.ActivationRecord{
		{ActivationID: "ok", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: created},
		{ActivationID: "broken", RawStatus: model.StatusWaitingForSMS, LocalCreatedAt: created},
	}
	tracked := sweeper.Sweep(ctx, records)

	if len(tracked) != 2 {
		t.Fatalf("expected both records to survive, got %d", len(tracked))
	}
	if tracked[0].Code() != "4821" || tracked[0].State.Kind != lifecycle.KindCodeReceived {
		t.Fatalf("expected refreshed code, got %+v", tracked[0])
	}
	if tracked[1].State != nil {
		t.Fatalf("expected nil state after failed refresh, got %v", tracked[1].State)
	}
	if records[0].SMSCode != nil || records[0].RawStatus != model.StatusWaitingForSMS {
		t.Fatal("expected input record to be left untouched")
	}
}

func TestSweepUsesServerClockWhenNoLocalTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper, _ := newTestSweeper(now, nil)

	tracked := sweeper.Sweep(ctx, []model.ActivationRecord{
		{ActivationID: "a", RawStatus: model.StatusWaitingForSMS, ServerCreatedAt: "2024-03-01 11:55:00"},
		{ActivationID: "b", RawStatus: model.StatusWaitingForSMS, ServerCreatedAt: "not a time"},
	})

	if len(tracked) != 1 || tracked[0].ActivationID != "a" {
		t.Fatalf("expected unparsable record to be dropped, got %+v", tracked)
	}
	if tracked[0].Remaining.Minutes != 15 || tracked[0].Remaining.Source != reconciler.SourceServerLocal {
		t.Fatalf("unexpected remaining %+v", tracked[0].Remaining)
	}
}
