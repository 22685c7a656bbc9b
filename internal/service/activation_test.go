package service

import (
	"context"
	"testing"
	"time"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/internal/upstream"
)

func TestSetActivationStatusRejectsUnknownStatus(t *testing.T) {
	caller := newFakeCaller()
	svc, _ := newTestService(caller)

	for _, status := range []int{0, 2, 4, 5, 7, 9} {
		_, err := svc.SetActivationStatus(context.Background(), "123", status)
		if !apierr.Is(err, apierr.KindValidation) {
			t.Fatalf("status %d: expected validation error, got %v", status, err)
		}
	}
	if caller.count(upstream.ActionSetStatus) != 0 {
		t.Fatal("expected no upstream call for invalid status")
	}
}

func TestCancelForgetsTimer(t *testing.T) {
	ctx := context.Background()
	caller := newFakeCaller().on(upstream.ActionSetStatus, "ACCESS_CANCEL")
	svc, store := newTestService(caller)

	if err := store.RecordCreated(ctx, "123", time.Now()); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	result, err := svc.SetActivationStatus(ctx, "123", model.StatusCanceled)
	if err != nil {
		t.Fatalf("SetActivationStatus failed: %v", err)
	}
	if result != "ACCESS_CANCEL" {
		t.Fatalf("unexpected result %q", result)
	}

	params := caller.last(upstream.ActionSetStatus)
	if params.Get("id") != "123" || params.Get("status") != "8" {
		t.Fatalf("unexpected params %v", params)
	}

	createdAt, err := store.LocalCreatedAt(ctx, "123")
	if err != nil {
		t.Fatalf("LocalCreatedAt failed: %v", err)
	}
	if createdAt != nil {
		t.Fatal("expected timer to be forgotten after cancel")
	}
}

func TestCompleteForgetsTimer(t *testing.T) {
	ctx := context.Background()
	caller := newFakeCaller().on(upstream.ActionSetStatus, "ACCESS_ACTIVATION")
	svc, store := newTestService(caller)

	for _, id := range []string{"done", "retry"} {
		if err := store.RecordCreated(ctx, id, time.Now()); err != nil {
			t.Fatalf("RecordCreated failed: %v", err)
		}
	}

	if _, err := svc.SetActivationStatus(ctx, "done", model.StatusCompleted); err != nil {
		t.Fatalf("SetActivationStatus failed: %v", err)
	}
	if _, err := svc.SetActivationStatus(ctx, "retry", model.StatusRetrying); err != nil {
		t.Fatalf("SetActivationStatus failed: %v", err)
	}

	if createdAt, _ := store.LocalCreatedAt(ctx, "done"); createdAt != nil {
		t.Fatal("expected timer to be forgotten after completion")
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "retry"); createdAt == nil {
		t.Fatal("expected timer to survive a retry request")
	}
}

func TestEarlyCancelKeepsTimer(t *testing.T) {
	ctx := context.Background()
	caller := newFakeCaller().on(upstream.ActionSetStatus, "EARLY_CANCEL_DENIED")
	svc, store := newTestService(caller)

	if err := store.RecordCreated(ctx, "123", time.Now()); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	_, err := svc.SetActivationStatus(ctx, "123", model.StatusCanceled)
	if !apierr.Is(err, apierr.KindUpstreamReported) {
		t.Fatalf("expected upstream reported error, got %v", err)
	}
	if createdAt, _ := store.LocalCreatedAt(ctx, "123"); createdAt == nil {
		t.Fatal("expected timer to survive a rejected cancel")
	}
}

func TestCreateActivationRecordsLocalClock(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	caller := newFakeCaller().
		on(upstream.ActionGetNumber, "ACCESS_NUMBER:555:79990001122").
		on(upstream.ActionGetActiveActivations, `[{"activationId":"555","phoneNumber":"79990001122","activationStatus":"1"}]`)
	svc, _ := newTestService(caller)
	svc.WithNow(func() time.Time { return created })

	maxPrice := 12.5
	activation, err := svc.CreateActivation(ctx, model.CreateActivationRequest{Service: "tg", Country: "0", MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("CreateActivation failed: %v", err)
	}
	if activation.ActivationID != "555" || activation.CountryCode != "0" {
		t.Fatalf("unexpected activation %+v", activation)
	}

	params := caller.last(upstream.ActionGetNumber)
	if params.Get("service") != "tg" || params.Get("country") != "0" || params.Get("maxPrice") != "12.5" {
		t.Fatalf("unexpected params %v", params)
	}

	records, err := svc.ListActiveActivations(ctx)
	if err != nil {
		t.Fatalf("ListActiveActivations failed: %v", err)
	}
	if len(records) != 1 || records[0].LocalCreatedAt == nil {
		t.Fatalf("expected local creation instant, got %+v", records)
	}
	if !records[0].LocalCreatedAt.Equal(created) {
		t.Fatalf("expected %v, got %v", created, *records[0].LocalCreatedAt)
	}
}

func TestCreateActivationValidatesBeforeCalling(t *testing.T) {
	caller := newFakeCaller()
	svc, _ := newTestService(caller)

	_, err := svc.CreateActivation(context.Background(), model.CreateActivationRequest{Service: "tg"})
	if !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if caller.count(upstream.ActionGetNumber) != 0 {
		t.Fatal("expected no upstream call")
	}
}

func TestGetPricesFiltersLocally(t *testing.T) {
	caller := newFakeCaller().on(upstream.ActionGetPrices,
		`{"0":{"tg":{"cost":10,"count":5},"wa":{"cost":20,"count":1}},"6":{"tg":{"cost":7,"count":2}}}`)
	svc, _ := newTestService(caller)

	prices, err := svc.GetPrices(context.Background(), "tg", "")
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected 2 countries, got %d", len(prices))
	}
	if _, ok := prices["0"]["wa"]; ok {
		t.Fatal("expected wa to be filtered out")
	}

	prices, err = svc.GetPrices(context.Background(), "", "6")
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if len(prices) != 1 || prices["6"]["tg"].Cost != 7 {
		t.Fatalf("unexpected country filter result %+v", prices)
	}
}

func TestAuthErrorPropagates(t *testing.T) {
	caller := newFakeCaller().on(upstream.ActionGetBalance, "BAD_KEY")
	svc, _ := newTestService(caller)

	_, err := svc.GetBalance(context.Background())
	if !apierr.Is(err, apierr.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
