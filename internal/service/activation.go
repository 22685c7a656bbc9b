package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/internal/normalizer"
	"sms-activation-tracker/internal/repository"
	"sms-activation-tracker/internal/upstream"
	"sms-activation-tracker/pkg/logger"
)

// ActivationService exposes typed accessors over the upstream API
type ActivationService struct {
	caller   upstream.Caller
	store    *repository.ActivationStore
	validate *validator.Validate
	logger   *logger.Logger
	nowFunc  func() time.Time
}

// NewActivationService creates a new activation service
func NewActivationService(caller upstream.Caller, store *repository.ActivationStore, log *logger.Logger) *ActivationService {
	return &ActivationService{
		caller:   caller,
		store:    store,
		validate: validator.New(),
		logger:   log,
		nowFunc:  time.Now,
	}
}

// WithNow replaces the clock used to stamp new activations
func (s *ActivationService) WithNow(now func() time.Time) *ActivationService {
	if now != nil {
		s.nowFunc = now
	}
	return s
}

// ListServices returns the service catalogue
func (s *ActivationService) ListServices(ctx context.Context) ([]model.Service, error) {
	raw, err := s.caller.Call(ctx, upstream.ActionGetServices, nil)
	if err != nil {
		return nil, err
	}
	return normalizer.Services(raw)
}

// ListCountries returns the country list
func (s *ActivationService) ListCountries(ctx context.Context) ([]model.Country, error) {
	raw, err := s.caller.Call(ctx, upstream.ActionGetCountries, nil)
	if err != nil {
		return nil, err
	}
	return normalizer.Countries(raw)
}

// GetPrices returns the price table, optionally narrowed to one service
// and/or one country. The filters are also applied locally since the
// provider may ignore them.
func (s *ActivationService) GetPrices(ctx context.Context, service, country string) (model.NormalizedPrice, error) {
	params := url.Values{}
	if service != "" {
		params.Set("service", service)
	}
	if country != "" {
		params.Set("country", country)
	}

	raw, err := s.caller.Call(ctx, upstream.ActionGetPrices, params)
	if err != nil {
		return nil, err
	}
	prices, err := normalizer.Prices(raw)
	if err != nil {
		return nil, err
	}
	return filterPrices(prices, service, country), nil
}

func filterPrices(prices model.NormalizedPrice, service, country string) model.NormalizedPrice {
	if service == "" && country == "" {
		return prices
	}

	filtered := make(model.NormalizedPrice)
	for countryCode, offers := range prices {
		if country != "" && countryCode != country {
			continue
		}
		kept := make(map[string]model.PriceEntry)
		for serviceCode, offer := range offers {
			if service != "" && serviceCode != service {
				continue
			}
			kept[serviceCode] = offer
		}
		if len(kept) > 0 {
			filtered[countryCode] = kept
		}
	}
	return filtered
}

// CreateActivation buys a number and records the trusted creation instant
func (s *ActivationService) CreateActivation(ctx context.Context, req model.CreateActivationRequest) (model.CreatedActivation, error) {
	req.Service = strings.TrimSpace(req.Service)
	req.Country = strings.TrimSpace(req.Country)
	if err := s.check(req); err != nil {
		return model.CreatedActivation{}, err
	}

	params := url.Values{}
	params.Set("service", req.Service)
	params.Set("country", req.Country)
	if req.MaxPrice != nil {
		params.Set("maxPrice", strconv.FormatFloat(*req.MaxPrice, 'f', -1, 64))
	}

	raw, err := s.caller.Call(ctx, upstream.ActionGetNumber, params)
	if err != nil {
		return model.CreatedActivation{}, err
	}
	created, err := normalizer.CreatedActivation(raw)
	if err != nil {
		return model.CreatedActivation{}, err
	}
	if created.CountryCode == "" {
		created.CountryCode = req.Country
	}

	if err := s.store.RecordCreated(ctx, created.ActivationID, s.nowFunc()); err != nil {
		// The number is already bought; fall back to the server clock for it.
		s.logger.WithActivationID(created.ActivationID).Error("Failed to record activation timer", "error", err)
	}

	s.logger.WithActivationID(created.ActivationID).Info("Activation created",
		"service", req.Service,
		"country", created.CountryCode,
		"cost", created.Cost,
	)
	return created, nil
}

// ListActiveActivations returns the provider's active activations, each
// carrying the local creation instant when this process created it.
func (s *ActivationService) ListActiveActivations(ctx context.Context) ([]model.ActivationRecord, error) {
	raw, err := s.caller.Call(ctx, upstream.ActionGetActiveActivations, nil)
	if err != nil {
		return nil, err
	}
	records, err := normalizer.ActiveActivations(raw)
	if err != nil {
		return nil, err
	}

	for i := range records {
		createdAt, err := s.store.LocalCreatedAt(ctx, records[i].ActivationID)
		if err != nil {
			s.logger.WithActivationID(records[i].ActivationID).Warn("Failed to read activation timer", "error", err)
			continue
		}
		records[i].LocalCreatedAt = createdAt
	}
	return records, nil
}

// GetActivationStatus queries the status of one activation
func (s *ActivationService) GetActivationStatus(ctx context.Context, activationID string) (model.ActivationStatus, error) {
	activationID = strings.TrimSpace(activationID)
	if activationID == "" {
		return model.ActivationStatus{}, apierr.Validation("activation id is required", map[string]any{"id": "required"})
	}

	params := url.Values{}
	params.Set("id", activationID)
	raw, err := s.caller.Call(ctx, upstream.ActionGetStatus, params)
	if err != nil {
		return model.ActivationStatus{}, err
	}
	return normalizer.Status(raw)
}

// SetActivationStatus changes the status of one activation. Only 1, 3, 6
// and 8 are accepted; anything else fails before any upstream call.
func (s *ActivationService) SetActivationStatus(ctx context.Context, activationID string, status int) (string, error) {
	req := model.SetStatusRequest{ActivationID: strings.TrimSpace(activationID), Status: status}
	if err := s.check(req); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("id", req.ActivationID)
	params.Set("status", strconv.Itoa(req.Status))
	raw, err := s.caller.Call(ctx, upstream.ActionSetStatus, params)
	if err != nil {
		return "", err
	}
	result, err := normalizer.SetStatus(raw)
	if err != nil {
		return "", err
	}

	// Canceled and completed activations leave the provider's active list.
	if req.Status == model.StatusCanceled || req.Status == model.StatusCompleted {
		if err := s.store.Forget(ctx, req.ActivationID); err != nil {
			s.logger.WithActivationID(req.ActivationID).Warn("Failed to forget activation timer", "error", err)
		}
	}

	s.logger.WithActivationID(req.ActivationID).Info("Activation status changed",
		"status", req.Status,
		"result", result,
	)
	return result, nil
}

// GetBalance returns the account balance
func (s *ActivationService) GetBalance(ctx context.Context) (model.Balance, error) {
	raw, err := s.caller.Call(ctx, upstream.ActionGetBalance, nil)
	if err != nil {
		return model.Balance{}, err
	}
	return normalizer.Balance(raw)
}

// check runs struct validation and converts failures to validation errors
func (s *ActivationService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
		messages = append(messages, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return apierr.Validation("invalid request: "+strings.Join(messages, ", "), fields)
}
