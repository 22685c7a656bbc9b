package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/config"
	"sms-activation-tracker/internal/lifecycle"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/pkg/logger"
)

// CodeNotifier is told about every newly received SMS code
type CodeNotifier interface {
	NotifyCode(ctx context.Context, activation model.TrackedActivation) error
}

// Poller refreshes the activation snapshot and the balance on two tickers
type Poller struct {
	activations     *ActivationService
	sweeper         *ExpirationSweeper
	notifier        CodeNotifier
	statusInterval  time.Duration
	balanceInterval time.Duration
	logger          *logger.Logger
	nowFunc         func() time.Time

	snapshot atomic.Pointer[model.Snapshot]

	mu       sync.Mutex
	notified map[string]struct{}
}

// NewPoller creates a new poller. notifier may be nil.
func NewPoller(activations *ActivationService, sweeper *ExpirationSweeper, notifier CodeNotifier, cfg *config.PollingConfig, log *logger.Logger) *Poller {
	p := &Poller{
		activations:     activations,
		sweeper:         sweeper,
		notifier:        notifier,
		statusInterval:  cfg.StatusInterval,
		balanceInterval: cfg.BalanceInterval,
		logger:          log,
		nowFunc:         time.Now,
		notified:        make(map[string]struct{}),
	}
	p.snapshot.Store(&model.Snapshot{Activations: []model.TrackedActivation{}})
	return p
}

// Snapshot returns the latest published snapshot. Callers must not modify it.
func (p *Poller) Snapshot() *model.Snapshot {
	return p.snapshot.Load()
}

// Run ticks until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	statusTicker := time.NewTicker(p.statusInterval)
	defer statusTicker.Stop()
	balanceTicker := time.NewTicker(p.balanceInterval)
	defer balanceTicker.Stop()

	p.logger.Info("Poller started",
		"status_interval", p.statusInterval.String(),
		"balance_interval", p.balanceInterval.String(),
	)

	p.runBalanceTick(ctx)
	p.runStatusTick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-statusTicker.C:
			p.runStatusTick(ctx)
		case <-balanceTicker.C:
			p.runBalanceTick(ctx)
		}
	}
}

func (p *Poller) runStatusTick(ctx context.Context) {
	if err := p.StatusTick(ctx); err != nil && ctx.Err() == nil {
		p.logger.WithError(err).Warn("Status tick failed", "kind", string(apierr.KindOf(err)))
	}
}

func (p *Poller) runBalanceTick(ctx context.Context) {
	if err := p.BalanceTick(ctx); err != nil && ctx.Err() == nil {
		p.logger.WithError(err).Warn("Balance tick failed", "kind", string(apierr.KindOf(err)))
	}
}

// StatusTick lists active activations, sweeps them and publishes a new
// snapshot. On failure the previous activations stay published.
func (p *Poller) StatusTick(ctx context.Context) error {
	records, err := p.activations.ListActiveActivations(ctx)
	if err != nil {
		p.publish(func(next *model.Snapshot) {
			next.LastError = apierr.Message(err)
			next.ErrorKind = string(apierr.KindOf(err))
		})
		return err
	}

	tracked := p.sweeper.Sweep(ctx, records)
	p.publish(func(next *model.Snapshot) {
		next.Activations = tracked
		next.UpdatedAt = p.nowFunc()
		next.LastError = ""
		next.ErrorKind = ""
	})

	p.notifyNewCodes(ctx, tracked)
	return nil
}

// BalanceTick refreshes the balance of the published snapshot
func (p *Poller) BalanceTick(ctx context.Context) error {
	balance, err := p.activations.GetBalance(ctx)
	if err != nil {
		return err
	}
	p.publish(func(next *model.Snapshot) {
		next.Balance = &balance
	})
	return nil
}

// publish copies the current snapshot, applies mutate to the copy and swaps it in
func (p *Poller) publish(mutate func(next *model.Snapshot)) {
	for {
		current := p.snapshot.Load()
		next := *current
		mutate(&next)
		if p.snapshot.CompareAndSwap(current, &next) {
			return
		}
	}
}

func (p *Poller) notifyNewCodes(ctx context.Context, tracked []model.TrackedActivation) {
	p.mu.Lock()
	seen := make(map[string]struct{}, len(tracked))
	var fresh []model.TrackedActivation
	for _, activation := range tracked {
		seen[activation.ActivationID] = struct{}{}
		if activation.State == nil || activation.State.Kind != lifecycle.KindCodeReceived {
			continue
		}
		if _, done := p.notified[activation.ActivationID]; done {
			continue
		}
		p.notified[activation.ActivationID] = struct{}{}
		fresh = append(fresh, activation)
	}
	for id := range p.notified {
		if _, ok := seen[id]; !ok {
			delete(p.notified, id)
		}
	}
	p.mu.Unlock()

	for _, activation := range fresh {
		log := p.logger.WithActivationID(activation.ActivationID)
		log.Info("SMS code received", "service", activation.ServiceCode)
		if p.notifier == nil {
			continue
		}
		if err := p.notifier.NotifyCode(ctx, activation); err != nil {
			log.WithError(err).Error("Failed to send code notification")
		}
	}
}
