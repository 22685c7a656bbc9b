// Package reconciler computes how much of an activation's fixed lifetime is
// left, choosing between a trusted local creation instant and an untrusted,
// possibly timezone-ambiguous server timestamp.
package reconciler

import (
	"strings"
	"time"

	"sms-activation-tracker/internal/model"
)

// Heuristic thresholds observed against the provider. They are empirical and
// kept as named constants rather than derived.
const (
	// Local interpretation is implausible when more than 5 minutes in the future.
	localFutureLimit = -300000 * time.Millisecond
	// Any interpretation older than 25 minutes is implausible.
	pastLimit = 1500000 * time.Millisecond
	// UTC re-interpretation is accepted down to 60 seconds in the future.
	utcFutureLimit = -60000 * time.Millisecond
	// Final interpretation further in the future than this counts as expired.
	futureRejectLimit = -60000 * time.Millisecond
	// Grace buffer before a record is declared expired.
	expiryGrace = -5000 * time.Millisecond
)

// Sources reported on model.Remaining
const (
	SourceLocal       = "local"
	SourceServerLocal = "server_local"
	SourceServerUTC   = "server_utc"
	SourceInvalid     = "invalid"
)

var serverLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
}

// AuthoritativeClock is the ground truth for a record's age: either a
// trusted local instant or a raw server string resolved heuristically.
type AuthoritativeClock interface {
	authoritativeClock()
}

// LocalClock is the instant this process initiated the purchase.
type LocalClock struct {
	CreatedAt time.Time
}

// ServerHeuristicClock is the raw upstream timestamp.
type ServerHeuristicClock struct {
	Raw string
}

func (LocalClock) authoritativeClock()           {}
func (ServerHeuristicClock) authoritativeClock() {}

// ResolveClock picks the authoritative clock for a record once.
func ResolveClock(localCreatedAt *time.Time, serverCreatedAt string) AuthoritativeClock {
	if localCreatedAt != nil && !localCreatedAt.IsZero() {
		return LocalClock{CreatedAt: *localCreatedAt}
	}
	return ServerHeuristicClock{Raw: serverCreatedAt}
}

// ClockFor resolves the clock of a record.
func ClockFor(record model.ActivationRecord) AuthoritativeClock {
	return ResolveClock(record.LocalCreatedAt, record.ServerCreatedAt)
}

// Reconciler computes remaining lifetime. It never fails.
type Reconciler struct {
	lifetime time.Duration
	location *time.Location
	nowFunc  func() time.Time
}

// New creates a Reconciler using the local time zone and wall clock.
func New() *Reconciler {
	return &Reconciler{
		lifetime: model.Lifetime,
		location: time.Local,
		nowFunc:  time.Now,
	}
}

// WithLocation sets the zone used for the local interpretation of server timestamps.
func (r *Reconciler) WithLocation(loc *time.Location) *Reconciler {
	if loc != nil {
		r.location = loc
	}
	return r
}

// WithNow replaces the wall clock.
func (r *Reconciler) WithNow(now func() time.Time) *Reconciler {
	if now != nil {
		r.nowFunc = now
	}
	return r
}

// Remaining computes the countdown for the given clock.
func (r *Reconciler) Remaining(clock AuthoritativeClock) model.Remaining {
	now := r.nowFunc()

	switch c := clock.(type) {
	case LocalClock:
		return r.countdown(now.Sub(c.CreatedAt), SourceLocal)
	case ServerHeuristicClock:
		elapsed, source, ok := r.serverElapsed(c.Raw, now)
		if !ok {
			return expired(SourceInvalid)
		}
		if elapsed < futureRejectLimit {
			return expired(source)
		}
		return r.countdown(elapsed, source)
	default:
		return expired(SourceInvalid)
	}
}

// RemainingFor resolves the record's clock and computes its countdown.
func (r *Reconciler) RemainingFor(record model.ActivationRecord) model.Remaining {
	return r.Remaining(ClockFor(record))
}

// serverElapsed disambiguates the server timestamp. It parses as local wall
// clock first and falls back to UTC only when that yields a plausible age.
func (r *Reconciler) serverElapsed(raw string, now time.Time) (time.Duration, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, SourceInvalid, false
	}

	local, ok := parseIn(raw, r.location)
	if !ok {
		return 0, SourceInvalid, false
	}
	elapsed := now.Sub(local)

	if elapsed < localFutureLimit || elapsed > pastLimit {
		if utc, ok := parseIn(raw, time.UTC); ok {
			utcElapsed := now.Sub(utc)
			if utcElapsed >= utcFutureLimit && utcElapsed <= pastLimit {
				return utcElapsed, SourceServerUTC, true
			}
		}
	}

	return elapsed, SourceServerLocal, true
}

func (r *Reconciler) countdown(elapsed time.Duration, source string) model.Remaining {
	remaining := r.lifetime - elapsed

	if remaining <= expiryGrace {
		return model.Remaining{Expired: true, Duration: remaining, Source: source}
	}
	if remaining <= 0 {
		return model.Remaining{Duration: remaining, Source: source}
	}

	// The lifetime never exceeds its own total.
	display := remaining
	if display > r.lifetime {
		display = r.lifetime
	}

	return model.Remaining{
		Minutes:  int(display / time.Minute),
		Seconds:  int((display % time.Minute) / time.Second),
		Duration: remaining,
		Source:   source,
	}
}

func expired(source string) model.Remaining {
	return model.Remaining{Expired: true, Source: source}
}

// parseIn parses raw in loc. Layouts carrying an offset ignore loc.
func parseIn(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range serverLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
