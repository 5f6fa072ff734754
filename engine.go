package editlock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Engine decides who may write to a document version. It keeps no lease
// state between calls; every decision re-reads the Store.
type Engine struct {
	store   Store
	options options
	metrics *leaseMetrics
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		store:   store,
		options: options,
		metrics: newLeaseMetrics(options.meterProvider, options.logger),
	}
}

// SweepInterval returns the configured sweep period.
func (e *Engine) SweepInterval() time.Duration {
	return e.options.sweepInterval
}

// Acquire claims, renews or joins the lease on target for holder.
//
// Contention is not an error: a locked target returns OK=false with
// Outcome=OutcomeLocked and the conflicting lease in Holder, ExpiresAt and
// LeaseKey. The returned error is non-nil only for invalid input or a store
// failure (ErrUnavailable).
func (e *Engine) Acquire(ctx context.Context, target Target, holder string, ttl time.Duration, coEditing bool) (AcquireResult, error) {
	var start = time.Now()

	if err := validateHolder(target, holder); err != nil {
		return AcquireResult{}, err
	}
	ttl, err := e.resolveTTL(ttl)
	if err != nil {
		return AcquireResult{}, err
	}

	var result AcquireResult
	err = e.store.Update(ctx, target, func(tx Tx) error {
		leases, err := tx.List(ctx)
		if err != nil {
			return err
		}

		var (
			now       = e.now()
			expiresAt = now.Add(ttl).Truncate(time.Microsecond)
			live      = liveLeases(leases, now)
		)

		if own, ok := findHolder(live, holder); ok {
			var err = tx.SetExpiry(ctx, own.LeaseKey, expiresAt)
			switch {
			case err == nil:
				result = AcquireResult{
					OK:        true,
					Outcome:   OutcomeRenewed,
					LeaseKey:  own.LeaseKey,
					SessionID: own.SessionID,
					Holder:    holder,
					ExpiresAt: expiresAt,
					Message:   "lease renewed",
				}
				return nil
			case !errors.Is(err, ErrNotFound):
				return err
			}
			// Released after List; admit as a new request.
			live = removeWhere(live, func(l Lease) bool { return l.LeaseKey == own.LeaseKey })
		}

		var lease = Lease{
			Target:    target,
			LeaseKey:  newLeaseKey(),
			Holder:    holder,
			CoEditing: coEditing,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}

		switch {
		case len(live) == 0:
			lease.SessionID = newSessionID(coEditing)
			result = AcquireResult{Outcome: OutcomeAcquired, Message: "edit lock created"}
			if coEditing {
				result.Message = "co-editing session created"
			}

		case live[0].CoEditing && coEditing:
			lease.SessionID = live[0].SessionID
			result = AcquireResult{
				Outcome: OutcomeJoined,
				Message: fmt.Sprintf("joined co-editing session with %s", live[0].Holder),
			}

		default:
			var current = live[0]
			result = AcquireResult{
				Outcome:   OutcomeLocked,
				LeaseKey:  current.LeaseKey,
				SessionID: current.SessionID,
				Holder:    current.Holder,
				ExpiresAt: current.ExpiresAt,
				Message:   fmt.Sprintf("document version is being edited by %s", current.Holder),
			}
			return nil
		}

		// Expired rows may still carry this holder; clear them before insert.
		if len(live) != len(leases) {
			if _, err := tx.DeleteExpired(ctx, now); err != nil {
				return err
			}
		}
		if err := tx.Insert(ctx, lease); err != nil {
			return err
		}

		result.OK = true
		result.LeaseKey = lease.LeaseKey
		result.SessionID = lease.SessionID
		result.Holder = holder
		result.ExpiresAt = lease.ExpiresAt
		return nil
	})
	if err != nil {
		err = unavailable("acquire lease", err)
		e.metrics.recordAcquire(ctx, "", time.Since(start), err)
		e.options.logger.Error("Failed to acquire lease",
			"target", target.String(),
			"holder", holder,
			"error", err)
		return AcquireResult{}, err
	}

	e.metrics.recordAcquire(ctx, result.Outcome, time.Since(start), nil)
	if result.Outcome == OutcomeLocked {
		e.options.logger.Debug("Lease held by another holder",
			"target", target.String(),
			"holder", holder,
			"current_holder", result.Holder,
			"expires_at", result.ExpiresAt)
	} else {
		e.options.logger.Info("Lease "+string(result.Outcome),
			"target", target.String(),
			"holder", holder,
			"lease_key", result.LeaseKey,
			"session_id", result.SessionID,
			"expires_at", result.ExpiresAt)
	}
	return result, nil
}

// CanWrite reports whether holder may write target now. It only mutates when
// the holder's own lease has expired: the target's expired rows are removed
// and the check continues as if they were absent.
func (e *Engine) CanWrite(ctx context.Context, target Target, holder string) (LockStatus, error) {
	if err := validateHolder(target, holder); err != nil {
		return LockStatus{}, err
	}

	leases, err := e.store.ListTarget(ctx, target)
	if err != nil {
		return LockStatus{}, unavailable("list leases", err)
	}

	var (
		now       = e.now()
		live      = liveLeases(leases, now)
		reclaimed = false
	)

	if own, ok := findHolder(live, holder); ok {
		return statusFor(true, "holder already has an active lease", own), nil
	}

	if _, ok := findHolder(leases, holder); ok {
		removed, err := e.store.DeleteExpiredTarget(ctx, target, now)
		if err != nil {
			return LockStatus{}, unavailable("reclaim expired leases", err)
		}
		reclaimed = true
		e.options.logger.Warn("Reclaimed expired lease",
			"target", target.String(),
			"holder", holder,
			"removed", removed)
	}

	if len(live) == 0 {
		if reclaimed {
			return LockStatus{CanEdit: true, Reason: "expired lease reclaimed"}, nil
		}
		return LockStatus{CanEdit: true, Reason: "no active lease"}, nil
	}

	var representative = live[0]
	if representative.CoEditing {
		return statusFor(true, fmt.Sprintf("co-editing session with %s is joinable", representative.Holder), representative), nil
	}
	return statusFor(false, fmt.Sprintf("document version is being edited by %s", representative.Holder), representative), nil
}

// Release removes holder's lease on target. Other members of the same
// co-editing session keep theirs.
func (e *Engine) Release(ctx context.Context, target Target, holder string) (bool, error) {
	if err := validateHolder(target, holder); err != nil {
		return false, err
	}

	removed, err := e.store.DeleteByHolder(ctx, target, holder)
	if err != nil {
		return false, unavailable("release lease", err)
	}

	e.metrics.recordRelease(ctx, removed)
	if removed > 0 {
		e.options.logger.Info("Lease released", "target", target.String(), "holder", holder)
	}
	return removed > 0, nil
}

// EndSession removes every lease of sessionID on target regardless of holder.
func (e *Engine) EndSession(ctx context.Context, target Target, sessionID string) (bool, error) {
	if err := target.validate(); err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	}

	removed, err := e.store.DeleteBySession(ctx, target, sessionID)
	if err != nil {
		return false, unavailable("end session", err)
	}

	e.metrics.recordSessionEnd(ctx, removed)
	if removed > 0 {
		e.options.logger.Info("Session ended",
			"target", target.String(),
			"session_id", sessionID,
			"removed", removed)
	}
	return removed > 0, nil
}

// Sweep removes every expired lease and returns how many were removed.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	removed, err := e.store.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, unavailable("sweep expired leases", err)
	}

	e.metrics.recordSwept(ctx, removed)
	if removed > 0 {
		e.options.logger.Debug("Swept expired leases", "removed", removed)
	}
	return removed, nil
}

// ListActive returns every live lease.
func (e *Engine) ListActive(ctx context.Context) ([]Lease, error) {
	leases, err := e.store.ListLive(ctx, e.now())
	if err != nil {
		return nil, unavailable("list active leases", err)
	}
	return leases, nil
}

// LeasesHeldBy returns holder's live leases.
func (e *Engine) LeasesHeldBy(ctx context.Context, holder string) ([]Lease, error) {
	if holder == "" {
		return nil, fmt.Errorf("%w: holder is required", ErrInvalidArgument)
	}

	leases, err := e.store.ListByHolder(ctx, holder, e.now())
	if err != nil {
		return nil, unavailable("list holder leases", err)
	}
	return leases, nil
}

// resolveTTL applies the default and the cap. Sub-microsecond values are
// raised to one microsecond so expiry always lands after creation.
func (e *Engine) resolveTTL(ttl time.Duration) (time.Duration, error) {
	switch {
	case ttl < 0:
		return 0, fmt.Errorf("%w: ttl must not be negative, got %s", ErrInvalidArgument, ttl)
	case ttl == 0:
		ttl = e.options.defaultTTL
	case ttl > e.options.maxTTL:
		ttl = e.options.maxTTL
	}
	if ttl < time.Microsecond {
		ttl = time.Microsecond
	}
	return ttl, nil
}

// now is truncated to the store's microsecond resolution.
func (e *Engine) now() time.Time {
	return e.options.now().UTC().Truncate(time.Microsecond)
}

func validateHolder(target Target, holder string) error {
	if err := target.validate(); err != nil {
		return err
	}
	if holder == "" {
		return fmt.Errorf("%w: holder is required", ErrInvalidArgument)
	}
	return nil
}

// liveLeases returns the leases live at now, earliest created first.
func liveLeases(leases []Lease, now time.Time) []Lease {
	var live = make([]Lease, 0, len(leases))
	for _, l := range leases {
		if l.Live(now) {
			live = append(live, l)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	return live
}

func findHolder(leases []Lease, holder string) (Lease, bool) {
	for _, l := range leases {
		if l.Holder == holder {
			return l, true
		}
	}
	return Lease{}, false
}

func statusFor(canEdit bool, reason string, l Lease) LockStatus {
	return LockStatus{
		CanEdit:   canEdit,
		Reason:    reason,
		Holder:    l.Holder,
		ExpiresAt: l.ExpiresAt,
		LeaseKey:  l.LeaseKey,
	}
}

func newLeaseKey() string {
	return "lock_" + uuid.NewString()
}

func newSessionID(coEditing bool) string {
	if coEditing {
		return "session_" + uuid.NewString()
	}
	return "single_" + uuid.NewString()
}
