package editlock

import (
	"context"
	"fmt"
)

// ListCoEditors returns the distinct holders of live co-editing leases on
// target, in the order they joined.
func (e *Engine) ListCoEditors(ctx context.Context, target Target) ([]string, error) {
	live, err := e.liveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	var (
		holders = make([]string, 0, len(live))
		seen    = make(map[string]bool, len(live))
	)
	for _, l := range live {
		if !l.CoEditing || seen[l.Holder] {
			continue
		}
		seen[l.Holder] = true
		holders = append(holders, l.Holder)
	}
	return holders, nil
}

// HasActiveCoEditingSession reports whether target has a live co-editing lease.
func (e *Engine) HasActiveCoEditingSession(ctx context.Context, target Target) (bool, error) {
	live, err := e.liveTarget(ctx, target)
	if err != nil {
		return false, err
	}
	for _, l := range live {
		if l.CoEditing {
			return true, nil
		}
	}
	return false, nil
}

// IsLeaseLive reports whether the lease identified by leaseKey is still valid.
func (e *Engine) IsLeaseLive(ctx context.Context, target Target, leaseKey string) (bool, error) {
	live, err := e.liveTarget(ctx, target)
	if err != nil {
		return false, err
	}
	for _, l := range live {
		if l.LeaseKey == leaseKey {
			return true, nil
		}
	}
	return false, nil
}

// IsSessionLive reports whether at least one live lease belongs to sessionID.
func (e *Engine) IsSessionLive(ctx context.Context, target Target, sessionID string) (bool, error) {
	live, err := e.liveTarget(ctx, target)
	if err != nil {
		return false, err
	}
	for _, l := range live {
		if l.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

// Session describes the live session on target. It returns ErrNotFound when
// the target has no live lease.
func (e *Engine) Session(ctx context.Context, target Target) (SessionInfo, error) {
	live, err := e.liveTarget(ctx, target)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(live) == 0 {
		return SessionInfo{}, fmt.Errorf("session on %s: %w", target, ErrNotFound)
	}

	var info = SessionInfo{
		ID:        live[0].SessionID,
		CoEditing: live[0].CoEditing,
		Members:   make([]Member, 0, len(live)),
	}
	for _, l := range live {
		info.Members = append(info.Members, Member{
			Holder:    l.Holder,
			LeaseKey:  l.LeaseKey,
			JoinedAt:  l.CreatedAt,
			ExpiresAt: l.ExpiresAt,
		})
	}
	return info, nil
}

func (e *Engine) liveTarget(ctx context.Context, target Target) ([]Lease, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	leases, err := e.store.ListTarget(ctx, target)
	if err != nil {
		return nil, unavailable("list leases", err)
	}
	return liveLeases(leases, e.now()), nil
}
