package editlock

import (
	"fmt"
	"time"
)

// Target identifies one lockable document version.
type Target struct {
	DocumentID string
	VersionSeq int
}

// String returns the target as "document@version".
func (t Target) String() string {
	return fmt.Sprintf("%s@%d", t.DocumentID, t.VersionSeq)
}

func (t Target) validate() error {
	if t.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidArgument)
	}
	if t.VersionSeq < 1 {
		return fmt.Errorf("%w: version must be >= 1, got %d", ErrInvalidArgument, t.VersionSeq)
	}
	return nil
}

// Lease is one writer's claim on a document version.
type Lease struct {
	Target
	LeaseKey  string
	Holder    string
	SessionID string
	CoEditing bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the lease is still valid at now.
func (l Lease) Live(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// Outcome classifies a successful or contended Acquire.
type Outcome string

const (
	OutcomeAcquired Outcome = "acquired"
	OutcomeRenewed  Outcome = "renewed"
	OutcomeJoined   Outcome = "joined"
	OutcomeLocked   Outcome = "locked"
)

// AcquireResult reports the outcome of Acquire. When OK is false the Holder,
// ExpiresAt and LeaseKey fields describe the conflicting lease.
type AcquireResult struct {
	OK        bool
	Outcome   Outcome
	LeaseKey  string
	SessionID string
	Holder    string
	ExpiresAt time.Time
	Message   string
}

// Err returns a *LockedError for a contended acquire, nil otherwise.
func (r AcquireResult) Err() error {
	if r.OK {
		return nil
	}
	return &LockedError{Holder: r.Holder, ExpiresAt: r.ExpiresAt, LeaseKey: r.LeaseKey}
}

// LockStatus answers "may this holder write now".
type LockStatus struct {
	CanEdit   bool
	Reason    string
	Holder    string
	ExpiresAt time.Time
	LeaseKey  string
}

// Member is one participant of a co-editing session.
type Member struct {
	Holder    string
	LeaseKey  string
	JoinedAt  time.Time
	ExpiresAt time.Time
}

// SessionInfo describes the live session on a target.
type SessionInfo struct {
	ID        string
	CoEditing bool
	Members   []Member
}
