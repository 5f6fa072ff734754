package editlock

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps leases in process memory. It satisfies the Store contract
// for a single process and is the default for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	targets map[Target][]Lease
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets: make(map[Target][]Lease),
	}
}

// Update runs fn on a private copy of the target's rows and commits it when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, target Target, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tx = &memoryTx{target: target, leases: slices.Clone(s.targets[target])}
	if err := fn(tx); err != nil {
		return err
	}

	s.put(target, tx.leases)
	return nil
}

// ListTarget returns every lease row of a target, oldest first.
func (s *MemoryStore) ListTarget(ctx context.Context, target Target) ([]Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return oldestFirst(slices.Clone(s.targets[target])), nil
}

// ListLive returns all leases live at now.
func (s *MemoryStore) ListLive(ctx context.Context, now time.Time) ([]Lease, error) {
	return s.filter(ctx, func(l Lease) bool { return l.Live(now) })
}

// ListByHolder returns the holder's leases live at now.
func (s *MemoryStore) ListByHolder(ctx context.Context, holder string, now time.Time) ([]Lease, error) {
	return s.filter(ctx, func(l Lease) bool { return l.Holder == holder && l.Live(now) })
}

// DeleteByHolder removes the holder's leases on a target.
func (s *MemoryStore) DeleteByHolder(ctx context.Context, target Target, holder string) (int64, error) {
	return s.delete(ctx, target, func(l Lease) bool { return l.Holder == holder })
}

// DeleteBySession removes every lease of a session on a target.
func (s *MemoryStore) DeleteBySession(ctx context.Context, target Target, sessionID string) (int64, error) {
	return s.delete(ctx, target, func(l Lease) bool { return l.SessionID == sessionID })
}

// DeleteExpiredTarget removes the expired leases of one target.
func (s *MemoryStore) DeleteExpiredTarget(ctx context.Context, target Target, now time.Time) (int64, error) {
	return s.delete(ctx, target, func(l Lease) bool { return !l.Live(now) })
}

// DeleteExpired removes every expired lease.
func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for target, leases := range s.targets {
		var kept = removeWhere(leases, func(l Lease) bool { return !l.Live(now) })
		removed += int64(len(leases) - len(kept))
		s.put(target, kept)
	}
	return removed, nil
}

func (s *MemoryStore) filter(ctx context.Context, keep func(Lease) bool) ([]Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Lease
	for _, leases := range s.targets {
		for _, l := range leases {
			if keep(l) {
				result = append(result, l)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DocumentID != result[j].DocumentID {
			return result[i].DocumentID < result[j].DocumentID
		}
		if result[i].VersionSeq != result[j].VersionSeq {
			return result[i].VersionSeq < result[j].VersionSeq
		}
		return olderThan(result[i], result[j])
	})
	return result, nil
}

func (s *MemoryStore) delete(ctx context.Context, target Target, match func(Lease) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		leases = s.targets[target]
		kept   = removeWhere(leases, match)
	)
	s.put(target, kept)
	return int64(len(leases) - len(kept)), nil
}

// put stores leases for a target, dropping empty entries. Must be called with lock held.
func (s *MemoryStore) put(target Target, leases []Lease) {
	if len(leases) == 0 {
		delete(s.targets, target)
		return
	}
	s.targets[target] = leases
}

type memoryTx struct {
	target Target
	leases []Lease
	dirty  bool
}

func (tx *memoryTx) List(ctx context.Context) ([]Lease, error) {
	return oldestFirst(slices.Clone(tx.leases)), nil
}

func (tx *memoryTx) Insert(ctx context.Context, lease Lease) error {
	for _, l := range tx.leases {
		if l.LeaseKey == lease.LeaseKey || l.Holder == lease.Holder {
			return fmt.Errorf("lease for holder %q already exists on %s", lease.Holder, tx.target)
		}
	}
	tx.leases = append(tx.leases, lease)
	tx.dirty = true
	return nil
}

func (tx *memoryTx) SetExpiry(ctx context.Context, leaseKey string, expiresAt time.Time) error {
	for i := range tx.leases {
		if tx.leases[i].LeaseKey == leaseKey {
			tx.leases[i].ExpiresAt = expiresAt
			tx.dirty = true
			return nil
		}
	}
	return fmt.Errorf("lease %q: %w", leaseKey, ErrNotFound)
}

func (tx *memoryTx) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var kept = removeWhere(tx.leases, func(l Lease) bool { return !l.Live(now) })
	var removed = int64(len(tx.leases) - len(kept))
	tx.leases = kept
	tx.dirty = tx.dirty || removed > 0
	return removed, nil
}

// removeWhere returns a new slice without the leases matching match.
func removeWhere(leases []Lease, match func(Lease) bool) []Lease {
	var kept = make([]Lease, 0, len(leases))
	for _, l := range leases {
		if !match(l) {
			kept = append(kept, l)
		}
	}
	return kept
}

// oldestFirst sorts leases in place by creation time, then lease key, matching
// the SQL stores' ORDER BY.
func oldestFirst(leases []Lease) []Lease {
	sort.Slice(leases, func(i, j int) bool { return olderThan(leases[i], leases[j]) })
	return leases
}

func olderThan(a, b Lease) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.LeaseKey < b.LeaseKey
}
