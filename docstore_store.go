package editlock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

// docstoreMaxAttempts bounds the optimistic retry loop of DocStore.Update.
const docstoreMaxAttempts = 8

// DocStore keeps one document per target in a gocloud docstore collection.
// Writes use the collection's revision field for compare-and-swap, so any
// provider with revision support gives per-target atomic admission.
//
// The collection must be keyed by "ID".
type DocStore struct {
	coll *docstore.Collection
}

// NewDocStore wraps an open collection.
func NewDocStore(coll *docstore.Collection) *DocStore {
	return &DocStore{coll: coll}
}

// OpenDocStore opens a collection by URL, e.g. "mem://leases/ID".
func OpenDocStore(ctx context.Context, url string) (*DocStore, error) {
	coll, err := docstore.OpenCollection(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open docstore collection: %w", err)
	}
	return NewDocStore(coll), nil
}

// Close releases the collection.
func (s *DocStore) Close() error {
	return s.coll.Close()
}

type targetDoc struct {
	ID               string
	DocumentID       string
	VersionSeq       int
	Leases           []storedLease
	DocstoreRevision interface{}
}

type storedLease struct {
	LeaseKey  string
	Holder    string
	SessionID string
	CoEditing bool
	CreatedAt int64
	ExpiresAt int64
}

func targetKey(target Target) string {
	return fmt.Sprintf("%s/%d", target.DocumentID, target.VersionSeq)
}

// Update applies fn to the target's document and writes it back with a
// revision check, retrying when another writer got there first.
func (s *DocStore) Update(ctx context.Context, target Target, fn func(tx Tx) error) error {
	for attempt := 0; attempt < docstoreMaxAttempts; attempt++ {
		var doc, exists, err = s.get(ctx, target)
		if err != nil {
			return err
		}

		var tx = &memoryTx{target: target, leases: doc.leases()}
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.dirty {
			return nil
		}

		err = s.write(ctx, doc, exists, tx.leases)
		if err == nil {
			return nil
		}
		switch gcerrors.Code(err) {
		case gcerrors.AlreadyExists, gcerrors.FailedPrecondition, gcerrors.NotFound:
			continue
		}
		return fmt.Errorf("failed to write target %s: %w", target, err)
	}
	return fmt.Errorf("failed to update target %s: too much contention", target)
}

// ListTarget returns every lease row of a target, oldest first.
func (s *DocStore) ListTarget(ctx context.Context, target Target) ([]Lease, error) {
	var doc, _, err = s.get(ctx, target)
	if err != nil {
		return nil, err
	}
	return doc.leases(), nil
}

// ListLive returns all leases live at now.
func (s *DocStore) ListLive(ctx context.Context, now time.Time) ([]Lease, error) {
	return s.scan(ctx, func(l Lease) bool { return l.Live(now) })
}

// ListByHolder returns the holder's leases live at now.
func (s *DocStore) ListByHolder(ctx context.Context, holder string, now time.Time) ([]Lease, error) {
	return s.scan(ctx, func(l Lease) bool { return l.Holder == holder && l.Live(now) })
}

// DeleteByHolder removes the holder's leases on a target.
func (s *DocStore) DeleteByHolder(ctx context.Context, target Target, holder string) (int64, error) {
	return s.remove(ctx, target, func(l Lease) bool { return l.Holder == holder })
}

// DeleteBySession removes every lease of a session on a target.
func (s *DocStore) DeleteBySession(ctx context.Context, target Target, sessionID string) (int64, error) {
	return s.remove(ctx, target, func(l Lease) bool { return l.SessionID == sessionID })
}

// DeleteExpiredTarget removes the expired leases of one target.
func (s *DocStore) DeleteExpiredTarget(ctx context.Context, target Target, now time.Time) (int64, error) {
	return s.remove(ctx, target, func(l Lease) bool { return !l.Live(now) })
}

// DeleteExpired removes every expired lease.
func (s *DocStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var targets, err = s.targets(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, target := range targets {
		n, err := s.DeleteExpiredTarget(ctx, target, now)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *DocStore) remove(ctx context.Context, target Target, match func(Lease) bool) (int64, error) {
	var removed int64
	err := s.Update(ctx, target, func(tx Tx) error {
		var mtx = tx.(*memoryTx)
		var kept = removeWhere(mtx.leases, match)
		removed = int64(len(mtx.leases) - len(kept))
		mtx.leases = kept
		mtx.dirty = removed > 0
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *DocStore) get(ctx context.Context, target Target) (*targetDoc, bool, error) {
	var doc = &targetDoc{ID: targetKey(target)}
	err := s.coll.Get(ctx, doc)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return &targetDoc{ID: targetKey(target), DocumentID: target.DocumentID, VersionSeq: target.VersionSeq}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get target %s: %w", target, err)
	}
	return doc, true, nil
}

func (s *DocStore) write(ctx context.Context, doc *targetDoc, exists bool, leases []Lease) error {
	if !exists && len(leases) == 0 {
		return nil
	}
	if len(leases) == 0 {
		return s.coll.Delete(ctx, doc)
	}

	doc.Leases = toStored(leases)
	if !exists {
		return s.coll.Create(ctx, doc)
	}
	return s.coll.Replace(ctx, doc)
}

func (s *DocStore) targets(ctx context.Context) ([]Target, error) {
	var iter = s.coll.Query().Get(ctx, "DocumentID", "VersionSeq")
	defer iter.Stop()

	var targets []Target
	for {
		var doc targetDoc
		err := iter.Next(ctx, &doc)
		if errors.Is(err, io.EOF) {
			return targets, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan targets: %w", err)
		}
		targets = append(targets, Target{DocumentID: doc.DocumentID, VersionSeq: doc.VersionSeq})
	}
}

func (s *DocStore) scan(ctx context.Context, keep func(Lease) bool) ([]Lease, error) {
	var iter = s.coll.Query().Get(ctx)
	defer iter.Stop()

	var result []Lease
	for {
		var doc targetDoc
		err := iter.Next(ctx, &doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan leases: %w", err)
		}
		for _, l := range doc.leases() {
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
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (d *targetDoc) leases() []Lease {
	var target = Target{DocumentID: d.DocumentID, VersionSeq: d.VersionSeq}
	var leases = make([]Lease, len(d.Leases))
	for i, l := range d.Leases {
		leases[i] = Lease{
			Target:    target,
			LeaseKey:  l.LeaseKey,
			Holder:    l.Holder,
			SessionID: l.SessionID,
			CoEditing: l.CoEditing,
			CreatedAt: time.UnixMicro(l.CreatedAt).UTC(),
			ExpiresAt: time.UnixMicro(l.ExpiresAt).UTC(),
		}
	}
	return oldestFirst(leases)
}

func toStored(leases []Lease) []storedLease {
	var stored = make([]storedLease, len(leases))
	for i, l := range leases {
		stored[i] = storedLease{
			LeaseKey:  l.LeaseKey,
			Holder:    l.Holder,
			SessionID: l.SessionID,
			CoEditing: l.CoEditing,
			CreatedAt: l.CreatedAt.UnixMicro(),
			ExpiresAt: l.ExpiresAt.UnixMicro(),
		}
	}
	return stored
}
