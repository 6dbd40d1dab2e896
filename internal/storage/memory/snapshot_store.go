package memory

import (
	"context"
	"sort"
	"sync"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

type snapshotKey struct {
	pool    domain.Pool
	takenAt int64
}

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.PoolSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[snapshotKey]*domain.PoolSnapshot),
	}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[snapshotKey]struct{}, len(snapshots))
	for _, p := range snapshots {
		if p == nil || !p.Pool.IsValid() {
			return storage.ErrInvalidInput
		}
		key := snapshotKey{p.Pool, p.TakenAt}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range snapshots {
		copy := *p
		s.data[snapshotKey{p.Pool, p.TakenAt}] = &copy
	}
	return nil
}

// GetByTimeRange retrieves snapshots of a pool within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, pool domain.Pool, start, end int64) ([]*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolSnapshot
	for k, p := range s.data {
		if k.pool == pool && k.takenAt >= start && k.takenAt <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TakenAt < result[j].TakenAt
	})
	return result, nil
}
