package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu    sync.RWMutex
	tge   *int64
	roots map[domain.Pool]common.Hash
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		roots: make(map[domain.Pool]common.Hash),
	}
}

var _ storage.StateStore = (*StateStore)(nil)

// SetTGE stores the TGE timestamp once.
func (s *StateStore) SetTGE(_ context.Context, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tge != nil {
		if *s.tge == ts {
			return nil
		}
		return storage.ErrAlreadySet
	}
	s.tge = &ts
	return nil
}

// GetTGE returns the TGE timestamp.
func (s *StateStore) GetTGE(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tge == nil {
		return 0, storage.ErrNotFound
	}
	return *s.tge, nil
}

// SetRoot replaces the Merkle root of a sale pool.
func (s *StateStore) SetRoot(_ context.Context, pool domain.Pool, root common.Hash) error {
	if !pool.IsSale() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots[pool] = root
	return nil
}

// GetRoot returns the Merkle root of a sale pool.
func (s *StateStore) GetRoot(_ context.Context, pool domain.Pool) (common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.roots[pool]
	if !ok {
		return common.Hash{}, storage.ErrNotFound
	}
	return root, nil
}
