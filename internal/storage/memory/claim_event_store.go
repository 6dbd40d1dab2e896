package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// ClaimEventStore is an in-memory implementation of storage.ClaimEventStore.
type ClaimEventStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.ClaimRecord // keyed by claim_id
	order []string                       // insertion order, tie-break for equal timestamps
}

// NewClaimEventStore creates a new in-memory claim event store.
func NewClaimEventStore() *ClaimEventStore {
	return &ClaimEventStore{
		data: make(map[string]*domain.ClaimRecord),
	}
}

var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)

// Insert adds a claim record. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(_ context.Context, r *domain.ClaimRecord) error {
	if r == nil || r.ClaimID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ClaimID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ClaimID] = &copy
	s.order = append(s.order, r.ClaimID)
	return nil
}

// GetByID retrieves a claim by its ID.
func (s *ClaimEventStore) GetByID(_ context.Context, claimID string) (*domain.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[claimID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetByPool retrieves all claims of a pool, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByPool(_ context.Context, pool domain.Pool) ([]*domain.ClaimRecord, error) {
	return s.filter(func(r *domain.ClaimRecord) bool { return r.Pool == pool }), nil
}

// GetByAccount retrieves all claims paid to an account, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByAccount(_ context.Context, account common.Address) ([]*domain.ClaimRecord, error) {
	return s.filter(func(r *domain.ClaimRecord) bool { return r.Account == account }), nil
}

func (s *ClaimEventStore) filter(keep func(*domain.ClaimRecord) bool) []*domain.ClaimRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClaimRecord
	for _, id := range s.order {
		r := s.data[id]
		if keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClaimedAt < result[j].ClaimedAt
	})
	return result
}
