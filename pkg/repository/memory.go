package repository

import (
	"context"
	"sync"
	"time"

	"github.com/medreza/agt-claim-service/pkg/models"
)

// MemoryClaimStore keeps claims in process memory. Records live until
// PurgeExpired removes them or the process exits.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]models.ClaimRecord
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{claims: make(map[string]models.ClaimRecord)}
}

func (s *MemoryClaimStore) Insert(_ context.Context, record models.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[record.Code] = record
	return nil
}

func (s *MemoryClaimStore) Get(_ context.Context, code string) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.claims[code]
	if !ok {
		return nil, ErrClaimNotFound
	}
	return &rec, nil
}

func (s *MemoryClaimStore) MarkUsed(_ context.Context, code string, now time.Time) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.claims[code]
	if !ok {
		return nil, ErrClaimNotFound
	}
	if err := classify(&rec, now); err != nil {
		return nil, err
	}

	usedAt := now
	rec.Used = true
	rec.UsedAt = &usedAt
	s.claims[code] = rec
	return &rec, nil
}

func (s *MemoryClaimStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for code, rec := range s.claims {
		if rec.ExpiresAt.Before(before) {
			delete(s.claims, code)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}
