package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/stablemint/recovery-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	nextID       uint64
	auctions     map[uint64]*model.DutchAuction
	commitments  map[string]*model.Commitment // key: bidder|auctionID
	settlements  []model.SettlementRecord
	liquidations []model.LiquidationRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		auctions:    make(map[uint64]*model.DutchAuction),
		commitments: make(map[string]*model.Commitment),
	}
}

func commitKey(bidder string, auctionID uint64) string {
	return fmt.Sprintf("%s|%d", bidder, auctionID)
}

func (s *MemoryStore) CreateAuction(_ context.Context, a *model.DutchAuction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID
	s.nextID++

	// Store a copy to avoid external mutation.
	cp := *a
	s.auctions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAuction(_ context.Context, id uint64) (*model.DutchAuction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: auction %d", ErrNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListActiveAuctions(_ context.Context) ([]model.DutchAuction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []model.DutchAuction
	for _, a := range s.auctions {
		if a.Active {
			active = append(active, *a)
		}
	}
	return active, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok || !a.Active {
		return false, nil
	}
	a.Active = false
	return true, nil
}

func (s *MemoryStore) PutCommitment(_ context.Context, c *model.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.commitments[commitKey(c.Bidder, c.AuctionID)] = &cp
	return nil
}

func (s *MemoryStore) GetCommitment(_ context.Context, bidder string, auctionID uint64) (*model.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commitments[commitKey(bidder, auctionID)]
	if !ok {
		return nil, fmt.Errorf("%w: commitment %s/%d", ErrNotFound, bidder, auctionID)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) DeleteCommitment(_ context.Context, bidder string, auctionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.commitments, commitKey(bidder, auctionID))
	return nil
}

func (s *MemoryStore) InsertSettlement(_ context.Context, rec *model.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settlements = append(s.settlements, *rec)
	return nil
}

func (s *MemoryStore) ListSettlementsByAuction(_ context.Context, auctionID uint64) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SettlementRecord
	for _, r := range s.settlements {
		if r.AuctionID == auctionID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertLiquidation(_ context.Context, rec *model.LiquidationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.liquidations = append(s.liquidations, *rec)
	return nil
}

func (s *MemoryStore) ListLiquidationsByUser(_ context.Context, user string) ([]model.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LiquidationRecord
	for _, r := range s.liquidations {
		if r.User == user {
			result = append(result, r)
		}
	}
	return result, nil
}
