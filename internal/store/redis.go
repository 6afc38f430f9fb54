package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stablemint/recovery-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for auction reads. Writes go to the primary store and invalidate
// the cache. Commitments and immutable records bypass the cache: the
// reveal path must never act on a stale commitment.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAuction(ctx context.Context, a *model.DutchAuction) error {
	if err := s.primary.CreateAuction(ctx, a); err != nil {
		return err
	}
	s.cacheAuction(ctx, a)
	return nil
}

func (s *CachedStore) Deactivate(ctx context.Context, id uint64) (bool, error) {
	flipped, err := s.primary.Deactivate(ctx, id)
	if err != nil {
		return false, err
	}
	// Invalidate; next read re-populates with the inactive record.
	s.rdb.Del(ctx, auctionKey(id))
	return flipped, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAuction(ctx context.Context, id uint64) (*model.DutchAuction, error) {
	data, err := s.rdb.Get(ctx, auctionKey(id)).Bytes()
	if err == nil {
		var a model.DutchAuction
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAuction(ctx, a)
	return a, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListActiveAuctions(ctx context.Context) ([]model.DutchAuction, error) {
	return s.primary.ListActiveAuctions(ctx)
}

func (s *CachedStore) PutCommitment(ctx context.Context, c *model.Commitment) error {
	return s.primary.PutCommitment(ctx, c)
}

func (s *CachedStore) GetCommitment(ctx context.Context, bidder string, auctionID uint64) (*model.Commitment, error) {
	return s.primary.GetCommitment(ctx, bidder, auctionID)
}

func (s *CachedStore) DeleteCommitment(ctx context.Context, bidder string, auctionID uint64) error {
	return s.primary.DeleteCommitment(ctx, bidder, auctionID)
}

func (s *CachedStore) InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error {
	return s.primary.InsertSettlement(ctx, rec)
}

func (s *CachedStore) ListSettlementsByAuction(ctx context.Context, auctionID uint64) ([]model.SettlementRecord, error) {
	return s.primary.ListSettlementsByAuction(ctx, auctionID)
}

func (s *CachedStore) InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error {
	return s.primary.InsertLiquidation(ctx, rec)
}

func (s *CachedStore) ListLiquidationsByUser(ctx context.Context, user string) ([]model.LiquidationRecord, error) {
	return s.primary.ListLiquidationsByUser(ctx, user)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAuction(ctx context.Context, a *model.DutchAuction) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, auctionKey(a.ID), data, s.ttl)
	}
}

func auctionKey(id uint64) string { return fmt.Sprintf("auction:%d", id) }
