// Package store defines the persistence interface for the recovery
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/stablemint/recovery-engine/internal/model"
)

// ErrNotFound is returned for unknown auction ids and missing
// commitments.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// Deactivate is the settlement commit point: it must atomically flip
// Active exactly once per auction in every implementation, and report
// whether this call did the flip. At-most-once settlement rests on it.
type Store interface {
	// --- Auction lifecycle ---

	// CreateAuction persists a new auction, assigning the next monotonic
	// id (starting at 1) and writing it back to the record.
	CreateAuction(ctx context.Context, a *model.DutchAuction) error

	// GetAuction retrieves an auction by id.
	GetAuction(ctx context.Context, id uint64) (*model.DutchAuction, error)

	// ListActiveAuctions returns all auctions still marked active.
	ListActiveAuctions(ctx context.Context) ([]model.DutchAuction, error)

	// Deactivate marks the auction inactive. Returns true iff the auction
	// existed, was active, and this call deactivated it.
	Deactivate(ctx context.Context, id uint64) (bool, error)

	// --- Commit-reveal ---

	// PutCommitment stores a commitment keyed by (bidder, auction),
	// overwriting any prior commitment for that pair.
	PutCommitment(ctx context.Context, c *model.Commitment) error

	// GetCommitment retrieves the commitment for (bidder, auction).
	GetCommitment(ctx context.Context, bidder string, auctionID uint64) (*model.Commitment, error)

	// DeleteCommitment removes a consumed or abandoned commitment.
	DeleteCommitment(ctx context.Context, bidder string, auctionID uint64) error

	// --- Immutable records ---

	// InsertSettlement appends an immutable won-auction record.
	InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error

	// ListSettlementsByAuction returns settlement records for an auction.
	ListSettlementsByAuction(ctx context.Context, auctionID uint64) ([]model.SettlementRecord, error)

	// InsertLiquidation appends an immutable liquidation record.
	InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error

	// ListLiquidationsByUser returns liquidation records for a borrower.
	ListLiquidationsByUser(ctx context.Context, user string) ([]model.LiquidationRecord, error)
}
