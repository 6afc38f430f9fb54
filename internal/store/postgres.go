package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stablemint/recovery-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// durations are stored as nanosecond BIGINTs.
//
// Schema:
//
//	CREATE TABLE auctions (
//	    id                BIGSERIAL PRIMARY KEY,
//	    user_id           TEXT NOT NULL,
//	    token             TEXT NOT NULL,
//	    debt_amount       NUMERIC NOT NULL,
//	    collateral_amount NUMERIC NOT NULL,
//	    start_price       NUMERIC NOT NULL,
//	    end_price         NUMERIC NOT NULL,
//	    start_time        TIMESTAMPTZ NOT NULL,
//	    duration_ns       BIGINT NOT NULL,
//	    active            BOOLEAN NOT NULL DEFAULT TRUE
//	);
//	CREATE TABLE commitments (
//	    bidder      TEXT NOT NULL,
//	    auction_id  BIGINT NOT NULL REFERENCES auctions(id),
//	    hash        TEXT NOT NULL,
//	    commit_time TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (bidder, auction_id)
//	);
//	CREATE TABLE settlements (
//	    id                TEXT PRIMARY KEY,
//	    auction_id        BIGINT NOT NULL REFERENCES auctions(id),
//	    bidder            TEXT NOT NULL,
//	    user_id           TEXT NOT NULL,
//	    token             TEXT NOT NULL,
//	    collateral_amount NUMERIC NOT NULL,
//	    clearing_price    NUMERIC NOT NULL,
//	    cost              NUMERIC NOT NULL,
//	    refund            NUMERIC NOT NULL,
//	    token_payment     BOOLEAN NOT NULL,
//	    timestamp         TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE liquidations (
//	    id                TEXT PRIMARY KEY,
//	    liquidator        TEXT NOT NULL,
//	    user_id           TEXT NOT NULL,
//	    token             TEXT NOT NULL,
//	    debt_amount       NUMERIC NOT NULL,
//	    collateral_seized NUMERIC NOT NULL,
//	    bonus             NUMERIC NOT NULL,
//	    direct            BOOLEAN NOT NULL,
//	    timestamp         TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateAuction(ctx context.Context, a *model.DutchAuction) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO auctions (user_id, token, debt_amount, collateral_amount,
		                       start_price, end_price, start_time, duration_ns, active)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9)
		 RETURNING id`,
		a.User, a.Token,
		a.DebtAmount.String(), a.CollateralAmount.String(),
		a.StartPrice.String(), a.EndPrice.String(),
		a.StartTime, a.Duration.Nanoseconds(), a.Active,
	).Scan(&a.ID)
}

func (s *PostgresStore) GetAuction(ctx context.Context, id uint64) (*model.DutchAuction, error) {
	var a model.DutchAuction
	var debt, coll, startP, endP string
	var durationNs int64

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, token,
		        debt_amount::TEXT, collateral_amount::TEXT,
		        start_price::TEXT, end_price::TEXT,
		        start_time, duration_ns, active
		 FROM auctions WHERE id = $1`, id).
		Scan(&a.ID, &a.User, &a.Token,
			&debt, &coll,
			&startP, &endP,
			&a.StartTime, &durationNs, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: auction %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %d: %w", id, err)
	}

	a.DebtAmount, _ = decimal.NewFromString(debt)
	a.CollateralAmount, _ = decimal.NewFromString(coll)
	a.StartPrice, _ = decimal.NewFromString(startP)
	a.EndPrice, _ = decimal.NewFromString(endP)
	a.Duration = time.Duration(durationNs)

	return &a, nil
}

func (s *PostgresStore) ListActiveAuctions(ctx context.Context) ([]model.DutchAuction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, token,
		        debt_amount::TEXT, collateral_amount::TEXT,
		        start_price::TEXT, end_price::TEXT,
		        start_time, duration_ns, active
		 FROM auctions WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []model.DutchAuction
	for rows.Next() {
		var a model.DutchAuction
		var debt, coll, startP, endP string
		var durationNs int64
		if err := rows.Scan(&a.ID, &a.User, &a.Token,
			&debt, &coll,
			&startP, &endP,
			&a.StartTime, &durationNs, &a.Active); err != nil {
			return nil, err
		}
		a.DebtAmount, _ = decimal.NewFromString(debt)
		a.CollateralAmount, _ = decimal.NewFromString(coll)
		a.StartPrice, _ = decimal.NewFromString(startP)
		a.EndPrice, _ = decimal.NewFromString(endP)
		a.Duration = time.Duration(durationNs)
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// Deactivate relies on the conditional UPDATE for atomicity: two
// concurrent settlers race on the row and exactly one sees RowsAffected=1.
func (s *PostgresStore) Deactivate(ctx context.Context, id uint64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) PutCommitment(ctx context.Context, c *model.Commitment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO commitments (bidder, auction_id, hash, commit_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (bidder, auction_id)
		 DO UPDATE SET hash = EXCLUDED.hash, commit_time = EXCLUDED.commit_time`,
		c.Bidder, c.AuctionID, c.Hash, c.CommitTime,
	)
	return err
}

func (s *PostgresStore) GetCommitment(ctx context.Context, bidder string, auctionID uint64) (*model.Commitment, error) {
	var c model.Commitment
	err := s.pool.QueryRow(ctx,
		`SELECT bidder, auction_id, hash, commit_time
		 FROM commitments WHERE bidder = $1 AND auction_id = $2`,
		bidder, auctionID).
		Scan(&c.Bidder, &c.AuctionID, &c.Hash, &c.CommitTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: commitment %s/%d", ErrNotFound, bidder, auctionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get commitment %s/%d: %w", bidder, auctionID, err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCommitment(ctx context.Context, bidder string, auctionID uint64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM commitments WHERE bidder = $1 AND auction_id = $2`,
		bidder, auctionID)
	return err
}

func (s *PostgresStore) InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settlements (id, auction_id, bidder, user_id, token,
		                          collateral_amount, clearing_price, cost, refund,
		                          token_payment, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11)`,
		rec.ID, rec.AuctionID, rec.Bidder, rec.User, rec.Token,
		rec.CollateralAmount.String(), rec.ClearingPrice.String(),
		rec.Cost.String(), rec.Refund.String(),
		rec.TokenPayment, rec.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListSettlementsByAuction(ctx context.Context, auctionID uint64) ([]model.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, auction_id, bidder, user_id, token,
		        collateral_amount::TEXT, clearing_price::TEXT, cost::TEXT, refund::TEXT,
		        token_payment, timestamp
		 FROM settlements WHERE auction_id = $1 ORDER BY timestamp`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.SettlementRecord
	for rows.Next() {
		var r model.SettlementRecord
		var coll, price, cost, refund string
		if err := rows.Scan(&r.ID, &r.AuctionID, &r.Bidder, &r.User, &r.Token,
			&coll, &price, &cost, &refund,
			&r.TokenPayment, &r.Timestamp); err != nil {
			return nil, err
		}
		r.CollateralAmount, _ = decimal.NewFromString(coll)
		r.ClearingPrice, _ = decimal.NewFromString(price)
		r.Cost, _ = decimal.NewFromString(cost)
		r.Refund, _ = decimal.NewFromString(refund)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO liquidations (id, liquidator, user_id, token,
		                           debt_amount, collateral_seized, bonus,
		                           direct, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		rec.ID, rec.Liquidator, rec.User, rec.Token,
		rec.DebtAmount.String(), rec.CollateralSeized.String(), rec.Bonus.String(),
		rec.Direct, rec.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListLiquidationsByUser(ctx context.Context, user string) ([]model.LiquidationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, liquidator, user_id, token,
		        debt_amount::TEXT, collateral_seized::TEXT, bonus::TEXT,
		        direct, timestamp
		 FROM liquidations WHERE user_id = $1 ORDER BY timestamp`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.LiquidationRecord
	for rows.Next() {
		var r model.LiquidationRecord
		var debt, seized, bonus string
		if err := rows.Scan(&r.ID, &r.Liquidator, &r.User, &r.Token,
			&debt, &seized, &bonus,
			&r.Direct, &r.Timestamp); err != nil {
			return nil, err
		}
		r.DebtAmount, _ = decimal.NewFromString(debt)
		r.CollateralSeized, _ = decimal.NewFromString(seized)
		r.Bonus, _ = decimal.NewFromString(bonus)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
