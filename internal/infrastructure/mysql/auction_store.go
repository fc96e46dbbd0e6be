package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-bidding/internal/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const errDuplicateEntry = 1062

// AuctionStore serializes mutations of one auction through a row lock on
// its auctions row; different auctions lock different rows.
type AuctionStore struct {
	db    *sql.DB
	clock domain.Clock
}

func NewAuctionStore(db *sql.DB, clock domain.Clock) *AuctionStore {
	return &AuctionStore{db: db, clock: clock}
}

const auctionColumns = `id, seller_id, starting_price, current_price, close_time, is_active, winner_id, created_at, updated_at`

func (r *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, seller_id, starting_price, current_price, close_time, is_active, winner_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.ID, auction.SellerID, auction.StartingPrice, auction.CurrentPrice,
		auction.CloseTime, auction.IsActive, nullString(auction.WinnerID),
		auction.CreatedAt, auction.UpdatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("auction %s already exists", auction.ID)
	}
	return err
}

func (r *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	return scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
}

func (r *AuctionStore) CommitBid(ctx context.Context, bid *domain.Bid, expectedPrice decimal.Decimal) (*domain.Bid, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		current   decimal.Decimal
		closeTime time.Time
		isActive  bool
		lastBidAt sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT current_price, close_time, is_active, last_bid_at FROM auctions WHERE id = ? FOR UPDATE`,
		bid.AuctionID).Scan(&current, &closeTime, &isActive, &lastBidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}

	// The row lock is held from here on, so now is the commit instant.
	now := r.clock.Now()
	if !isActive || !now.Before(closeTime) {
		return nil, domain.ErrAuctionClosed
	}
	if !bid.Amount.GreaterThan(current) {
		return nil, domain.ErrBidTooLow
	}
	if !current.Equal(expectedPrice) {
		return nil, domain.ErrPriceChanged
	}

	committed := *bid
	committed.SubmittedAt = now
	if lastBidAt.Valid && lastBidAt.Time.After(now) {
		committed.SubmittedAt = lastBidAt.Time
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		committed.ID, committed.AuctionID, committed.BidderID, committed.Amount, committed.SubmittedAt)
	if isDuplicate(err) {
		return nil, domain.ErrBidTooLow
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET current_price = ?, last_bid_at = ?, updated_at = ? WHERE id = ?`,
		committed.Amount, committed.SubmittedAt, committed.SubmittedAt, committed.AuctionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &committed, nil
}

func (r *AuctionStore) Settle(ctx context.Context, auctionID string, now time.Time) (*domain.Auction, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	auction, err := scanAuction(tx.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = ? FOR UPDATE`, auctionID))
	if err != nil {
		return nil, false, err
	}
	if !auction.IsActive || !domain.IsExpired(auction, now) {
		return auction, false, nil
	}

	var winner sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT bidder_id FROM bids WHERE auction_id = ? ORDER BY amount DESC, submitted_at ASC LIMIT 1`,
		auctionID).Scan(&winner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET is_active = 0, winner_id = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		winner, now, auctionID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	auction.IsActive = false
	auction.WinnerID = winner.String
	auction.UpdatedAt = now
	return auction, true, nil
}

func (r *AuctionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM auctions WHERE is_active = 1 AND close_time <= ? ORDER BY close_time ASC`
	args := []interface{}{now}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AuctionStore) History(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	query := `
        SELECT id, auction_id, bidder_id, amount, submitted_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, submitted_at ASC
    `
	args := []interface{}{auctionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryBids(ctx, query, args...)
}

func (r *AuctionStore) Highest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	bids, err := r.History(ctx, auctionID, 1)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, nil
	}
	return bids[0], nil
}

func (r *AuctionStore) BidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, submitted_at
        FROM bids
        WHERE bidder_id = ?
        ORDER BY submitted_at DESC
    `
	return r.queryBids(ctx, query, bidderID)
}

func (r *AuctionStore) queryBids(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.SubmittedAt); err != nil {
			return nil, err
		}
		bids = append(bids, &b)
	}
	return bids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		a      domain.Auction
		winner sql.NullString
	)
	err := row.Scan(&a.ID, &a.SellerID, &a.StartingPrice, &a.CurrentPrice, &a.CloseTime,
		&a.IsActive, &winner, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}
	a.WinnerID = winner.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
