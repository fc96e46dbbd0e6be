package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auction-bidding/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const activeAuctionsKey = "auctions:active"

func auctionKey(id string) string     { return fmt.Sprintf("auction:%s", id) }
func auctionBidsKey(id string) string { return fmt.Sprintf("auction:%s:bids", id) }
func bidKey(id string) string         { return fmt.Sprintf("bid:%s", id) }
func bidderBidsKey(id string) string  { return fmt.Sprintf("bidder:%s:bids", id) }

// commitBidScript re-checks the auction under Redis' single-threaded script
// execution and applies the price update and ledger append together. Prices
// are only compared as canonical strings here; ordering comparisons happen in
// Go on decimals, since Lua numbers lose cents on large amounts.
//
// KEYS: auction hash, bid hash, auction bids zset, bidder bids zset
// ARGV: expected price, amount, now (unix ms), bid id, auction id, bidder id,
//       '1' if amount > expected price
var commitBidScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'current_price', 'close_time', 'is_active', 'last_bid_at')
if not f[1] then
    return {0, 'not_found'}
end
local now = tonumber(ARGV[3])
if f[3] ~= '1' or now >= tonumber(f[2]) then
    return {0, 'closed'}
end
if f[1] ~= ARGV[1] then
    return {0, 'price_changed', f[1]}
end
if ARGV[7] ~= '1' then
    return {0, 'too_low'}
end
local at = now
if f[4] and tonumber(f[4]) > at then
    at = tonumber(f[4])
end
redis.call('HSET', KEYS[1],
    'current_price', ARGV[2],
    'high_bidder_id', ARGV[6],
    'last_bid_at', at,
    'updated_at', at)
redis.call('HSET', KEYS[2],
    'id', ARGV[4],
    'auction_id', ARGV[5],
    'bidder_id', ARGV[6],
    'amount', ARGV[2],
    'submitted_at', at)
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[4])
redis.call('ZADD', KEYS[4], at, ARGV[4])
return {1, tostring(at)}
`)

// settleScript performs the Active -> Settled transition exactly once.
//
// KEYS: auction hash, active zset
// ARGV: now (unix ms), auction id
var settleScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'is_active', 'close_time', 'high_bidder_id')
if not f[2] then
    return {0, 'not_found'}
end
if f[1] ~= '1' then
    return {0, 'settled'}
end
if tonumber(ARGV[1]) < tonumber(f[2]) then
    return {0, 'open'}
end
local winner = f[3] or ''
redis.call('HSET', KEYS[1], 'is_active', '0', 'winner_id', winner, 'updated_at', ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return {1, winner}
`)

// AuctionStore keeps auctions and their ledgers in Redis. Prices are stored as
// canonical decimal strings so the compare-and-swap can compare them verbatim.
type AuctionStore struct {
	client *redis.Client
	clock  domain.Clock
}

func NewAuctionStore(client *redis.Client, clock domain.Clock) *AuctionStore {
	return &AuctionStore{client: client, clock: clock}
}

func (r *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	key := auctionKey(auction.ID)

	created, err := r.client.HSetNX(ctx, key, "id", auction.ID).Result()
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("auction %s already exists", auction.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"seller_id":      auction.SellerID,
			"starting_price": auction.StartingPrice.String(),
			"current_price":  auction.CurrentPrice.String(),
			"close_time":     auction.CloseTime.UnixMilli(),
			"is_active":      boolFlag(auction.IsActive),
			"winner_id":      auction.WinnerID,
			"created_at":     auction.CreatedAt.UnixMilli(),
			"updated_at":     auction.UpdatedAt.UnixMilli(),
		})
		if auction.IsActive {
			pipe.ZAdd(ctx, activeAuctionsKey, &redis.Z{
				Score:  float64(auction.CloseTime.UnixMilli()),
				Member: auction.ID,
			})
		}
		return nil
	})
	return err
}

func (r *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	fields, err := r.client.HGetAll(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["close_time"] == "" {
		return nil, domain.ErrAuctionNotFound
	}
	return decodeAuction(auctionID, fields)
}

func (r *AuctionStore) CommitBid(ctx context.Context, bid *domain.Bid, expectedPrice decimal.Decimal) (*domain.Bid, error) {
	now := r.clock.Now()
	keys := []string{
		auctionKey(bid.AuctionID),
		bidKey(bid.ID),
		auctionBidsKey(bid.AuctionID),
		bidderBidsKey(bid.BidderID),
	}
	res, err := commitBidScript.Run(ctx, r.client, keys,
		expectedPrice.String(),
		bid.Amount.String(),
		now.UnixMilli(),
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		boolFlag(bid.Amount.GreaterThan(expectedPrice)),
	).Result()
	if err != nil {
		return nil, err
	}

	ok, detail, extra, err := parseScriptResult(res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, commitFailure(detail, extra, bid.Amount)
	}

	at, err := strconv.ParseInt(detail, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing commit time %q: %w", detail, err)
	}
	committed := *bid
	committed.SubmittedAt = time.UnixMilli(at).UTC()
	return &committed, nil
}

func (r *AuctionStore) Settle(ctx context.Context, auctionID string, now time.Time) (*domain.Auction, bool, error) {
	res, err := settleScript.Run(ctx, r.client,
		[]string{auctionKey(auctionID), activeAuctionsKey},
		now.UnixMilli(), auctionID,
	).Result()
	if err != nil {
		return nil, false, err
	}

	ok, detail, _, err := parseScriptResult(res)
	if err != nil {
		return nil, false, err
	}
	if !ok && detail == "not_found" {
		return nil, false, domain.ErrAuctionNotFound
	}

	auction, err := r.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, false, err
	}
	return auction, ok, nil
}

func (r *AuctionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	return r.client.ZRangeByScore(ctx, activeAuctionsKey, by).Result()
}

func (r *AuctionStore) History(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	exists, err := r.client.Exists(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, domain.ErrAuctionNotFound
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, auctionBidsKey(auctionID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return r.loadBids(ctx, ids)
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
	ids, err := r.client.ZRevRange(ctx, bidderBidsKey(bidderID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return r.loadBids(ctx, ids)
}

func (r *AuctionStore) loadBids(ctx context.Context, ids []string) ([]*domain.Bid, error) {
	if len(ids) == 0 {
		return []*domain.Bid{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, bidKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	bids := make([]*domain.Bid, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		b, err := decodeBid(fields)
		if err != nil {
			return nil, fmt.Errorf("decoding bid %s: %w", ids[i], err)
		}
		bids = append(bids, b)
	}
	return bids, nil
}

// commitFailure maps a refused commit to its sentinel. A changed price that
// already reached amount means the bid was outbid, not merely raced.
func commitFailure(detail, current string, amount decimal.Decimal) error {
	switch detail {
	case "not_found":
		return domain.ErrAuctionNotFound
	case "closed":
		return domain.ErrAuctionClosed
	case "too_low":
		return domain.ErrBidTooLow
	case "price_changed":
		price, err := decimal.NewFromString(current)
		if err != nil {
			return fmt.Errorf("parsing current price %q: %w", current, err)
		}
		if !amount.GreaterThan(price) {
			return domain.ErrBidTooLow
		}
		return domain.ErrPriceChanged
	default:
		return fmt.Errorf("unexpected commit result %q", detail)
	}
}

// parseScriptResult decodes {flag, detail[, extra]} script replies.
func parseScriptResult(res interface{}) (bool, string, string, error) {
	values, ok := res.([]interface{})
	if !ok || len(values) < 2 || len(values) > 3 {
		return false, "", "", fmt.Errorf("unexpected script result %v", res)
	}
	flag, ok := values[0].(int64)
	if !ok {
		return false, "", "", fmt.Errorf("unexpected script flag %v", values[0])
	}
	detail, _ := values[1].(string)
	var extra string
	if len(values) == 3 {
		extra, _ = values[2].(string)
	}
	return flag == 1, detail, extra, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeAuction(id string, f map[string]string) (*domain.Auction, error) {
	starting, err := decimal.NewFromString(f["starting_price"])
	if err != nil {
		return nil, fmt.Errorf("starting_price: %w", err)
	}
	current, err := decimal.NewFromString(f["current_price"])
	if err != nil {
		return nil, fmt.Errorf("current_price: %w", err)
	}
	closeTime, err := parseMillis(f["close_time"])
	if err != nil {
		return nil, fmt.Errorf("close_time: %w", err)
	}
	createdAt, _ := parseMillis(f["created_at"])
	updatedAt, _ := parseMillis(f["updated_at"])

	return &domain.Auction{
		ID:            id,
		SellerID:      f["seller_id"],
		StartingPrice: starting,
		CurrentPrice:  current,
		CloseTime:     closeTime,
		IsActive:      f["is_active"] == "1",
		WinnerID:      f["winner_id"],
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func decodeBid(f map[string]string) (*domain.Bid, error) {
	amount, err := decimal.NewFromString(f["amount"])
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	submittedAt, err := parseMillis(f["submitted_at"])
	if err != nil {
		return nil, fmt.Errorf("submitted_at: %w", err)
	}
	return &domain.Bid{
		ID:          f["id"],
		AuctionID:   f["auction_id"],
		BidderID:    f["bidder_id"],
		Amount:      amount,
		SubmittedAt: submittedAt,
	}, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
