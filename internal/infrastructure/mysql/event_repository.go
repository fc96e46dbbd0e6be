package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-bidding/internal/domain"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	query := `
        INSERT INTO bid_events (auction_id, bid_id, user_id, amount, event_type, reason, winner_id, timestamp, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		event.AuctionID, event.BidID, event.UserID, event.Amount,
		string(event.Type), event.Reason, event.WinnerID,
		event.Timestamp, time.Now().UTC())
	return err
}

// GetBidEvents returns every recorded event for the auction in arrival order.
func (r *EventRepository) GetBidEvents(ctx context.Context, auctionID string) ([]*domain.BidEvent, error) {
	query := `
        SELECT auction_id, bid_id, user_id, amount, event_type, reason, winner_id, timestamp
        FROM bid_events
        WHERE auction_id = ?
        ORDER BY timestamp ASC, id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.BidEvent
	for rows.Next() {
		var event domain.BidEvent
		var eventType string

		err := rows.Scan(&event.AuctionID, &event.BidID, &event.UserID, &event.Amount,
			&eventType, &event.Reason, &event.WinnerID, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Type = domain.BidEventType(eventType)
		events = append(events, &event)
	}

	return events, rows.Err()
}
