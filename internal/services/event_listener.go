package services

import (
	"context"
	"fmt"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
)

// EventListener fans bidding events out to the websocket watchers of each
// auction.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log.With("component", "event_listener"),
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.HandleBidEvent)
}

func (el *EventListener) HandleBidEvent(event *domain.BidEvent) error {
	el.log.Debug("Handling bid event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.BidAccepted:
		return el.handleBidAccepted(event)
	case domain.BidRejected:
		// the bidder already got a direct reply
		return nil
	case domain.AuctionSettled:
		return el.handleAuctionSettled(event)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleBidAccepted(event *domain.BidEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":          "bid_update",
		"auction_id":    event.AuctionID,
		"bid_id":        event.BidID,
		"current_price": event.Amount.String(),
		"bidder_id":     event.UserID,
		"timestamp":     event.Timestamp,
	})
}

func (el *EventListener) handleAuctionSettled(event *domain.BidEvent) error {
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":        "auction_settled",
		"auction_id":  event.AuctionID,
		"winner_id":   event.WinnerID,
		"final_price": event.Amount.String(),
		"timestamp":   event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast settlement", "auction_id", event.AuctionID, "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to close connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
