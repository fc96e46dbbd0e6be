package memory

import (
	"context"
	"sync"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
)

// EventBus fans bid events out to in-process subscribers. Slow subscribers
// drop events once their buffer is full rather than blocking publishers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[int]chan *domain.BidEvent
	nextID      int
	bufferSize  int
	log         logger.Logger
}

func NewEventBus(bufferSize int, log logger.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[int]chan *domain.BidEvent),
		bufferSize:  bufferSize,
		log:         log,
	}
}

func (b *EventBus) PublishBiddingEvent(ctx context.Context, event *domain.BidEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.Warn("Dropping event for slow subscriber", "subscriber", id, "type", event.Type,
				"auction_id", event.AuctionID)
		}
	}
	return nil
}

func (b *EventBus) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	ch := make(chan *domain.BidEvent, b.bufferSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case event := <-ch:
			if err := handler(event); err != nil {
				b.log.Error("Failed to handle event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
