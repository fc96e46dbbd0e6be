package redis

import (
	"context"
	"encoding/json"

	"auction-bidding/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventsChannel = "auction_events"

type EventPublisher struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client, channel: eventsChannel}
}

func (r *EventPublisher) PublishBiddingEvent(ctx context.Context, event *domain.BidEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func encodeEvent(event *domain.BidEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
