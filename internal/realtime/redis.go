package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker relays events through Redis pub/sub so every API instance sees
// changes made by any other.
type RedisBroker struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, prefix: "realtime:", logger: logger}
}

func (b *RedisBroker) channel(t Topic) string {
	return b.prefix + string(t)
}

func (b *RedisBroker) Publish(ctx context.Context, event ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.Topic), body).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(topics ...Topic) *Subscription {
	channels := make([]string, 0, len(topics))
	for _, t := range topics {
		channels = append(channels, b.channel(t))
	}

	pubsub := b.client.Subscribe(context.Background(), channels...)
	out := make(chan ChangeEvent, subscriberBuffer)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed change event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	return newSubscription(out, func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Warn("failed to close redis subscription", zap.Error(err))
		}
	})
}

// Close is a no-op; the Redis client is owned by the server.
func (b *RedisBroker) Close() error {
	return nil
}
