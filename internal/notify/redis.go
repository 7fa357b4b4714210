package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisNotifier broadcasts events over Redis pub/sub. The realtime
// gateway subscribes to these channels and fans out to its clients.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects a notifier to the given Redis client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Connect opens and pings a Redis client for the given address.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// Publish serializes the payload and publishes it on the event's
// channel. Failures are logged and swallowed.
func (n *RedisNotifier) Publish(ctx context.Context, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal event payload")
		return
	}
	if err := n.client.Publish(ctx, event, body).Err(); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("Failed to publish event")
	}
}
