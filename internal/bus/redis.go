package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisMirror publishes every item passed through it onto a Redis pub/sub
// channel as JSON, in addition to whatever in-process Topic the caller also
// publishes to. It exists for the optional multi-process fan-out used when
// more than one edgecore process shares mempool/opportunity state; the
// in-process channel bus is the default, and a single-process deployment
// never constructs one.
type RedisMirror struct {
	client  *redis.Client
	channel string
}

// NewRedisMirror builds a mirror publishing onto channel via client.
func NewRedisMirror(client *redis.Client, channel string) *RedisMirror {
	return &RedisMirror{client: client, channel: channel}
}

// Publish JSON-encodes v and publishes it to the configured Redis channel.
func (m *RedisMirror) Publish(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, m.channel, payload).Err()
}

// Subscribe returns a channel of decoded T values received on the Redis
// channel, for a second process to rejoin the bus.
func Subscribe[T any](ctx context.Context, client *redis.Client, channel string) (<-chan T, error) {
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan T)
	go func() {
		defer close(out)
		defer sub.Close()
		for msg := range sub.Channel() {
			var v T
			if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
