package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"seatshare/internal/domain"
)

// RedisSink publishes every event on one pub/sub channel per recipient, so
// other processes (push gateways, other API replicas) can subscribe to the
// users they serve.
type RedisSink struct {
	client *redis.Client
	prefix string
}

var _ Sink = (*RedisSink)(nil)

func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "seatshare:user:"
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

// Channel returns the pub/sub channel of a user.
func (s *RedisSink) Channel(userID string) string {
	return s.prefix + userID
}

func (s *RedisSink) Deliver(ctx context.Context, e domain.Event) error {
	if len(e.Recipients) == 0 {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, uid := range e.Recipients {
		pipe.Publish(ctx, s.Channel(uid), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
