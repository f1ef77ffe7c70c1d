package events

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// defaultMaxLen bounds the stream; trimming is approximate.
const defaultMaxLen = 10000

// defaultPublishTimeout caps how long a request waits on an XADD.
const defaultPublishTimeout = 2 * time.Second

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStream appends events to a Redis stream with XADD.
type RedisStream struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

func NewRedisStream(client *redis.Client, stream string) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: defaultMaxLen, timeout: defaultPublishTimeout}
}

// Publish appends event to the stream, giving up after the publish timeout
// so an unreachable Redis cannot stall the caller.
func (r *RedisStream) Publish(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":          event.Type,
			"topic":         event.Topic,
			"resource_type": event.ResourceType,
			"resource_id":   event.ResourceID,
			"data":          string(event.Data),
			"timestamp":     event.Timestamp.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
