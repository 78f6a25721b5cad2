// internal/events/redis.go

// Package events publishes room action records onto a Redis list for the
// analytics consumer. Publishing is best-effort: the engine logs failures
// and never fails an action over them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list action records are pushed onto.
const DefaultQueueName = "loop_room_actions"

// ActionRecord holds the minimal info the analytics consumer needs about one
// successful room mutation.
type ActionRecord struct {
	RoomID      string `json:"room_id"`
	Action      string `json:"action"`
	ActorUserID string `json:"actor_user_id"`
	LoopID      string `json:"loop_id,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Publisher pushes action records somewhere downstream.
type Publisher interface {
	PublishAction(ctx context.Context, record ActionRecord) error
	Close() error
}

// RedisPublisher implements Publisher over a Redis list.
type RedisPublisher struct {
	client *redis.Client
	queue  string
}

// NewRedisPublisher connects a Redis client and verifies it with a ping.
// An empty queue name falls back to DefaultQueueName.
func NewRedisPublisher(addr string, db int, queue string) (*RedisPublisher, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisPublisher{client: client, queue: queue}, nil
}

func (p *RedisPublisher) PublishAction(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to %q: %w", p.queue, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
