// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// DefaultQueueName is the Redis list (queue) name for game action logs.
const DefaultQueueName = "wordjamboree_actions"

// Connect opens a Redis client and checks that the server answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionQueue pushes committed game actions onto the historian's Redis list.
type ActionQueue struct {
	rdb  *redis.Client
	name string
}

// NewActionQueue returns a queue writing to the list name, or DefaultQueueName.
func NewActionQueue(rdb *redis.Client, name string) *ActionQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, name: name}
}

// Name is the Redis list the queue writes to.
func (q *ActionQueue) Name() string { return q.name }

// Publish serializes the given record to JSON, then pushes it to the Redis queue.
func (q *ActionQueue) Publish(ctx context.Context, record models.GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}
