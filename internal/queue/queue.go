// Package queue buffers audit records between the chat request path and the
// background writer that ships them to object storage. Two backends exist:
//
//   - MemoryQueue: channel based, lost on restart, no external dependencies.
//     Used for single-node and local deployments.
//   - RedisQueue: Redis list based, survives restarts and can be drained by
//     any replica.
//
// Producers never block the request path for long: Enqueue honours the
// caller's context and consumers pull batches with DequeueWithTimeout.
package queue

import (
	"context"
	"time"
)

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue retrieves items from the queue (up to maxItems)
	// Blocks until at least one item is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]interface{}, error)

	// DequeueWithTimeout retrieves items with a timeout
	// Returns items if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// Capacity bounds the in-memory buffer. Zero means BatchSize*10.
	Capacity int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		QueueName:    queueName,
	}
}
