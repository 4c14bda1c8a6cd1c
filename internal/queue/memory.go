package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items  chan interface{}
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	capacity := config.Capacity
	if capacity <= 0 {
		capacity = config.BatchSize * 10 // Buffer for 10 batches
	}
	if capacity <= 0 {
		capacity = 1
	}

	return &MemoryQueue{
		items:  make(chan interface{}, capacity),
		done:   make(chan struct{}),
		config: config,
	}
}

// Enqueue adds an item to the queue without blocking.
// Returns ErrQueueFull when the buffer has no room.
func (q *MemoryQueue) Enqueue(ctx context.Context, item interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves items from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	var items []interface{}

	// Block until we get at least one item
	select {
	case item := <-q.items:
		items = append(items, item)
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.fill(items, maxItems), nil
}

// DequeueWithTimeout retrieves items with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	items := []interface{}{}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Try to get first item with timeout
	select {
	case item := <-q.items:
		items = append(items, item)
	case <-timer.C:
		return items, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.fill(items, maxItems), nil
}

// fill tops up items without blocking
func (q *MemoryQueue) fill(items []interface{}, maxItems int) []interface{} {
	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			return items
		}
	}
	return items
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	if q.isClosed() {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

// Close shuts down the queue. Buffered items are discarded.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	return nil
}

func (q *MemoryQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
