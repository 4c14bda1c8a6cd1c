package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned when a non-blocking enqueue finds no room
	ErrQueueFull = errors.New("queue is full")
)
