package queue

import "errors"

var (
	// ErrQueueClosed reports an operation against a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound reports a dead letter ID with no matching entry.
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded reports a record that used up its insert attempts.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
