package queue

import (
	"context"
	"sync"
	"time"

	"twin_gateway/internal/models"
)

// MemoryQueue buffers records on a channel. Used when no Redis address is
// configured; pending records are lost on restart.
type MemoryQueue struct {
	records chan *models.ResponseRecord
	mu      sync.RWMutex
	closed  bool
	config  *Config
}

// NewMemoryQueue creates an in-memory record queue.
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}
	return &MemoryQueue{
		// Room for several batches so enqueue bursts do not block the
		// generation path while the worker is mid-insert.
		records: make(chan *models.ResponseRecord, config.BatchSize*10),
		config:  config,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, record *models.ResponseRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.records <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]*models.ResponseRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	batch := make([]*models.ResponseRecord, 0, maxItems)

	// Block for the first record.
	select {
	case record := <-q.records:
		batch = append(batch, record)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.drain(batch, maxItems), nil
}

func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.ResponseRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	batch := make([]*models.ResponseRecord, 0, maxItems)

	select {
	case record := <-q.records:
		batch = append(batch, record)
	case <-time.After(timeout):
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.drain(batch, maxItems), nil
}

// drain tops up a batch with whatever is immediately available.
func (q *MemoryQueue) drain(batch []*models.ResponseRecord, maxItems int) []*models.ResponseRecord {
	for len(batch) < maxItems {
		select {
		case record := <-q.records:
			batch = append(batch, record)
		default:
			return batch
		}
	}
	return batch
}

func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.records), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.records)
	return nil
}

// MemoryDeadLetterQueue keeps dead records in an ordered in-memory slice.
type MemoryDeadLetterQueue struct {
	dead   []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates an in-memory dead letter queue.
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		dead: make([]DeadLetterItem, 0),
	}
}

func (q *MemoryDeadLetterQueue) Add(ctx context.Context, record *models.ResponseRecord, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.dead = append(q.dead, DeadLetterItem{
		ID:        newDeadLetterID(),
		Record:    record,
		Error:     err.Error(),
		Timestamp: time.Now(),
		Retries:   0,
	})
	return nil
}

func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.dead) {
		maxItems = len(q.dead)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.dead[:maxItems])
	return result, nil
}

func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.dead {
		if item.ID == id {
			q.dead = append(q.dead[:i], q.dead[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.dead = nil
	return nil
}
