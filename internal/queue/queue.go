// Package queue is the async pipeline that moves response records from
// the generation path to the database. Two backends implement it:
//
//   - memory: channel-based, nothing survives a restart, zero external
//     dependencies. The standalone/development deployment.
//   - redis: list-based, survives restarts and supports multiple worker
//     instances. The production deployment.
//
// Records flow enqueue -> batch worker -> response_history table, with a
// dead letter queue catching records that keep failing to insert.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"twin_gateway/internal/models"
)

// Queue carries response records awaiting persistence.
type Queue interface {
	// Enqueue adds a record to the queue.
	Enqueue(ctx context.Context, record *models.ResponseRecord) error

	// Dequeue retrieves up to maxItems records, blocking until at least
	// one is available or ctx is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]*models.ResponseRecord, error)

	// DequeueWithTimeout retrieves up to maxItems records, returning an
	// empty slice when none arrive before the timeout.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.ResponseRecord, error)

	// Length returns the number of records currently queued.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue.
	Close() error
}

// DeadLetterQueue holds records that exhausted their insert retries.
type DeadLetterQueue interface {
	// Add stores a failed record together with its last error.
	Add(ctx context.Context, record *models.ResponseRecord, err error) error

	// List retrieves up to maxItems dead records.
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a dead record by ID.
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue.
	Close() error
}

// DeadLetterItem is one failed record with its failure context.
type DeadLetterItem struct {
	ID        string                 `json:"id"`
	Record    *models.ResponseRecord `json:"record"`
	Error     string                 `json:"error"`
	Timestamp time.Time              `json:"timestamp"`
	Retries   int                    `json:"retries"`
}

// Config tunes the history pipeline.
type Config struct {
	// BatchSize caps how many records one worker pass inserts together.
	BatchSize int

	// BatchTimeout is how long a pass waits before taking a partial batch.
	BatchTimeout time.Duration

	// MaxRetries bounds per-record insert attempts before the DLQ.
	MaxRetries int

	// RetryBackoff is the initial backoff between insert retries.
	RetryBackoff time.Duration

	// QueueName namespaces the backend keys.
	QueueName string

	// Redis connection settings, used by the redis backend only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}

// newDeadLetterID returns a unique ID for a dead letter entry.
func newDeadLetterID() string {
	return uuid.NewString()
}
