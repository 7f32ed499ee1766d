package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"twin_gateway/internal/models"
	"twin_gateway/internal/queue"
)

// historyWriter is the slice of the repository the worker needs.
type historyWriter interface {
	Create(ctx context.Context, record *models.ResponseRecord) error
	CreateBatch(ctx context.Context, records []*models.ResponseRecord) error
}

// HistoryQueueWorker persists response records asynchronously so the
// generation path never blocks on the database.
type HistoryQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	repo        historyWriter
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewHistoryQueueWorker creates a new history queue worker
func NewHistoryQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, db *DB, config *queue.Config) *HistoryQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("history")
	}

	return &HistoryQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        NewHistoryRepository(db),
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *HistoryQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *HistoryQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a response record to the queue
func (w *HistoryQueueWorker) Enqueue(ctx context.Context, record *models.ResponseRecord) error {
	return w.queue.Enqueue(ctx, record)
}

// run is the main worker loop
func (w *HistoryQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			slog.Info("history worker stopping")
			return
		case <-ctx.Done():
			slog.Info("history worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch drains one batch from the queue and inserts it. The batch
// insert is transactional, so when it fails nothing has been written and
// every record can be retried individually without duplicates.
func (w *HistoryQueueWorker) processBatch(ctx context.Context) {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		slog.Error("failed to dequeue response records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	slog.Debug("processing history batch", "count", len(records))

	if err := w.repo.CreateBatch(ctx, records); err != nil {
		slog.Error("failed to insert batch, falling back to individual inserts", "error", err)
		for _, record := range records {
			if err := w.processItem(ctx, record); err != nil {
				slog.Error("failed to process response record", "error", err)
			}
		}
	}
}

// processItem processes a single response record with retries
func (w *HistoryQueueWorker) processItem(ctx context.Context, record *models.ResponseRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			slog.Debug("retrying response record", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.repo.Create(ctx, record); err != nil {
			lastErr = err
			slog.Error("failed to insert response record", "attempt", attempt, "error", err)
			continue
		}

		return nil
	}

	// Max retries exceeded - add to dead letter queue
	if w.dlq != nil {
		if err := w.dlq.Add(ctx, record, lastErr); err != nil {
			slog.Error("failed to add to dead letter queue", "error", err)
		} else {
			slog.Warn("response record moved to DLQ", "user_id", record.UserID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %s", queue.ErrMaxRetriesExceeded, lastErr)
}

// QueueLength returns the current queue length
func (w *HistoryQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}
