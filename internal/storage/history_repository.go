package storage

import (
	"context"
	"fmt"

	"twin_gateway/internal/models"
)

// HistoryRepository persists response records. The answer text is never
// written here, only the question and the outcome.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{
		db: db,
	}
}

// Create inserts a response record
func (r *HistoryRepository) Create(ctx context.Context, record *models.ResponseRecord) error {
	query := `
		INSERT INTO response_history (user_id, question, model_used, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.conn.QueryRowContext(
		ctx, query,
		record.UserID, record.Question, record.ModelUsed, record.Status,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create response record: %w", err)
	}

	return nil
}

// CreateBatch inserts a batch of response records inside one transaction.
// Either every record lands or none do, so a failed batch can be retried
// record by record without duplicating the ones that had already gone in.
func (r *HistoryRepository) CreateBatch(ctx context.Context, records []*models.ResponseRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO response_history (user_id, question, model_used, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	for _, record := range records {
		err := tx.QueryRowContext(
			ctx, query,
			record.UserID, record.Question, record.ModelUsed, record.Status,
		).Scan(&record.ID, &record.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create response record in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// ListByUser retrieves the most recent records for a user, newest first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.ResponseRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, question, model_used, status, created_at
		FROM response_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var records []*models.ResponseRecord
	err := r.db.conn.SelectContext(ctx, &records, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list response records: %w", err)
	}

	return records, nil
}
