package httpapi

import (
	"context"

	"twin_gateway/internal/models"
	"twin_gateway/internal/orchestrator"
	"twin_gateway/internal/tools"
)

// UserStore resolves and creates user accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// ProfileStore loads and saves digital-twin profiles.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
}

// HistoryRecorder accepts response records for async persistence. The
// answer text is never part of a record.
type HistoryRecorder interface {
	Enqueue(ctx context.Context, record *models.ResponseRecord) error
}

// HistoryLister reads back a user's response history.
type HistoryLister interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.ResponseRecord, error)
}

// Generator is the orchestration entry point the handlers call.
type Generator interface {
	Generate(ctx context.Context, profile *models.UserProfile, in orchestrator.Input) (*models.GenerationResult, error)
	GenerateStream(ctx context.Context, profile *models.UserProfile, in orchestrator.Input) (<-chan tools.Event, string, error)
}
