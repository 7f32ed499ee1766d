package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"twin_gateway/internal/models"
)

// ProfileRepository handles digital-twin profile database operations.
// Reads go through the profile cache; writes invalidate it.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

// GetByUserID retrieves the profile for a user, cache first.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserProfile, error) {
	cacheKey := profileCacheKey(userID)
	if cached, found := r.db.profileCache.Get(cacheKey); found {
		if profile, ok := cached.(*models.UserProfile); ok {
			return profile.Snapshot(), nil
		}
	}

	var profile models.UserProfile
	query := `
		SELECT user_id, language, demographics, preferences, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	err := r.db.conn.GetContext(ctx, &profile, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	r.db.profileCache.Set(cacheKey, profile.Snapshot())
	return &profile, nil
}

// Upsert creates or replaces the profile for a user.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO profiles (user_id, language, demographics, preferences, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET language = EXCLUDED.language,
		    demographics = EXCLUDED.demographics,
		    preferences = EXCLUDED.preferences,
		    updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.conn.QueryRowContext(
		ctx, query,
		profile.UserID, profile.Language, profile.Demographics, profile.Preferences,
	).Scan(&profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	r.db.profileCache.Delete(profileCacheKey(profile.UserID))
	return nil
}

func profileCacheKey(userID int64) string {
	return "profile:" + strconv.FormatInt(userID, 10)
}
