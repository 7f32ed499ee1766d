// Package storage holds the Postgres repositories and the profile cache.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"twin_gateway/internal/config"
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// Hot profiles are cached so the generation path usually skips the
	// database entirely.
	profileCache *LRUCache
}

// NewDB creates a new database connection with the profile cache attached.
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		conn:         conn,
		profileCache: NewLRUCache(cfg.ProfileCacheSize, cfg.ProfileCacheTTL),
	}, nil
}

// Close closes the database connection and clears the cache
func (db *DB) Close() error {
	db.profileCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// Stats describes pool and cache state for the health endpoint.
type Stats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int

	ProfileCacheStats CacheStats
}

// GetStats returns current database and cache statistics
func (db *DB) GetStats() Stats {
	stats := db.conn.Stats()

	return Stats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,

		ProfileCacheStats: db.profileCache.GetStats(),
	}
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection
// Use this for custom queries not covered by repositories
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// ProfileCache returns the profile cache
func (db *DB) ProfileCache() *LRUCache {
	return db.profileCache
}

// CleanupExpiredCacheEntries removes expired entries from the profile
// cache. Should be called periodically (e.g., every minute).
func (db *DB) CleanupExpiredCacheEntries() int {
	return db.profileCache.CleanupExpired()
}

// Repository factory methods

// NewUserRepository creates a new user repository
func (db *DB) NewUserRepository() *UserRepository {
	return NewUserRepository(db)
}

// NewProfileRepository creates a new profile repository
func (db *DB) NewProfileRepository() *ProfileRepository {
	return NewProfileRepository(db)
}

// NewHistoryRepository creates a new history repository
func (db *DB) NewHistoryRepository() *HistoryRepository {
	return NewHistoryRepository(db)
}
