package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_moderation_log.up.sql
var moderationLogSQL string

// EnsureSchema applies the moderation log migration. The SQL is idempotent,
// so it runs on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if _, err := db.Pool.Exec(ctx, moderationLogSQL); err != nil {
		return fmt.Errorf("apply moderation log migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}
