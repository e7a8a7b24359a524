package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"ride-console/internal/model"
)

// DBTX is the subset of pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ModerationRepository struct {
	db DBTX
}

func NewModerationRepository(db DBTX) *ModerationRepository {
	return &ModerationRepository{db: db}
}

func (r *ModerationRepository) Record(ctx context.Context, entry model.ModerationEntry) error {
	var errText *string
	if entry.Error != "" {
		errText = &entry.Error
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO moderation_entries
		 (id, action, actor_id, actor_role, target_user_id, report_id,
		  duration_days, outcome, error_text, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.Action, entry.ActorID, entry.ActorRole, entry.TargetUserID, entry.ReportID,
		entry.Duration, entry.Outcome, errText, entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("record moderation entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, optionally for a single target user.
func (r *ModerationRepository) Recent(ctx context.Context, query model.ModerationQuery) ([]model.ModerationEntry, error) {
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, action, actor_id, actor_role, target_user_id, report_id,
		        duration_days, outcome, COALESCE(error_text, ''), occurred_at
		 FROM moderation_entries
		 WHERE ($1::bigint = 0 OR target_user_id = $1)
		 ORDER BY occurred_at DESC
		 LIMIT $2`,
		query.TargetUserID, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("query moderation entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ModerationEntry, 0)
	for rows.Next() {
		var e model.ModerationEntry
		var reportID pgtype.Int8
		var duration pgtype.Int4
		var occurredAt time.Time
		if err := rows.Scan(
			&e.ID, &e.Action, &e.ActorID, &e.ActorRole, &e.TargetUserID, &reportID,
			&duration, &e.Outcome, &e.Error, &occurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation entry: %w", err)
		}
		if reportID.Valid {
			id := reportID.Int64
			e.ReportID = &id
		}
		if duration.Valid {
			days := int(duration.Int32)
			e.Duration = &days
		}
		e.OccurredAt = occurredAt.UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
