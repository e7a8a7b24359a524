//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-console/internal/database"
	"ride-console/internal/model"
)

func TestModerationRepositoryAgainstPostgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.Config{URL: url, MaxConns: 2, MinConns: 0})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	target := time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM moderation_entries WHERE target_user_id = $1`, target)
	})

	repo := NewModerationRepository(db.Pool)
	days := 7
	reportID := int64(11)
	base := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.Record(ctx, model.ModerationEntry{
		ID: uuid.NewString(), Action: "suspend", ActorID: 1, ActorRole: "admin",
		TargetUserID: target, Duration: &days, Outcome: model.OutcomeSuccess, OccurredAt: base,
	}))
	require.NoError(t, repo.Record(ctx, model.ModerationEntry{
		ID: uuid.NewString(), Action: "warn", ActorID: 1, ActorRole: "admin",
		TargetUserID: target, ReportID: &reportID, Outcome: model.OutcomeFailure,
		Error: "backend unavailable", OccurredAt: base.Add(time.Second),
	}))

	entries, err := repo.Recent(ctx, model.ModerationQuery{TargetUserID: target})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "warn", entries[0].Action)
	require.NotNil(t, entries[0].ReportID)
	assert.Equal(t, reportID, *entries[0].ReportID)
	assert.Nil(t, entries[0].Duration)
	assert.Equal(t, "backend unavailable", entries[0].Error)

	assert.Equal(t, "suspend", entries[1].Action)
	require.NotNil(t, entries[1].Duration)
	assert.Equal(t, 7, *entries[1].Duration)
	assert.Empty(t, entries[1].Error)
}
