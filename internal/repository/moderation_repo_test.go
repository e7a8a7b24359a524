package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-console/internal/model"
)

func newModerationFixture(t *testing.T) (*ModerationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewModerationRepository(mock), mock
}

func TestModerationRecord(t *testing.T) {
	repo, mock := newModerationFixture(t)
	defer mock.Close()

	days := 7
	reportID := int64(11)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := model.ModerationEntry{
		ID:           "e-1",
		Action:       "suspend",
		ActorID:      1,
		ActorRole:    "admin",
		TargetUserID: 42,
		ReportID:     &reportID,
		Duration:     &days,
		Outcome:      model.OutcomeSuccess,
		OccurredAt:   at,
	}

	mock.ExpectExec("INSERT INTO moderation_entries").
		WithArgs("e-1", "suspend", int64(1), "admin", int64(42), &reportID, &days, model.OutcomeSuccess, (*string)(nil), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRecordWrapsErrors(t *testing.T) {
	repo, mock := newModerationFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO moderation_entries").
		WithAnyArgs().
		WillReturnError(errors.New("connection refused"))

	err := repo.Record(context.Background(), model.ModerationEntry{ID: "e-2", Action: "ban", Error: "backend down"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record moderation entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRecent(t *testing.T) {
	repo, mock := newModerationFixture(t)
	defer mock.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "action", "actor_id", "actor_role", "target_user_id", "report_id",
		"duration_days", "outcome", "error_text", "occurred_at",
	}).
		AddRow("e-1", "suspend", int64(1), "admin", int64(42), nil, int64(30), "failure", "backend down", at)

	mock.ExpectQuery("SELECT (.+) FROM moderation_entries").
		WithArgs(int64(42), 200).
		WillReturnRows(rows)

	entries, err := repo.Recent(context.Background(), model.ModerationQuery{TargetUserID: 42, Limit: 500})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "suspend", entries[0].Action)
	assert.Equal(t, "backend down", entries[0].Error)
	assert.Nil(t, entries[0].ReportID)
	require.NotNil(t, entries[0].Duration)
	assert.Equal(t, 30, *entries[0].Duration)
	assert.Equal(t, at, entries[0].OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
