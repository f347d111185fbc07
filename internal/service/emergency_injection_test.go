package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func accountStateRow(accountID int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"account_id", "current_location", "active_sprint_ids", "cooldown_until",
		"idle_since", "silence_during_idle", "last_emergency_content", "updated_at",
	}).AddRow(accountID, "home", "{}", nil, nil, false, nil, time.Now())
}

func TestInsertOverrideCancelsConflictWindow(t *testing.T) {
	conn, mock := newMockDB(t)
	engine := &EmergencyQueueService{
		Conn:           conn,
		QueueRepo:      &repository.QueueRepository{Conn: conn},
		AssignmentRepo: &repository.AssignmentRepository{Conn: conn},
		StateRepo:      &repository.AccountStateRepository{Conn: conn},
	}

	slot := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	inWindow := slot.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO account_content_state").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(7).
		WillReturnRows(accountStateRow(7))
	mock.ExpectQuery("SET status = 'cancelled'").
		WithArgs(7, slot.Add(-2*time.Hour), slot.Add(2*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "scheduled_time", "content_type"}).
			AddRow(41, inWindow, "post"))
	mock.ExpectQuery("INSERT INTO content_queue").
		WithArgs(7, slot, "story", model.PriorityEmergency).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))
	mock.ExpectExec("last_emergency_content").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	content := model.EmergencyContent{
		FilePath:    "/content/breaking.jpg",
		FileName:    "breaking.jpg",
		ContentType: "story",
		Priority:    model.PriorityCritical,
	}
	itemID, insertedAt, adjustments, err := engine.Insert(context.Background(), 7, content, model.StrategyOverrideConflicts, &slot)
	require.NoError(t, err)

	assert.Equal(t, 99, itemID)
	assert.True(t, insertedAt.Equal(slot))
	require.Len(t, adjustments, 1)
	assert.Equal(t, model.AdjustmentItemCancelled, adjustments[0].Type)
	require.NotNil(t, adjustments[0].QueueItemID)
	assert.Equal(t, 41, *adjustments[0].QueueItemID)
	require.NotNil(t, adjustments[0].OriginalTime)
	assert.True(t, adjustments[0].OriginalTime.Equal(inWindow))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func assignmentRow(id, accountID, sprintID, contentIndex int, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "account_id", "sprint_id", "assignment_date", "start_date", "end_date",
		"status", "current_content_index", "next_content_due", "sprint_instance_id",
		"created_at", "updated_at",
	}).AddRow(id, accountID, sprintID, now, now, nil, status, contentIndex, nil, "5f0c2c6e", now, now)
}

func TestInsertPauseSprintsCancelsPausedItems(t *testing.T) {
	conn, mock := newMockDB(t)
	engine := &EmergencyQueueService{
		Conn:           conn,
		QueueRepo:      &repository.QueueRepository{Conn: conn},
		AssignmentRepo: &repository.AssignmentRepository{Conn: conn},
		StateRepo:      &repository.AccountStateRepository{Conn: conn},
	}

	slot := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO account_content_state").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(7).
		WillReturnRows(accountStateRow(7))
	mock.ExpectQuery("ORDER BY id ASC").
		WithArgs(7, model.AssignmentStatusActive).
		WillReturnRows(assignmentRow(12, 7, 3, 1, model.AssignmentStatusActive))
	mock.ExpectExec("status = 'paused'").
		WithArgs(12, model.AssignmentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The paused assignment's queued items must be cancelled, not left for
	// the gap walk or the dispatcher.
	mock.ExpectExec("sprint_assignment_id").
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("next_content_due").
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("emergency_content = false").
		WithArgs(7, slot).
		WillReturnRows(sqlmock.NewRows([]string{"id", "scheduled_time", "content_type"}))
	mock.ExpectQuery("INSERT INTO content_queue").
		WithArgs(7, slot, "story", model.PriorityEmergency).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))
	mock.ExpectExec("last_emergency_content").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	content := model.EmergencyContent{
		FilePath:    "/content/breaking.jpg",
		FileName:    "breaking.jpg",
		ContentType: "story",
		Priority:    model.PriorityCritical,
	}
	_, _, adjustments, err := engine.Insert(context.Background(), 7, content, model.StrategyPauseSprints, &slot)
	require.NoError(t, err)

	require.Len(t, adjustments, 1)
	assert.Equal(t, model.AdjustmentSprintPaused, adjustments[0].Type)
	require.NotNil(t, adjustments[0].AssignmentID)
	assert.Equal(t, 12, *adjustments[0].AssignmentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResumeSprintsRegeneratesQueue(t *testing.T) {
	conn, mock := newMockDB(t)
	engine := &EmergencyQueueService{
		Conn:           conn,
		QueueRepo:      &repository.QueueRepository{Conn: conn},
		AssignmentRepo: &repository.AssignmentRepository{Conn: conn},
		SprintRepo:     &repository.SprintRepository{Conn: conn},
		StateRepo:      &repository.AccountStateRepository{Conn: conn},
		Calculator:     schedule.New(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO account_content_state").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(7).
		WillReturnRows(accountStateRow(7))
	mock.ExpectQuery("ORDER BY id ASC").
		WithArgs(7, model.AssignmentStatusPaused).
		WillReturnRows(assignmentRow(12, 7, 3, 1, model.AssignmentStatusPaused))
	mock.ExpectExec("status = 'active'").
		WithArgs(12, model.AssignmentStatusPaused).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Regeneration picks up where the progress cursor stopped.
	mock.ExpectQuery("FROM sprint_content_items").
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "sprint_id", "content_order", "content_categories",
			"delay_hours_min", "delay_hours_max", "is_after_sprint_content",
		}).AddRow(31, 3, 2, "{story}", 1, 2, false))
	mock.ExpectExec("INSERT INTO content_queue").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("next_content_due").
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	adjustments, err := engine.ResumeSprints(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, adjustments, 1)
	assert.Equal(t, model.AdjustmentSprintResumed, adjustments[0].Type)
	require.NotNil(t, adjustments[0].AssignmentID)
	assert.Equal(t, 12, *adjustments[0].AssignmentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func targetAccountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "status", "current_location", "active_sprint_ids"})
}

func TestPreviewCountsConflictsAndSkips(t *testing.T) {
	conn, mock := newMockDB(t)
	svc := &EmergencyService{
		AccountRepo: &repository.AccountRepository{Conn: conn},
		Conflicts: &ConflictService{
			SprintRepo: &fakeSprintReader{
				active: []model.Sprint{{ID: 3, Name: "Office Days", SprintType: strPtr("work")}},
			},
		},
	}

	mock.ExpectQuery("FROM accounts a").
		WillReturnRows(targetAccountRows().AddRow(7, "acct7", "active", "home", "{3}"))

	preview, err := svc.Preview(context.Background(), model.EmergencyInjectionRequest{
		EmergencyContent: model.EmergencyContent{
			FilePath:     "/content/beach.jpg",
			FileName:     "beach.jpg",
			ContentType:  "story",
			Priority:     model.PriorityStandard,
			ThemeContext: "vacation",
		},
		TargetAccountIDs: []int{7},
		ConflictStrategy: model.StrategySkipConflicted,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, preview.TotalTargetAccounts)
	assert.Equal(t, 1, preview.AccountsWithConflicts)
	assert.Equal(t, 1, preview.AccountsSkipped)
	assert.Equal(t, 0, preview.EstimatedSuccessfulInjections)
	assert.Equal(t, 1, preview.ConflictSummary.SprintConflicts)
	assert.Equal(t, 1, preview.ConflictSummary.ThemeConflicts)
	assert.Equal(t, 0, preview.ConflictSummary.LocationConflicts)
	assert.Equal(t, 0, preview.ConflictSummary.HighSeverityConflicts)
	assert.Equal(t, 1, preview.ConflictSummary.LowSeverityConflicts)
	require.Len(t, preview.Recommendations, 3)
	assert.Contains(t, preview.Recommendations[0], "1 accounts have conflicts")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInjectSkipConflictedDoesNotCountSkipsAsFailures(t *testing.T) {
	conn, mock := newMockDB(t)
	svc := &EmergencyService{
		AccountRepo: &repository.AccountRepository{Conn: conn},
		LogRepo:     &repository.EmergencyLogRepository{Conn: conn},
		Conflicts: &ConflictService{
			SprintRepo: &fakeSprintReader{
				active: []model.Sprint{{ID: 3, Name: "Office Days", SprintType: strPtr("work")}},
			},
		},
		Logger: zerolog.Nop(),
	}

	mock.ExpectQuery("FROM accounts a").
		WillReturnRows(targetAccountRows().AddRow(7, "acct7", "active", "home", "{3}"))

	result, err := svc.Inject(context.Background(), model.EmergencyInjectionRequest{
		EmergencyContent: model.EmergencyContent{
			FilePath:     "/content/beach.jpg",
			FileName:     "beach.jpg",
			ContentType:  "story",
			Priority:     model.PriorityStandard,
			ThemeContext: "vacation",
		},
		TargetAccountIDs: []int{7},
		ConflictStrategy: model.StrategySkipConflicted,
	})
	require.NoError(t, err)

	assert.Empty(t, result.SuccessfulInjections)
	assert.Empty(t, result.FailedInjections)
	assert.Equal(t, []int{7}, result.AccountsSkipped)
	assert.Equal(t, 0, result.TotalAccountsAffected)
	assert.Equal(t, "Emergency content injection completed: 0/1 successful (0%). 0 conflicts resolved.", result.Summary)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInjectIsolatesRequests(t *testing.T) {
	conn, mock := newMockDB(t)
	svc := &EmergencyService{
		AccountRepo: &repository.AccountRepository{Conn: conn},
		Conflicts:   &ConflictService{SprintRepo: &fakeSprintReader{}},
	}

	// Only the second request reaches target resolution; it finds nobody.
	mock.ExpectQuery("FROM accounts a").
		WillReturnRows(targetAccountRows())

	outcomes := svc.BatchInject(context.Background(), []model.EmergencyInjectionRequest{
		{EmergencyContent: model.EmergencyContent{FileName: "no-path.jpg"}},
		{
			EmergencyContent: model.EmergencyContent{
				FilePath:    "/content/ok.jpg",
				FileName:    "ok.jpg",
				ContentType: "post",
				Priority:    model.PriorityHigh,
			},
			TargetAccountIDs: []int{5},
		},
	})

	require.Len(t, outcomes, 2)
	assert.Equal(t, 0, outcomes[0].Index)
	assert.Contains(t, outcomes[0].Error, "invalid emergency content")
	assert.Nil(t, outcomes[0].Result)
	assert.Equal(t, 1, outcomes[1].Index)
	assert.Contains(t, outcomes[1].Error, "no eligible target accounts")
	assert.Nil(t, outcomes[1].Result)

	assert.NoError(t, mock.ExpectationsWereMet())
}
