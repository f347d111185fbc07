package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

func newQueueRepo(t *testing.T) (*QueueRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &QueueRepository{Conn: conn}, mock
}

func TestRescheduleItemResetsRetryState(t *testing.T) {
	repo, mock := newQueueRepo(t)
	newTime := time.Now().Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE content_queue").
		WithArgs(newTime, 17).
		WillReturnRows(sqlmock.NewRows([]string{"sprint_assignment_id"}).AddRow(4))
	mock.ExpectExec("UPDATE account_sprint_assignments").
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RescheduleItem(context.Background(), 17, newTime)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleItemRejectsWrongStatus(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE content_queue").
		WillReturnRows(sqlmock.NewRows([]string{"sprint_assignment_id"}))
	mock.ExpectRollback()

	err := repo.RescheduleItem(context.Background(), 17, time.Now())
	assert.True(t, errors.Is(err, appErrors.ErrNotFoundOrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryFailedItemRequeuesWithBackoff(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE content_queue").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"sprint_assignment_id", "retry_count"}).AddRow(4, 2))
	mock.ExpectExec("UPDATE account_sprint_assignments").
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RetryFailedItem(context.Background(), 9)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryFailedItemCancelsAfterCap(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE content_queue").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"sprint_assignment_id", "retry_count"}).AddRow(4, MaxRetryAttempts+1))
	mock.ExpectExec("UPDATE content_queue").
		WithArgs(9, "Maximum retry attempts exceeded").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE account_sprint_assignments").
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RetryFailedItem(context.Background(), 9)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryFailedItemRejectsNonFailed(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE content_queue").
		WillReturnRows(sqlmock.NewRows([]string{"sprint_assignment_id", "retry_count"}))
	mock.ExpectRollback()

	err := repo.RetryFailedItem(context.Background(), 9)
	assert.True(t, errors.Is(err, appErrors.ErrNotFoundOrInvalidState))
}

func TestRemoveFromQueueRefusesPosted(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id, sprint_assignment_id, status, emergency_content").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "sprint_assignment_id", "status", "emergency_content"}).
			AddRow(1, 4, model.QueueStatusPosted, false))
	mock.ExpectRollback()

	err := repo.RemoveFromQueue(context.Background(), 3)
	assert.True(t, errors.Is(err, appErrors.ErrNotFoundOrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveFromQueueEmergencyTouchesState(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id, sprint_assignment_id, status, emergency_content").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "sprint_assignment_id", "status", "emergency_content"}).
			AddRow(1, nil, model.QueueStatusQueued, true))
	mock.ExpectExec("DELETE FROM content_queue").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE account_content_state").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RemoveFromQueue(context.Background(), 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpdateQueueIsolatesFailures(t *testing.T) {
	repo, mock := newQueueRepo(t)
	newTime := time.Now().Add(6 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE content_queue SET scheduled_time").
		WithArgs(newTime, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second item is posted, the status predicate matches nothing.
	mock.ExpectExec("UPDATE content_queue SET scheduled_time").
		WithArgs(newTime, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := repo.BulkUpdateQueue(context.Background(), []model.QueueUpdate{
		{ItemID: 1, ScheduledTime: &newTime},
		{ItemID: 2, ScheduledTime: &newTime},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].ItemID)
}

func TestBulkUpdateQueueRejectsEmptyUpdate(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := repo.BulkUpdateQueue(context.Background(), []model.QueueUpdate{{ItemID: 5}})
	require.NoError(t, err)

	assert.Equal(t, 0, result.UpdatedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "No valid update fields provided", result.Errors[0].ErrorMessage)
}

func TestCancelForAccountDefaultsReason(t *testing.T) {
	repo, mock := newQueueRepo(t)

	mock.ExpectExec("UPDATE content_queue").
		WithArgs(7, "Cancelled by user").
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.CancelForAccount(context.Background(), repo.Conn, 7, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestInsertItemsEmptyIsNoop(t *testing.T) {
	repo, mock := newQueueRepo(t)

	err := repo.InsertItems(context.Background(), repo.Conn, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
