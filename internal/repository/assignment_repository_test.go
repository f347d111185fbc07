package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
)

func newAssignmentRepo(t *testing.T) (*AssignmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &AssignmentRepository{Conn: conn}, mock
}

func TestMarkActiveGuardsStatus(t *testing.T) {
	repo, mock := newAssignmentRepo(t)

	// Row moved concurrently, no rows match the status predicate.
	mock.ExpectExec("UPDATE account_sprint_assignments").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkActive(context.Background(), repo.Conn, 12)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedFromActive(t *testing.T) {
	repo, mock := newAssignmentRepo(t)

	mock.ExpectExec("UPDATE account_sprint_assignments").
		WithArgs(12, "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCompleted(context.Background(), repo.Conn, 12)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCancelledAcceptsAnyNonTerminal(t *testing.T) {
	repo, mock := newAssignmentRepo(t)

	mock.ExpectExec("UPDATE account_sprint_assignments").
		WithArgs(12, "scheduled", "active", "paused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCancelled(context.Background(), repo.Conn, 12)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newAssignmentRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), repo.Conn, 99)
	assert.True(t, errors.Is(err, appErrors.ErrNotFoundOrInvalidState))
}
