package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// AssignmentRepository persists account_sprint_assignments. Status
// transitions are guarded twice: the lifecycle service checks the state
// machine, and every UPDATE here carries a status predicate so a stale read
// can never push a terminal row back to life.
type AssignmentRepository struct {
	Conn *sql.DB
}

const assignmentColumns = `
    id, account_id, sprint_id, assignment_date, start_date, end_date,
    status, current_content_index, next_content_due, sprint_instance_id,
    created_at, updated_at
`

func scanAssignment(row interface{ Scan(dest ...any) error }) (*model.SprintAssignment, error) {
	var a model.SprintAssignment
	err := row.Scan(
		&a.ID, &a.AccountID, &a.SprintID, &a.AssignmentDate, &a.StartDate, &a.EndDate,
		&a.Status, &a.CurrentContentIndex, &a.NextContentDue, &a.SprintInstanceID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new assignment in scheduled status and returns the row.
func (r *AssignmentRepository) Create(ctx context.Context, q db.Querier, accountID, sprintID int, startDate time.Time, instanceID string) (*model.SprintAssignment, error) {
	row := q.QueryRowContext(ctx, `
        INSERT INTO account_sprint_assignments (
            account_id, sprint_id, assignment_date, start_date,
            status, current_content_index, sprint_instance_id
        ) VALUES ($1, $2, CURRENT_TIMESTAMP, $3, 'scheduled', 0, $4)
        RETURNING `+assignmentColumns,
		accountID, sprintID, startDate, instanceID,
	)
	assignment, err := scanAssignment(row)
	if err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

// GetByID fetches one assignment inside the caller's transaction.
func (r *AssignmentRepository) GetByID(ctx context.Context, q db.Querier, id int) (*model.SprintAssignment, error) {
	row := q.QueryRowContext(ctx, `
        SELECT `+assignmentColumns+`
        FROM account_sprint_assignments
        WHERE id = $1
    `, id)
	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, appErrors.NewAssignmentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment %d: %w", id, err)
	}
	return assignment, nil
}

// List returns assignments matching the filters, newest first.
func (r *AssignmentRepository) List(ctx context.Context, filters model.AssignmentFilters) ([]model.SprintAssignment, error) {
	where := []string{}
	params := []any{}
	argPos := 1

	if filters.AccountID != 0 {
		where = append(where, fmt.Sprintf("account_id = $%d", argPos))
		params = append(params, filters.AccountID)
		argPos++
	}
	if filters.SprintID != 0 {
		where = append(where, fmt.Sprintf("sprint_id = $%d", argPos))
		params = append(params, filters.SprintID)
		argPos++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		params = append(params, filters.Status)
	}

	query := "SELECT " + assignmentColumns + " FROM account_sprint_assignments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.Conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []model.SprintAssignment{}
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *assignment)
	}
	return assignments, rows.Err()
}

// ByStatusForAccount returns the account's assignments in one status,
// inside the caller's transaction. The emergency engine uses it to find
// what to pause and what to resume.
func (r *AssignmentRepository) ByStatusForAccount(ctx context.Context, q db.Querier, accountID int, status string) ([]model.SprintAssignment, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT `+assignmentColumns+`
        FROM account_sprint_assignments
        WHERE account_id = $1 AND status = $2
        ORDER BY id ASC
    `, accountID, status)
	if err != nil {
		return nil, fmt.Errorf("assignments by status: %w", err)
	}
	defer rows.Close()

	assignments := []model.SprintAssignment{}
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *assignment)
	}
	return assignments, rows.Err()
}

// transition applies one guarded status change. The fromStatuses predicate
// makes the update a no-op when the row moved concurrently, surfaced as
// ErrInvalidTransition.
func (r *AssignmentRepository) transition(ctx context.Context, q db.Querier, id int, setClause string, fromStatuses []string, params ...any) error {
	base := len(params)
	placeholders := make([]string, len(fromStatuses))
	for i, status := range fromStatuses {
		placeholders[i] = fmt.Sprintf("$%d", base+2+i)
		params = append(params, status)
	}

	query := fmt.Sprintf(`
        UPDATE account_sprint_assignments
        SET %s, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND status IN (%s)
    `, setClause, strings.Join(placeholders, ", "))

	args := append([]any{id}, params...)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition assignment %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition assignment %d rows: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("assignment %d: %w", id, appErrors.ErrInvalidTransition)
	}
	return nil
}

// MarkActive starts a scheduled assignment now.
func (r *AssignmentRepository) MarkActive(ctx context.Context, q db.Querier, id int) error {
	return r.transition(ctx, q, id,
		"status = 'active', start_date = CURRENT_TIMESTAMP",
		[]string{model.AssignmentStatusScheduled})
}

// MarkResumed brings a paused assignment back to active without touching
// its original start_date.
func (r *AssignmentRepository) MarkResumed(ctx context.Context, q db.Querier, id int) error {
	return r.transition(ctx, q, id,
		"status = 'active'",
		[]string{model.AssignmentStatusPaused})
}

// MarkPaused suspends an active assignment.
func (r *AssignmentRepository) MarkPaused(ctx context.Context, q db.Querier, id int) error {
	return r.transition(ctx, q, id,
		"status = 'paused'",
		[]string{model.AssignmentStatusActive})
}

// MarkCompleted finishes an active assignment.
func (r *AssignmentRepository) MarkCompleted(ctx context.Context, q db.Querier, id int) error {
	return r.transition(ctx, q, id,
		"status = 'completed', end_date = CURRENT_TIMESTAMP",
		[]string{model.AssignmentStatusActive})
}

// MarkCancelled aborts a non-terminal assignment.
func (r *AssignmentRepository) MarkCancelled(ctx context.Context, q db.Querier, id int) error {
	return r.transition(ctx, q, id,
		"status = 'cancelled', end_date = CURRENT_TIMESTAMP",
		[]string{
			model.AssignmentStatusScheduled,
			model.AssignmentStatusActive,
			model.AssignmentStatusPaused,
		})
}

// AdvanceProgress bumps the progress cursor after an item posts.
func (r *AssignmentRepository) AdvanceProgress(ctx context.Context, q db.Querier, id int) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE account_sprint_assignments
        SET current_content_index = current_content_index + 1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `, id); err != nil {
		return fmt.Errorf("advance assignment %d: %w", id, err)
	}
	return nil
}
