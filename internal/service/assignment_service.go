package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
)

// validTransitions is the assignment state machine. Completed and cancelled
// have no exits.
var validTransitions = map[string][]string{
	model.AssignmentStatusScheduled: {model.AssignmentStatusActive, model.AssignmentStatusCancelled},
	model.AssignmentStatusActive:    {model.AssignmentStatusPaused, model.AssignmentStatusCompleted, model.AssignmentStatusCancelled},
	model.AssignmentStatusPaused:    {model.AssignmentStatusActive, model.AssignmentStatusCancelled},
}

func canTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AssignmentService owns the sprint assignment lifecycle: creation with
// validation and queue expansion, activation, pause/resume, completion and
// cancellation. Every mutation runs in one transaction that starts by
// locking the account's state row.
type AssignmentService struct {
	Conn           *sql.DB
	AssignmentRepo *repository.AssignmentRepository
	SprintRepo     *repository.SprintRepository
	StateRepo      *repository.AccountStateRepository
	QueueRepo      *repository.QueueRepository
	Validator      *ValidationService
	Calculator     *schedule.Calculator
	Logger         zerolog.Logger
}

// CreateAssignment validates, creates and schedules one assignment. When
// the start date is not in the future the assignment is activated in the
// same transaction.
func (s *AssignmentService) CreateAssignment(ctx context.Context, accountID, sprintID int, opts model.AssignmentOptions) (*model.SprintAssignment, error) {
	if accountID <= 0 || sprintID <= 0 {
		return nil, appErrors.NewValidationError("account_id and sprint_id are required")
	}

	var created *model.SprintAssignment
	err := db.WithTx(ctx, s.Conn, func(tx *sql.Tx) error {
		if _, err := s.StateRepo.LockForUpdate(ctx, tx, accountID); err != nil {
			return err
		}

		if !opts.SkipValidation {
			validation, err := s.Validator.ValidateAssignment(ctx, tx, accountID, sprintID)
			if err != nil {
				return err
			}
			if !validation.IsValid && !opts.ForceOverride {
				reasons := []string{}
				for _, check := range validation.EligibilityChecks {
					if !check.Passed {
						reasons = append(reasons, check.Message)
					}
				}
				for _, conflict := range validation.Conflicts {
					if conflict.Severity == model.SeverityError {
						reasons = append(reasons, conflict.Message)
					}
				}
				return appErrors.NewConflictBlocked(accountID, sprintID, reasons)
			}
		}

		sprint, err := s.SprintRepo.GetByID(ctx, tx, sprintID)
		if err != nil {
			return err
		}

		now := time.Now()
		startDate := now
		if opts.StartDate != nil {
			startDate = *opts.StartDate
		}

		assignment, err := s.AssignmentRepo.Create(ctx, tx, accountID, sprintID, startDate, uuid.NewString())
		if err != nil {
			return err
		}

		items, err := s.SprintRepo.ContentItems(ctx, tx, sprintID)
		if err != nil {
			return err
		}

		expanded := s.Calculator.Calculate(items, startDate)
		if err := s.QueueRepo.InsertItems(ctx, tx, queueItemsFromSchedule(assignment, expanded)); err != nil {
			return err
		}
		if err := s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID); err != nil {
			return err
		}

		if !startDate.After(now) {
			if err := s.AssignmentRepo.MarkActive(ctx, tx, assignment.ID); err != nil {
				return err
			}
			if err := s.StateRepo.ActivateSprint(ctx, tx, accountID, sprintID, sprint.Location); err != nil {
				return err
			}
		}

		created, err = s.AssignmentRepo.GetByID(ctx, tx, assignment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Int("assignment_id", created.ID).
		Int("account_id", accountID).
		Int("sprint_id", sprintID).
		Str("status", created.Status).
		Msg("assignment created")
	return created, nil
}

// BulkAssign creates many assignments with per-pair isolation: one failure
// is reported, not propagated.
func (s *AssignmentService) BulkAssign(ctx context.Context, req model.BulkAssignmentRequest) model.BulkAssignmentResult {
	result := model.BulkAssignmentResult{
		SuccessfulAssignments: []model.SprintAssignment{},
		FailedAssignments:     []model.FailedAssignment{},
	}
	result.Summary.TotalRequested = len(req.Assignments)

	for _, request := range req.Assignments {
		opts := model.AssignmentOptions{
			StartDate:     request.StartDate,
			ForceOverride: req.ForceOverride,
		}
		assignment, err := s.CreateAssignment(ctx, request.AccountID, request.SprintID, opts)
		if err != nil {
			failed := model.FailedAssignment{
				AccountID: request.AccountID,
				SprintID:  request.SprintID,
				Error:     err.Error(),
			}
			var blocked *appErrors.ConflictBlockedError
			if errors.As(err, &blocked) {
				for _, reason := range blocked.Conflicts {
					failed.Conflicts = append(failed.Conflicts, model.AssignmentConflict{
						Type:     "validation",
						Severity: model.SeverityError,
						Message:  reason,
					})
				}
			}
			result.FailedAssignments = append(result.FailedAssignments, failed)
			result.Summary.Failed++
			continue
		}
		result.SuccessfulAssignments = append(result.SuccessfulAssignments, *assignment)
		result.Summary.Successful++
	}
	return result
}

// GetAssignment fetches one assignment.
func (s *AssignmentService) GetAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.AssignmentRepo.GetByID(ctx, s.Conn, id)
}

// ListAssignments returns assignments matching the filters.
func (s *AssignmentService) ListAssignments(ctx context.Context, filters model.AssignmentFilters) ([]model.SprintAssignment, error) {
	return s.AssignmentRepo.List(ctx, filters)
}

// ActivateAssignment starts a scheduled assignment ahead of its start date.
func (s *AssignmentService) ActivateAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.mutate(ctx, id, model.AssignmentStatusActive, func(tx *sql.Tx, assignment *model.SprintAssignment) error {
		sprint, err := s.SprintRepo.GetByID(ctx, tx, assignment.SprintID)
		if err != nil {
			return err
		}
		if err := s.AssignmentRepo.MarkActive(ctx, tx, assignment.ID); err != nil {
			return err
		}
		return s.StateRepo.ActivateSprint(ctx, tx, assignment.AccountID, assignment.SprintID, sprint.Location)
	})
}

// PauseAssignment suspends an active assignment and cancels its pending
// queue items.
func (s *AssignmentService) PauseAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.mutate(ctx, id, model.AssignmentStatusPaused, func(tx *sql.Tx, assignment *model.SprintAssignment) error {
		if err := s.AssignmentRepo.MarkPaused(ctx, tx, assignment.ID); err != nil {
			return err
		}
		cancelled, err := s.QueueRepo.CancelForAssignment(ctx, tx, assignment.ID)
		if err != nil {
			return err
		}
		s.Logger.Info().Int("assignment_id", id).Int64("cancelled_items", cancelled).Msg("assignment paused")
		return s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID)
	})
}

// ResumeAssignment reactivates a paused assignment and regenerates queue
// items for the content not yet posted, starting from now.
func (s *AssignmentService) ResumeAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.mutate(ctx, id, model.AssignmentStatusActive, func(tx *sql.Tx, assignment *model.SprintAssignment) error {
		if err := s.AssignmentRepo.MarkResumed(ctx, tx, assignment.ID); err != nil {
			return err
		}

		remaining, err := s.SprintRepo.ContentItemsAfter(ctx, tx, assignment.SprintID, assignment.CurrentContentIndex)
		if err != nil {
			return err
		}
		expanded := s.Calculator.Calculate(remaining, time.Now())
		if err := s.QueueRepo.InsertItems(ctx, tx, queueItemsFromSchedule(assignment, expanded)); err != nil {
			return err
		}
		return s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID)
	})
}

// CompleteAssignment finishes an active assignment and parks the account in
// the sprint's cooldown.
func (s *AssignmentService) CompleteAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.mutate(ctx, id, model.AssignmentStatusCompleted, func(tx *sql.Tx, assignment *model.SprintAssignment) error {
		sprint, err := s.SprintRepo.GetByID(ctx, tx, assignment.SprintID)
		if err != nil {
			return err
		}
		if err := s.AssignmentRepo.MarkCompleted(ctx, tx, assignment.ID); err != nil {
			return err
		}
		if err := s.StateRepo.DeactivateSprint(ctx, tx, assignment.AccountID, assignment.SprintID); err != nil {
			return err
		}

		cooldownHours := model.DefaultCooldownHours
		if sprint.CooldownHours != nil {
			cooldownHours = *sprint.CooldownHours
		}
		return s.StateRepo.SetCooldown(ctx, tx, assignment.AccountID, time.Now().Add(time.Duration(cooldownHours)*time.Hour))
	})
}

// CancelAssignment aborts a non-terminal assignment, cancelling its pending
// queue items and releasing the sprint from the account state.
func (s *AssignmentService) CancelAssignment(ctx context.Context, id int) (*model.SprintAssignment, error) {
	return s.mutate(ctx, id, model.AssignmentStatusCancelled, func(tx *sql.Tx, assignment *model.SprintAssignment) error {
		if err := s.AssignmentRepo.MarkCancelled(ctx, tx, assignment.ID); err != nil {
			return err
		}
		if _, err := s.QueueRepo.CancelForAssignment(ctx, tx, assignment.ID); err != nil {
			return err
		}
		if assignment.Status == model.AssignmentStatusActive || assignment.Status == model.AssignmentStatusPaused {
			if err := s.StateRepo.DeactivateSprint(ctx, tx, assignment.AccountID, assignment.SprintID); err != nil {
				return err
			}
		}
		return s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID)
	})
}

// mutate wraps one lifecycle change: lock the account state, check the
// state machine, run the change, reload the row.
func (s *AssignmentService) mutate(ctx context.Context, id int, target string, fn func(tx *sql.Tx, assignment *model.SprintAssignment) error) (*model.SprintAssignment, error) {
	var updated *model.SprintAssignment
	err := db.WithTx(ctx, s.Conn, func(tx *sql.Tx) error {
		assignment, err := s.AssignmentRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.StateRepo.LockForUpdate(ctx, tx, assignment.AccountID); err != nil {
			return err
		}
		if !canTransition(assignment.Status, target) {
			return fmt.Errorf("assignment %d: %s to %s: %w", id, assignment.Status, target, appErrors.ErrInvalidTransition)
		}
		if err := fn(tx, assignment); err != nil {
			return err
		}
		updated, err = s.AssignmentRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func queueItemsFromSchedule(assignment *model.SprintAssignment, expanded schedule.Schedule) []model.QueueItem {
	items := make([]model.QueueItem, 0, len(expanded.Items))
	for _, scheduled := range expanded.Items {
		assignmentID := assignment.ID
		contentItemID := scheduled.ContentItemID
		items = append(items, model.QueueItem{
			AccountID:          assignment.AccountID,
			SprintAssignmentID: &assignmentID,
			ContentItemID:      &contentItemID,
			ScheduledTime:      scheduled.ScheduledTime,
			ContentType:        scheduled.ContentType,
			QueuePriority:      model.PriorityNormal,
		})
	}
	return items
}
