package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
)

// Spacing enforced between an emergency item and the regular items that
// follow it.
const emergencyContentGap = 4 * time.Hour

// Regular items inside this window around an emergency slot are cancelled
// under override_conflicts.
const overrideWindow = 2 * time.Hour

// EmergencyQueueService performs the per-account insertion of emergency
// content: slot calculation, strategy side effects and the queue write, all
// in one transaction per account.
type EmergencyQueueService struct {
	Conn           *sql.DB
	QueueRepo      *repository.QueueRepository
	AssignmentRepo *repository.AssignmentRepository
	SprintRepo     *repository.SprintRepository
	StateRepo      *repository.AccountStateRepository
	Calculator     *schedule.Calculator
	Logger         zerolog.Logger
}

// CalculateInsertionTime picks the emergency slot. Critical goes out now,
// high squeezes in just before the next scheduled item, standard waits an
// hour. post_immediately overrides everything.
func CalculateInsertionTime(priority string, postImmediately bool, nextScheduled *time.Time, now time.Time) time.Time {
	if postImmediately {
		return now
	}
	switch priority {
	case model.PriorityCritical:
		return now
	case model.PriorityHigh:
		if nextScheduled != nil && nextScheduled.After(now) {
			return nextScheduled.Add(-1 * time.Minute)
		}
		return now.Add(5 * time.Minute)
	default:
		return now.Add(1 * time.Hour)
	}
}

// GapMove is one planned reschedule produced by PlanGapEnforcement.
type GapMove struct {
	ItemID       int
	OriginalTime time.Time
	NewTime      time.Time
}

// PlanGapEnforcement walks the items following an emergency insertion (in
// scheduled order) and plans the moves that keep every consecutive pair at
// least emergencyContentGap apart. Items already far enough out stay put
// and restart the cursor behind themselves.
func PlanGapEnforcement(items []model.QueueItem, insertionTime time.Time) []GapMove {
	moves := []GapMove{}
	cursor := insertionTime.Add(emergencyContentGap)

	for _, item := range items {
		if item.ScheduledTime.Before(cursor) {
			moves = append(moves, GapMove{
				ItemID:       item.ID,
				OriginalTime: item.ScheduledTime,
				NewTime:      cursor,
			})
			cursor = cursor.Add(emergencyContentGap)
		} else {
			cursor = item.ScheduledTime.Add(emergencyContentGap)
		}
	}
	return moves
}

// Insert places one emergency item into the account's queue, applying the
// chosen strategy's side effects first. Returns the new item's id, its
// scheduled time and every queue adjustment made along the way.
func (s *EmergencyQueueService) Insert(ctx context.Context, accountID int, content model.EmergencyContent, strategy string, scheduledOverride *time.Time) (int, time.Time, []model.QueueAdjustment, error) {
	var (
		itemID        int
		insertionTime time.Time
		adjustments   []model.QueueAdjustment
	)

	err := db.WithTx(ctx, s.Conn, func(tx *sql.Tx) error {
		if _, err := s.StateRepo.LockForUpdate(ctx, tx, accountID); err != nil {
			return err
		}

		now := time.Now()
		if scheduledOverride != nil {
			insertionTime = *scheduledOverride
		} else {
			next, err := s.QueueRepo.NextQueuedAfter(ctx, tx, accountID, now)
			if err != nil {
				return err
			}
			var nextTime *time.Time
			if next != nil {
				nextTime = &next.ScheduledTime
			}
			insertionTime = CalculateInsertionTime(content.Priority, content.PostImmediately, nextTime, now)
		}

		var err error
		switch strategy {
		case model.StrategyPauseSprints:
			adjustments, err = s.pauseSprints(ctx, tx, accountID, insertionTime)
		case model.StrategyOverrideConflicts:
			adjustments, err = s.cancelConflictWindow(ctx, tx, accountID, insertionTime)
		default:
			adjustments = []model.QueueAdjustment{}
		}
		if err != nil {
			return err
		}

		contentType := content.ContentType
		if contentType == "" {
			contentType = schedule.ResolveContentType(nil)
		}
		itemID, err = s.QueueRepo.InsertEmergencyItem(ctx, tx, accountID, contentType, insertionTime)
		if err != nil {
			return err
		}

		return s.StateRepo.TouchLastEmergency(ctx, tx, accountID)
	})
	if err != nil {
		return 0, time.Time{}, nil, err
	}

	s.Logger.Info().
		Int("account_id", accountID).
		Int("queue_item_id", itemID).
		Str("strategy", strategy).
		Time("scheduled_time", insertionTime).
		Int("adjustments", len(adjustments)).
		Msg("emergency content inserted")
	return itemID, insertionTime, adjustments, nil
}

// pauseSprints suspends every active assignment and cancels its queued
// items, then pushes the remaining regular items out so they clear the
// emergency slot by the enforced gap.
func (s *EmergencyQueueService) pauseSprints(ctx context.Context, tx *sql.Tx, accountID int, insertionTime time.Time) ([]model.QueueAdjustment, error) {
	adjustments := []model.QueueAdjustment{}

	active, err := s.AssignmentRepo.ByStatusForAccount(ctx, tx, accountID, model.AssignmentStatusActive)
	if err != nil {
		return nil, err
	}
	for _, assignment := range active {
		if err := s.AssignmentRepo.MarkPaused(ctx, tx, assignment.ID); err != nil {
			return nil, err
		}
		if _, err := s.QueueRepo.CancelForAssignment(ctx, tx, assignment.ID); err != nil {
			return nil, err
		}
		if err := s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID); err != nil {
			return nil, err
		}
		assignmentID := assignment.ID
		adjustments = append(adjustments, model.QueueAdjustment{
			Type:           model.AdjustmentSprintPaused,
			AssignmentID:   &assignmentID,
			OriginalStatus: model.AssignmentStatusActive,
			NewStatus:      model.AssignmentStatusPaused,
			Reason:         "Paused for emergency content",
		})
	}

	following, err := s.QueueRepo.QueuedNonEmergencyAfter(ctx, tx, accountID, insertionTime)
	if err != nil {
		return nil, err
	}
	for _, move := range PlanGapEnforcement(following, insertionTime) {
		if err := s.QueueRepo.UpdateScheduledTime(ctx, tx, move.ItemID, move.NewTime); err != nil {
			return nil, err
		}
		itemID := move.ItemID
		originalTime := move.OriginalTime
		newTime := move.NewTime
		adjustments = append(adjustments, model.QueueAdjustment{
			Type:         model.AdjustmentItemRescheduled,
			QueueItemID:  &itemID,
			OriginalTime: &originalTime,
			NewTime:      &newTime,
			Reason:       "Rescheduled to maintain spacing after emergency content",
		})
	}
	return adjustments, nil
}

// cancelConflictWindow drops the regular items scheduled around the
// emergency slot.
func (s *EmergencyQueueService) cancelConflictWindow(ctx context.Context, tx *sql.Tx, accountID int, insertionTime time.Time) ([]model.QueueAdjustment, error) {
	cancelled, err := s.QueueRepo.CancelNonEmergencyWindow(ctx, tx, accountID,
		insertionTime.Add(-overrideWindow), insertionTime.Add(overrideWindow))
	if err != nil {
		return nil, err
	}

	adjustments := make([]model.QueueAdjustment, 0, len(cancelled))
	for _, item := range cancelled {
		itemID := item.ID
		originalTime := item.ScheduledTime
		adjustments = append(adjustments, model.QueueAdjustment{
			Type:           model.AdjustmentItemCancelled,
			QueueItemID:    &itemID,
			OriginalTime:   &originalTime,
			OriginalStatus: model.QueueStatusQueued,
			NewStatus:      model.QueueStatusCancelled,
			Reason:         "Cancelled to make room for emergency content",
		})
	}
	return adjustments, nil
}

// ResumeSprints brings every assignment paused for an emergency back to
// active and regenerates queue items for the content not yet posted,
// starting from now. Pausing cancelled the old items, so without the
// regeneration a resumed assignment would sit active with nothing queued.
func (s *EmergencyQueueService) ResumeSprints(ctx context.Context, accountID int) ([]model.QueueAdjustment, error) {
	adjustments := []model.QueueAdjustment{}
	err := db.WithTx(ctx, s.Conn, func(tx *sql.Tx) error {
		if _, err := s.StateRepo.LockForUpdate(ctx, tx, accountID); err != nil {
			return err
		}
		paused, err := s.AssignmentRepo.ByStatusForAccount(ctx, tx, accountID, model.AssignmentStatusPaused)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, assignment := range paused {
			if err := s.AssignmentRepo.MarkResumed(ctx, tx, assignment.ID); err != nil {
				return err
			}

			remaining, err := s.SprintRepo.ContentItemsAfter(ctx, tx, assignment.SprintID, assignment.CurrentContentIndex)
			if err != nil {
				return err
			}
			expanded := s.Calculator.Calculate(remaining, now)
			if err := s.QueueRepo.InsertItems(ctx, tx, queueItemsFromSchedule(&assignment, expanded)); err != nil {
				return err
			}
			if err := s.QueueRepo.RecomputeNextContentDue(ctx, tx, assignment.ID); err != nil {
				return err
			}

			assignmentID := assignment.ID
			adjustments = append(adjustments, model.QueueAdjustment{
				Type:           model.AdjustmentSprintResumed,
				AssignmentID:   &assignmentID,
				OriginalStatus: model.AssignmentStatusPaused,
				NewStatus:      model.AssignmentStatusActive,
				Reason:         "Resumed after emergency content",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

// CleanupExpired deletes emergency items that reached a terminal state more
// than a week ago.
func (s *EmergencyQueueService) CleanupExpired(ctx context.Context, accountID *int) (int64, error) {
	return s.QueueRepo.CleanupExpiredEmergency(ctx, accountID)
}
