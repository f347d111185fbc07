package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
)

// QueueControlService is the mutation surface of the content queue exposed
// to operators: reschedule, retry, remove, bulk edits and the destructive
// maintenance operations.
type QueueControlService struct {
	Conn      *sql.DB
	QueueRepo *repository.QueueRepository
	Logger    zerolog.Logger
}

// Reschedule moves one pending item to a new time.
func (s *QueueControlService) Reschedule(ctx context.Context, itemID int, newTime time.Time) error {
	if newTime.IsZero() {
		return appErrors.NewValidationError("scheduled_time is required")
	}
	return s.QueueRepo.RescheduleItem(ctx, itemID, newTime)
}

// Retry re-queues one failed item.
func (s *QueueControlService) Retry(ctx context.Context, itemID int) error {
	return s.QueueRepo.RetryFailedItem(ctx, itemID)
}

// Remove deletes one item from the queue.
func (s *QueueControlService) Remove(ctx context.Context, itemID int) error {
	return s.QueueRepo.RemoveFromQueue(ctx, itemID)
}

var bulkUpdatableStatuses = map[string]bool{
	model.QueueStatusQueued:    true,
	model.QueueStatusCancelled: true,
}

// BulkUpdate applies partial updates to many items. Status values outside
// queued/cancelled are rejected up front; everything else is per-item
// isolated in the store.
func (s *QueueControlService) BulkUpdate(ctx context.Context, updates []model.QueueUpdate) (model.BulkUpdateResult, error) {
	if len(updates) == 0 {
		return model.BulkUpdateResult{}, appErrors.NewValidationError("updates array is required")
	}
	for _, update := range updates {
		if update.Status != nil && !bulkUpdatableStatuses[*update.Status] {
			return model.BulkUpdateResult{}, appErrors.NewValidationError("status can only be set to queued or cancelled")
		}
		if update.ContentType != nil && !validContentTypes[*update.ContentType] {
			return model.BulkUpdateResult{}, appErrors.NewValidationError("invalid content_type %q", *update.ContentType)
		}
	}

	result, err := s.QueueRepo.BulkUpdateQueue(ctx, updates)
	if err != nil {
		return model.BulkUpdateResult{}, err
	}
	s.Logger.Info().
		Int("updated", result.UpdatedCount).
		Int("failed", result.FailedCount).
		Msg("bulk queue update applied")
	return result, nil
}

// CancelAccountQueue cancels every pending item of one account.
func (s *QueueControlService) CancelAccountQueue(ctx context.Context, accountID int, reason string) (int64, error) {
	var cancelled int64
	err := db.WithTx(ctx, s.Conn, func(tx *sql.Tx) error {
		var err error
		cancelled, err = s.QueueRepo.CancelForAccount(ctx, tx, accountID, reason)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// Cleanup removes terminal items older than daysOld.
func (s *QueueControlService) Cleanup(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 1 || daysOld > 365 {
		return 0, appErrors.NewValidationError("days_old must be between 1 and 365")
	}
	deleted, err := s.QueueRepo.CleanupOldQueueItems(ctx, daysOld)
	if err != nil {
		return 0, err
	}
	s.Logger.Info().Int64("deleted", deleted).Int("days_old", daysOld).Msg("queue cleanup completed")
	return deleted, nil
}

// ValidateModification answers whether an item accepts edits right now and,
// when it does not, why.
func (s *QueueControlService) ValidateModification(ctx context.Context, itemID int) (bool, string, error) {
	item, err := s.QueueRepo.GetByID(ctx, s.Conn, itemID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFoundOrInvalidState) {
			return false, "Item not found", nil
		}
		return false, "", err
	}

	if item.Status == model.QueueStatusPosted {
		return false, "Cannot modify posted content", nil
	}
	if item.EmergencyContent && item.Status == model.QueueStatusQueued {
		return false, "Cannot modify queued emergency content", nil
	}
	return true, "", nil
}
