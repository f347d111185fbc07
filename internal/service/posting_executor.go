package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
)

// PostingSender performs the actual publish to the social platform.
type PostingSender func(item *model.QueueItem) error

// PostingExecutor consumes posting jobs: it runs the sender and records the
// outcome on the queue item, advancing assignment progress on success.
type PostingExecutor struct {
	Conn           *sql.DB
	QueueRepo      *repository.QueueRepository
	AssignmentRepo *repository.AssignmentRepository
	Send           PostingSender
	Logger         zerolog.Logger
}

// Execute processes one claimed queue item end to end. The send happens
// outside the transaction; only the outcome bookkeeping is transactional.
func (e *PostingExecutor) Execute(ctx context.Context, itemID int) error {
	item, err := e.QueueRepo.GetByID(ctx, e.Conn, itemID)
	if err != nil {
		return err
	}

	sendErr := e.Send(item)

	return db.WithTx(ctx, e.Conn, func(tx *sql.Tx) error {
		if sendErr != nil {
			e.Logger.Warn().Err(sendErr).Int("queue_item_id", itemID).Msg("posting failed")
			if err := e.QueueRepo.MarkFailed(ctx, tx, itemID, sendErr.Error()); err != nil {
				return err
			}
			if item.SprintAssignmentID != nil {
				return e.QueueRepo.RecomputeNextContentDue(ctx, tx, *item.SprintAssignmentID)
			}
			return nil
		}

		assignmentID, err := e.QueueRepo.MarkPosted(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if assignmentID != nil {
			if err := e.AssignmentRepo.AdvanceProgress(ctx, tx, *assignmentID); err != nil {
				return err
			}
			if err := e.QueueRepo.RecomputeNextContentDue(ctx, tx, *assignmentID); err != nil {
				return err
			}
		}
		e.Logger.Info().Int("queue_item_id", itemID).Msg("content posted")
		return nil
	})
}

// MockPoster simulates platform posting with a 90% success rate.
func MockPoster(item *model.QueueItem) error {
	if rand.Intn(100) < 90 {
		return nil
	}
	return fmt.Errorf("mock posting failed for item %d", item.ID)
}
