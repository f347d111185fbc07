package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// MaxRetryAttempts caps retryFailedItem; exceeding it cancels the item.
const MaxRetryAttempts = 3

// RetryBackoff is the fixed delay applied when a failed item is retried.
const RetryBackoff = 10 * time.Minute

const maxRetriesExceededMessage = "Maximum retry attempts exceeded"

// QueueRepository is the queue store adapter: every mutation of
// content_queue rows goes through here. Single-item operations of the
// public surface run in their own transaction; the exported primitives
// taking a db.Querier are meant to be composed inside a caller-owned
// transaction.
type QueueRepository struct {
	Conn *sql.DB
}

// ====================== tx-scoped primitives ======================

// InsertItems bulk-inserts queue items. No-op on an empty slice.
func (r *QueueRepository) InsertItems(ctx context.Context, q db.Querier, items []model.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	values := ""
	params := make([]any, 0, len(items)*8)
	for i, item := range items {
		if i > 0 {
			values += ", "
		}
		base := i * 8
		values += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		params = append(params,
			item.AccountID,
			item.SprintAssignmentID,
			item.ContentItemID,
			item.ScheduledTime,
			item.ContentType,
			model.QueueStatusQueued,
			item.EmergencyContent,
			item.QueuePriority,
		)
	}

	query := `
        INSERT INTO content_queue (
            account_id, sprint_assignment_id, content_item_id,
            scheduled_time, content_type, status,
            emergency_content, queue_priority
        ) VALUES ` + values

	if _, err := q.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("insert queue items: %w", err)
	}
	return nil
}

// InsertEmergencyItem writes one emergency queue item (priority 1, queued)
// and returns its id.
func (r *QueueRepository) InsertEmergencyItem(ctx context.Context, q db.Querier, accountID int, contentType string, scheduledTime time.Time) (int, error) {
	query := `
        INSERT INTO content_queue (
            account_id, scheduled_time, content_type, status,
            emergency_content, queue_priority
        ) VALUES ($1, $2, $3, 'queued', true, $4)
        RETURNING id
    `
	var id int
	err := q.QueryRowContext(ctx, query, accountID, scheduledTime, contentType, model.PriorityEmergency).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert emergency item: %w", err)
	}
	return id, nil
}

// RecomputeNextContentDue refreshes the owning assignment's derived
// next_content_due from its queued items, inside the caller's transaction.
func (r *QueueRepository) RecomputeNextContentDue(ctx context.Context, q db.Querier, assignmentID int) error {
	query := `
        UPDATE account_sprint_assignments
        SET
            next_content_due = (
                SELECT MIN(scheduled_time)
                FROM content_queue
                WHERE sprint_assignment_id = $1 AND status = 'queued'
            ),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `
	if _, err := q.ExecContext(ctx, query, assignmentID); err != nil {
		return fmt.Errorf("recompute next_content_due for assignment %d: %w", assignmentID, err)
	}
	return nil
}

// CancelForAssignment marks every queued item of an assignment cancelled.
// History is preserved; nothing is deleted.
func (r *QueueRepository) CancelForAssignment(ctx context.Context, q db.Querier, assignmentID int) (int64, error) {
	result, err := q.ExecContext(ctx, `
        UPDATE content_queue
        SET status = 'cancelled'
        WHERE sprint_assignment_id = $1 AND status = 'queued'
    `, assignmentID)
	if err != nil {
		return 0, fmt.Errorf("cancel assignment queue: %w", err)
	}
	return result.RowsAffected()
}

// CancelForAccount marks every queued item of an account cancelled with the
// given reason.
func (r *QueueRepository) CancelForAccount(ctx context.Context, q db.Querier, accountID int, reason string) (int64, error) {
	if reason == "" {
		reason = "Cancelled by user"
	}
	result, err := q.ExecContext(ctx, `
        UPDATE content_queue
        SET status = 'cancelled', error_message = $2
        WHERE account_id = $1 AND status = 'queued'
    `, accountID, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel account queue: %w", err)
	}
	return result.RowsAffected()
}

// CancelNonEmergencyWindow cancels queued non-emergency items whose
// scheduled_time falls inside [from, to] and returns the affected rows.
func (r *QueueRepository) CancelNonEmergencyWindow(ctx context.Context, q db.Querier, accountID int, from, to time.Time) ([]model.QueueItem, error) {
	rows, err := q.QueryContext(ctx, `
        UPDATE content_queue
        SET status = 'cancelled'
        WHERE account_id = $1
          AND scheduled_time BETWEEN $2 AND $3
          AND status = 'queued'
          AND emergency_content = false
        RETURNING id, scheduled_time, content_type
    `, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("cancel conflict window: %w", err)
	}
	defer rows.Close()

	items := []model.QueueItem{}
	for rows.Next() {
		var item model.QueueItem
		if err := rows.Scan(&item.ID, &item.ScheduledTime, &item.ContentType); err != nil {
			return nil, fmt.Errorf("scan cancelled item: %w", err)
		}
		item.AccountID = accountID
		items = append(items, item)
	}
	return items, rows.Err()
}

// QueuedNonEmergencyAfter returns the account's queued non-emergency items
// scheduled strictly after t, ascending. The gap-enforcement walk depends on
// this ordering.
func (r *QueueRepository) QueuedNonEmergencyAfter(ctx context.Context, q db.Querier, accountID int, t time.Time) ([]model.QueueItem, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT id, scheduled_time, content_type
        FROM content_queue
        WHERE account_id = $1
          AND scheduled_time > $2
          AND status = 'queued'
          AND emergency_content = false
        ORDER BY scheduled_time ASC
    `, accountID, t)
	if err != nil {
		return nil, fmt.Errorf("queued items after %s: %w", t, err)
	}
	defer rows.Close()

	items := []model.QueueItem{}
	for rows.Next() {
		var item model.QueueItem
		if err := rows.Scan(&item.ID, &item.ScheduledTime, &item.ContentType); err != nil {
			return nil, fmt.Errorf("scan queued item: %w", err)
		}
		item.AccountID = accountID
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextQueuedAfter returns the account's earliest queued item scheduled after
// t, or nil when the queue is empty past t.
func (r *QueueRepository) NextQueuedAfter(ctx context.Context, q db.Querier, accountID int, t time.Time) (*model.QueueItem, error) {
	var item model.QueueItem
	err := q.QueryRowContext(ctx, `
        SELECT id, scheduled_time, content_type
        FROM content_queue
        WHERE account_id = $1 AND scheduled_time > $2 AND status = 'queued'
        ORDER BY scheduled_time ASC
        LIMIT 1
    `, accountID, t).Scan(&item.ID, &item.ScheduledTime, &item.ContentType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued item: %w", err)
	}
	item.AccountID = accountID
	return &item, nil
}

// UpdateScheduledTime moves one item without touching its status or retry
// bookkeeping. Used by the gap-enforcement walk.
func (r *QueueRepository) UpdateScheduledTime(ctx context.Context, q db.Querier, itemID int, newTime time.Time) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE content_queue SET scheduled_time = $1 WHERE id = $2
    `, newTime, itemID); err != nil {
		return fmt.Errorf("update scheduled_time for item %d: %w", itemID, err)
	}
	return nil
}

// GetByID fetches one queue item, or ErrNotFoundOrInvalidState.
func (r *QueueRepository) GetByID(ctx context.Context, q db.Querier, itemID int) (*model.QueueItem, error) {
	var item model.QueueItem
	err := q.QueryRowContext(ctx, `
        SELECT id, account_id, sprint_assignment_id, content_item_id,
               scheduled_time, content_type, status, emergency_content,
               queue_priority, retry_count, error_message, created_at, posted_at
        FROM content_queue
        WHERE id = $1
    `, itemID).Scan(
		&item.ID, &item.AccountID, &item.SprintAssignmentID, &item.ContentItemID,
		&item.ScheduledTime, &item.ContentType, &item.Status, &item.EmergencyContent,
		&item.QueuePriority, &item.RetryCount, &item.ErrorMessage, &item.CreatedAt, &item.PostedAt,
	)
	if err == sql.ErrNoRows {
		return nil, appErrors.NewQueueItemNotModifiable(itemID, "not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %d: %w", itemID, err)
	}
	return &item, nil
}

// MarkPosted transitions a queued or retrying item to posted and returns the
// owning assignment id (nil for unattached emergency items). The caller is
// expected to advance assignment progress in the same transaction.
func (r *QueueRepository) MarkPosted(ctx context.Context, q db.Querier, itemID int) (*int, error) {
	var assignmentID *int
	err := q.QueryRowContext(ctx, `
        UPDATE content_queue
        SET status = 'posted', posted_at = CURRENT_TIMESTAMP, error_message = NULL
        WHERE id = $1 AND status IN ('queued', 'retrying')
        RETURNING sprint_assignment_id
    `, itemID).Scan(&assignmentID)
	if err == sql.ErrNoRows {
		return nil, appErrors.NewQueueItemNotModifiable(itemID, "cannot be marked posted")
	}
	if err != nil {
		return nil, fmt.Errorf("mark posted: %w", err)
	}
	return assignmentID, nil
}

// MarkFailed transitions a queued or retrying item to failed with the error
// message reported by the posting executor.
func (r *QueueRepository) MarkFailed(ctx context.Context, q db.Querier, itemID int, message string) error {
	result, err := q.ExecContext(ctx, `
        UPDATE content_queue
        SET status = 'failed', error_message = $2
        WHERE id = $1 AND status IN ('queued', 'retrying')
    `, itemID, message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark failed rows: %w", err)
	}
	if affected == 0 {
		return appErrors.NewQueueItemNotModifiable(itemID, "cannot be marked failed")
	}
	return nil
}

// ClaimDue flips up to limit due queued items to retrying and returns their
// ids. SKIP LOCKED keeps concurrent dispatchers from claiming the same row.
func (r *QueueRepository) ClaimDue(ctx context.Context, q db.Querier, limit int) ([]int, error) {
	rows, err := q.QueryContext(ctx, `
        UPDATE content_queue
        SET status = 'retrying'
        WHERE id IN (
            SELECT id FROM content_queue
            WHERE status = 'queued' AND scheduled_time <= CURRENT_TIMESTAMP
            ORDER BY queue_priority ASC, scheduled_time ASC
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due items: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ====================== atomic store operations ======================

// RescheduleItem moves a queued or failed item to newTime, resetting its
// retry bookkeeping, and refreshes the owning assignment's next_content_due.
func (r *QueueRepository) RescheduleItem(ctx context.Context, itemID int, newTime time.Time) error {
	return db.WithTx(ctx, r.Conn, func(tx *sql.Tx) error {
		var assignmentID *int
		err := tx.QueryRowContext(ctx, `
            UPDATE content_queue
            SET scheduled_time = $1, retry_count = 0, error_message = NULL
            WHERE id = $2 AND status IN ('queued', 'failed')
            RETURNING sprint_assignment_id
        `, newTime, itemID).Scan(&assignmentID)
		if err == sql.ErrNoRows {
			return appErrors.NewQueueItemNotModifiable(itemID, "cannot be rescheduled")
		}
		if err != nil {
			return fmt.Errorf("reschedule item %d: %w", itemID, err)
		}

		if assignmentID != nil {
			return r.RecomputeNextContentDue(ctx, tx, *assignmentID)
		}
		return nil
	})
}

// RetryFailedItem re-queues a failed item with a fixed backoff. When the
// incremented retry count exceeds the cap the item is cancelled instead.
func (r *QueueRepository) RetryFailedItem(ctx context.Context, itemID int) error {
	return db.WithTx(ctx, r.Conn, func(tx *sql.Tx) error {
		var (
			assignmentID *int
			retryCount   int
		)
		err := tx.QueryRowContext(ctx, `
            UPDATE content_queue
            SET
                status = 'queued',
                retry_count = retry_count + 1,
                error_message = NULL,
                scheduled_time = CURRENT_TIMESTAMP + INTERVAL '10 minutes'
            WHERE id = $1 AND status = 'failed'
            RETURNING sprint_assignment_id, retry_count
        `, itemID).Scan(&assignmentID, &retryCount)
		if err == sql.ErrNoRows {
			return appErrors.NewQueueItemNotModifiable(itemID, "not in failed status")
		}
		if err != nil {
			return fmt.Errorf("retry item %d: %w", itemID, err)
		}

		if retryCount > MaxRetryAttempts {
			if _, err := tx.ExecContext(ctx, `
                UPDATE content_queue
                SET status = 'cancelled', error_message = $2
                WHERE id = $1
            `, itemID, maxRetriesExceededMessage); err != nil {
				return fmt.Errorf("cancel exhausted item %d: %w", itemID, err)
			}
		}

		if assignmentID != nil {
			return r.RecomputeNextContentDue(ctx, tx, *assignmentID)
		}
		return nil
	})
}

// RemoveFromQueue deletes an item. Posted items are history and refuse
// removal. Removing a queued item refreshes next_content_due; removing an
// emergency item touches the account's last_emergency_content marker.
func (r *QueueRepository) RemoveFromQueue(ctx context.Context, itemID int) error {
	return db.WithTx(ctx, r.Conn, func(tx *sql.Tx) error {
		var (
			accountID    int
			assignmentID *int
			status       string
			emergency    bool
		)
		err := tx.QueryRowContext(ctx, `
            SELECT account_id, sprint_assignment_id, status, emergency_content
            FROM content_queue
            WHERE id = $1
        `, itemID).Scan(&accountID, &assignmentID, &status, &emergency)
		if err == sql.ErrNoRows {
			return appErrors.NewQueueItemNotModifiable(itemID, "not found")
		}
		if err != nil {
			return fmt.Errorf("load queue item %d: %w", itemID, err)
		}

		if status == model.QueueStatusPosted {
			return appErrors.NewQueueItemNotModifiable(itemID, "already posted")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM content_queue WHERE id = $1`, itemID); err != nil {
			return fmt.Errorf("delete queue item %d: %w", itemID, err)
		}

		if assignmentID != nil && status == model.QueueStatusQueued {
			if err := r.RecomputeNextContentDue(ctx, tx, *assignmentID); err != nil {
				return err
			}
		}

		if emergency {
			if _, err := tx.ExecContext(ctx, `
                UPDATE account_content_state
                SET last_emergency_content = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
                WHERE account_id = $1
            `, accountID); err != nil {
				return fmt.Errorf("touch account state: %w", err)
			}
		}
		return nil
	})
}

// BulkUpdateQueue applies per-item partial updates to items still in a
// mutable status. One item's failure never aborts the batch; the outcome of
// every item is reported in the result.
func (r *QueueRepository) BulkUpdateQueue(ctx context.Context, updates []model.QueueUpdate) (model.BulkUpdateResult, error) {
	result := model.BulkUpdateResult{Errors: []model.BulkUpdateError{}}

	err := db.WithTx(ctx, r.Conn, func(tx *sql.Tx) error {
		for _, update := range updates {
			setClauses := []string{}
			params := []any{}
			argPos := 1

			if update.ScheduledTime != nil {
				setClauses = append(setClauses, fmt.Sprintf("scheduled_time = $%d", argPos))
				params = append(params, *update.ScheduledTime)
				argPos++
			}
			if update.ContentType != nil {
				setClauses = append(setClauses, fmt.Sprintf("content_type = $%d", argPos))
				params = append(params, *update.ContentType)
				argPos++
			}
			if update.QueuePriority != nil {
				setClauses = append(setClauses, fmt.Sprintf("queue_priority = $%d", argPos))
				params = append(params, *update.QueuePriority)
				argPos++
			}
			if update.Status != nil {
				setClauses = append(setClauses, fmt.Sprintf("status = $%d", argPos))
				params = append(params, *update.Status)
				argPos++
			}

			if len(setClauses) == 0 {
				result.Errors = append(result.Errors, model.BulkUpdateError{
					ItemID:       update.ItemID,
					ErrorMessage: "No valid update fields provided",
				})
				result.FailedCount++
				continue
			}

			query := "UPDATE content_queue SET "
			for i, clause := range setClauses {
				if i > 0 {
					query += ", "
				}
				query += clause
			}
			query += fmt.Sprintf(" WHERE id = $%d AND status IN ('queued', 'failed', 'retrying')", argPos)
			params = append(params, update.ItemID)

			res, err := tx.ExecContext(ctx, query, params...)
			if err != nil {
				result.Errors = append(result.Errors, model.BulkUpdateError{
					ItemID:       update.ItemID,
					ErrorMessage: err.Error(),
				})
				result.FailedCount++
				continue
			}

			affected, err := res.RowsAffected()
			if err != nil || affected == 0 {
				result.Errors = append(result.Errors, model.BulkUpdateError{
					ItemID:       update.ItemID,
					ErrorMessage: "Item not found or cannot be updated",
				})
				result.FailedCount++
				continue
			}
			result.UpdatedCount++
		}
		return nil
	})
	if err != nil {
		return model.BulkUpdateResult{}, err
	}
	return result, nil
}

// CleanupOldQueueItems deletes terminal items older than the retention
// window and returns how many went away.
func (r *QueueRepository) CleanupOldQueueItems(ctx context.Context, daysOld int) (int64, error) {
	result, err := r.Conn.ExecContext(ctx, `
        DELETE FROM content_queue
        WHERE status IN ('posted', 'failed', 'cancelled')
          AND created_at < CURRENT_TIMESTAMP - ($1 || ' days')::interval
    `, daysOld)
	if err != nil {
		return 0, fmt.Errorf("cleanup old queue items: %w", err)
	}
	return result.RowsAffected()
}

// CleanupExpiredEmergency deletes emergency items that reached a terminal
// state more than seven days ago, optionally scoped to one account.
func (r *QueueRepository) CleanupExpiredEmergency(ctx context.Context, accountID *int) (int64, error) {
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	query := `
        DELETE FROM content_queue
        WHERE emergency_content = true
          AND status IN ('posted', 'failed')
          AND (posted_at < $1 OR created_at < $1)
    `
	params := []any{cutoff}
	if accountID != nil {
		query += " AND account_id = $2"
		params = append(params, *accountID)
	}

	result, err := r.Conn.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired emergency content: %w", err)
	}
	return result.RowsAffected()
}
