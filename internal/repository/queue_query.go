package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// Read-side surface of the queue store: filtered listing, account views and
// aggregate statistics. These run outside any transaction.

const detailedColumns = `
    cq.id, cq.account_id, cq.sprint_assignment_id, cq.content_item_id,
    cq.scheduled_time, cq.content_type, cq.status, cq.emergency_content,
    cq.queue_priority, cq.retry_count, cq.error_message, cq.created_at, cq.posted_at,
    a.username,
    cs.name,
    (cq.scheduled_time < CURRENT_TIMESTAMP AND cq.status = 'queued') AS is_overdue,
    ROUND(EXTRACT(EPOCH FROM (cq.scheduled_time - CURRENT_TIMESTAMP)) / 60)::int AS time_until_due
`

const detailedJoins = `
    FROM content_queue cq
    JOIN accounts a ON a.id = cq.account_id
    LEFT JOIN account_sprint_assignments asa ON asa.id = cq.sprint_assignment_id
    LEFT JOIN content_sprints cs ON cs.id = asa.sprint_id
`

func scanDetailed(rows interface {
	Scan(dest ...any) error
}) (model.QueueItemDetailed, error) {
	var item model.QueueItemDetailed
	err := rows.Scan(
		&item.ID, &item.AccountID, &item.SprintAssignmentID, &item.ContentItemID,
		&item.ScheduledTime, &item.ContentType, &item.Status, &item.EmergencyContent,
		&item.QueuePriority, &item.RetryCount, &item.ErrorMessage, &item.CreatedAt, &item.PostedAt,
		&item.AccountUsername, &item.SprintName, &item.IsOverdue, &item.TimeUntilDueMin,
	)
	return item, err
}

var sortableColumns = map[string]string{
	"scheduled_time": "cq.scheduled_time",
	"created_at":     "cq.created_at",
	"queue_priority": "cq.queue_priority",
	"status":         "cq.status",
}

// List returns a filtered, paginated page of queue items with their join
// context. Defaults: scheduled_time ASC, limit 50.
func (r *QueueRepository) List(ctx context.Context, filters model.QueueFilters) (model.QueuePage, error) {
	where := []string{}
	params := []any{}
	argPos := 1

	addFilter := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, argPos))
		params = append(params, value)
		argPos++
	}

	if filters.AccountID != 0 {
		addFilter("cq.account_id = $%d", filters.AccountID)
	}
	if filters.SprintAssignmentID != 0 {
		addFilter("cq.sprint_assignment_id = $%d", filters.SprintAssignmentID)
	}
	if filters.Status != "" {
		addFilter("cq.status = $%d", filters.Status)
	}
	if filters.ContentType != "" {
		addFilter("cq.content_type = $%d", filters.ContentType)
	}
	if filters.EmergencyContent != nil {
		addFilter("cq.emergency_content = $%d", *filters.EmergencyContent)
	}
	if filters.ScheduledFrom != nil {
		addFilter("cq.scheduled_time >= $%d", *filters.ScheduledFrom)
	}
	if filters.ScheduledTo != nil {
		addFilter("cq.scheduled_time <= $%d", *filters.ScheduledTo)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM content_queue cq" + whereClause
	if err := r.Conn.QueryRowContext(ctx, countQuery, params...).Scan(&total); err != nil {
		return model.QueuePage{}, fmt.Errorf("count queue items: %w", err)
	}

	orderBy, ok := sortableColumns[filters.SortBy]
	if !ok {
		orderBy = "cq.scheduled_time"
	}
	direction := "ASC"
	if strings.EqualFold(filters.SortOrder, "desc") {
		direction = "DESC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + detailedColumns + detailedJoins + whereClause +
		fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", orderBy, direction, argPos, argPos+1)
	params = append(params, limit, offset)

	rows, err := r.Conn.QueryContext(ctx, query, params...)
	if err != nil {
		return model.QueuePage{}, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items := []model.QueueItemDetailed{}
	for rows.Next() {
		item, err := scanDetailed(rows)
		if err != nil {
			return model.QueuePage{}, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return model.QueuePage{}, err
	}

	return model.QueuePage{
		Items:      items,
		TotalCount: total,
		PageInfo: model.PageInfo{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
		},
	}, nil
}

// AccountQueue returns one account's queue ordered by time, optionally
// including terminal items.
func (r *QueueRepository) AccountQueue(ctx context.Context, accountID int, includeCompleted bool) ([]model.QueueItemDetailed, error) {
	query := "SELECT " + detailedColumns + detailedJoins + " WHERE cq.account_id = $1"
	if !includeCompleted {
		query += " AND cq.status IN ('queued', 'retrying', 'failed')"
	}
	query += " ORDER BY cq.scheduled_time ASC"

	return r.queryDetailed(ctx, query, accountID)
}

// Upcoming returns queued items due inside the next window, soonest first.
func (r *QueueRepository) Upcoming(ctx context.Context, window time.Duration, limit int) ([]model.QueueItemDetailed, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + detailedColumns + detailedJoins + `
        WHERE cq.status = 'queued'
          AND cq.scheduled_time BETWEEN CURRENT_TIMESTAMP AND $1
        ORDER BY cq.scheduled_time ASC
        LIMIT $2
    `
	return r.queryDetailed(ctx, query, time.Now().Add(window), limit)
}

// Overdue returns queued items whose scheduled_time has passed, most
// overdue first.
func (r *QueueRepository) Overdue(ctx context.Context, limit int) ([]model.QueueItemDetailed, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + detailedColumns + detailedJoins + `
        WHERE cq.status = 'queued' AND cq.scheduled_time < CURRENT_TIMESTAMP
        ORDER BY cq.scheduled_time ASC
        LIMIT $1
    `
	return r.queryDetailed(ctx, query, limit)
}

// RecentPosted returns the most recently posted items, newest first.
func (r *QueueRepository) RecentPosted(ctx context.Context, limit int) ([]model.QueueItemDetailed, error) {
	if limit <= 0 {
		limit = 10
	}
	query := "SELECT " + detailedColumns + detailedJoins + `
        WHERE cq.status = 'posted'
        ORDER BY cq.posted_at DESC
        LIMIT $1
    `
	return r.queryDetailed(ctx, query, limit)
}

func (r *QueueRepository) queryDetailed(ctx context.Context, query string, params ...any) ([]model.QueueItemDetailed, error) {
	rows, err := r.Conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	items := []model.QueueItemDetailed{}
	for rows.Next() {
		item, err := scanDetailed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats aggregates queue counters over a trailing seven-day window in a
// single round trip.
func (r *QueueRepository) Stats(ctx context.Context) (model.QueueStats, error) {
	var stats model.QueueStats
	err := r.Conn.QueryRowContext(ctx, `
        SELECT
            COUNT(*) AS total_items,
            COUNT(*) FILTER (WHERE status = 'queued') AS queued_count,
            COUNT(*) FILTER (WHERE status = 'posted' AND posted_at > CURRENT_TIMESTAMP - INTERVAL '7 days') AS posted_count,
            COUNT(*) FILTER (WHERE status = 'failed' AND created_at > CURRENT_TIMESTAMP - INTERVAL '7 days') AS failed_count,
            COUNT(*) FILTER (WHERE status = 'queued' AND scheduled_time < CURRENT_TIMESTAMP) AS overdue_count,
            COUNT(*) FILTER (WHERE status = 'queued' AND scheduled_time BETWEEN CURRENT_TIMESTAMP AND CURRENT_TIMESTAMP + INTERVAL '24 hours') AS upcoming_24h,
            COUNT(*) FILTER (WHERE emergency_content = true AND status = 'queued') AS emergency_count,
            COUNT(DISTINCT account_id) FILTER (WHERE status = 'queued') AS accounts_with_queue,
            COALESCE(
                COUNT(*) FILTER (WHERE status = 'queued')::float /
                NULLIF(COUNT(DISTINCT account_id) FILTER (WHERE status = 'queued'), 0),
                0
            ) AS avg_queue_size
        FROM content_queue
        WHERE created_at > CURRENT_TIMESTAMP - INTERVAL '7 days' OR status = 'queued'
    `).Scan(
		&stats.TotalItems, &stats.QueuedCount, &stats.PostedCount,
		&stats.FailedCount, &stats.OverdueCount, &stats.Upcoming24h,
		&stats.EmergencyCount, &stats.AccountsWithQueue, &stats.AvgQueueSize,
	)
	if err != nil {
		return model.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// EmergencyStats aggregates counters for emergency content only.
func (r *QueueRepository) EmergencyStats(ctx context.Context) (model.EmergencyStats, error) {
	var stats model.EmergencyStats
	err := r.Conn.QueryRowContext(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE status = 'queued') AS active_items,
            COUNT(*) FILTER (WHERE status = 'posted' AND posted_at > CURRENT_TIMESTAMP - INTERVAL '7 days') AS posted_7d,
            COUNT(*) FILTER (WHERE status = 'failed' AND created_at > CURRENT_TIMESTAMP - INTERVAL '7 days') AS failed_7d,
            COUNT(*) FILTER (WHERE status = 'queued' AND scheduled_time < CURRENT_TIMESTAMP) AS overdue
        FROM content_queue
        WHERE emergency_content = true
    `).Scan(&stats.ActiveEmergencyItems, &stats.PostedLast7Days, &stats.FailedLast7Days, &stats.OverdueEmergency)
	if err != nil {
		return model.EmergencyStats{}, fmt.Errorf("emergency stats: %w", err)
	}
	return stats, nil
}

// OverdueEmergencyCount counts queued emergency items already past due.
// Feeds the health report's alerting.
func (r *QueueRepository) OverdueEmergencyCount(ctx context.Context) (int, error) {
	var count int
	err := r.Conn.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM content_queue
        WHERE emergency_content = true
          AND status = 'queued'
          AND scheduled_time < CURRENT_TIMESTAMP
    `).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("overdue emergency count: %w", err)
	}
	return count, nil
}
