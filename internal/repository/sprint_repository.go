package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// SprintRepository reads sprint templates and their ordered content items.
// Sprints are authored elsewhere; this side only consumes them.
type SprintRepository struct {
	Conn *sql.DB
}

const sprintColumns = `
    id, name, sprint_type, location, cooldown_hours, blocks_sprints, created_at
`

func scanSprint(row interface{ Scan(dest ...any) error }) (*model.Sprint, error) {
	var s model.Sprint
	err := row.Scan(
		&s.ID, &s.Name, &s.SprintType, &s.Location,
		&s.CooldownHours, &s.BlocksSprints, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID fetches one sprint, or sql.ErrNoRows wrapped with context.
func (r *SprintRepository) GetByID(ctx context.Context, q db.Querier, id int) (*model.Sprint, error) {
	row := q.QueryRowContext(ctx, `
        SELECT `+sprintColumns+` FROM content_sprints WHERE id = $1
    `, id)
	sprint, err := scanSprint(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sprint %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint %d: %w", id, err)
	}
	return sprint, nil
}

// GetByIDs fetches a set of sprints. Missing ids are silently absent from
// the result; the conflict analyzer treats unknown sprints as non-blocking.
func (r *SprintRepository) GetByIDs(ctx context.Context, q db.Querier, ids []int) ([]model.Sprint, error) {
	if len(ids) == 0 {
		return []model.Sprint{}, nil
	}

	rows, err := q.QueryContext(ctx, `
        SELECT `+sprintColumns+` FROM content_sprints WHERE id = ANY($1)
    `, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get sprints: %w", err)
	}
	defer rows.Close()

	sprints := []model.Sprint{}
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, *sprint)
	}
	return sprints, rows.Err()
}

// ContentItems returns a sprint's items ordered by content_order.
func (r *SprintRepository) ContentItems(ctx context.Context, q db.Querier, sprintID int) ([]model.SprintContentItem, error) {
	return r.contentItemsAfter(ctx, q, sprintID, -1)
}

// ContentItemsAfter returns items with content_order strictly greater than
// afterOrder, for regenerating the queue mid-sprint.
func (r *SprintRepository) ContentItemsAfter(ctx context.Context, q db.Querier, sprintID, afterOrder int) ([]model.SprintContentItem, error) {
	return r.contentItemsAfter(ctx, q, sprintID, afterOrder)
}

func (r *SprintRepository) contentItemsAfter(ctx context.Context, q db.Querier, sprintID, afterOrder int) ([]model.SprintContentItem, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT id, sprint_id, content_order, content_categories,
               delay_hours_min, delay_hours_max, is_after_sprint_content
        FROM sprint_content_items
        WHERE sprint_id = $1 AND content_order > $2
        ORDER BY content_order ASC
    `, sprintID, afterOrder)
	if err != nil {
		return nil, fmt.Errorf("sprint %d content items: %w", sprintID, err)
	}
	defer rows.Close()

	items := []model.SprintContentItem{}
	for rows.Next() {
		var item model.SprintContentItem
		var categories pq.StringArray
		err := rows.Scan(
			&item.ID, &item.SprintID, &item.ContentOrder, &categories,
			&item.DelayHoursMin, &item.DelayHoursMax, &item.IsAfterSprintContent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		item.ContentCategories = []string(categories)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ContentItemCount reports how many items a sprint carries. The validator
// warns on sparse sprints.
func (r *SprintRepository) ContentItemCount(ctx context.Context, q db.Querier, sprintID int) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM sprint_content_items WHERE sprint_id = $1
    `, sprintID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sprint %d item count: %w", sprintID, err)
	}
	return count, nil
}
