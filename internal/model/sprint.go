package model

import "time"

// DefaultCooldownHours is applied after a sprint completes when the sprint
// row carries no cooldown of its own (14 days).
const DefaultCooldownHours = 336

// Sprint is a named, ordered template of content items with timing hints,
// optionally tagged with a location and a theme (sprint_type).
type Sprint struct {
	ID            int       `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	SprintType    *string   `db:"sprint_type" json:"sprint_type,omitempty"`
	Location      *string   `db:"location" json:"location,omitempty"`
	CooldownHours *int      `db:"cooldown_hours" json:"cooldown_hours,omitempty"`
	BlocksSprints bool      `db:"blocks_sprints" json:"blocks_sprints"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SprintContentItem is one slot of a sprint template. Delay bounds are in
// whole hours relative to the previous item.
type SprintContentItem struct {
	ID                   int      `db:"id" json:"id"`
	SprintID             int      `db:"sprint_id" json:"sprint_id"`
	ContentOrder         int      `db:"content_order" json:"content_order"`
	ContentCategories    []string `db:"content_categories" json:"content_categories"`
	DelayHoursMin        int      `db:"delay_hours_min" json:"delay_hours_min"`
	DelayHoursMax        int      `db:"delay_hours_max" json:"delay_hours_max"`
	IsAfterSprintContent bool     `db:"is_after_sprint_content" json:"is_after_sprint_content"`
}
