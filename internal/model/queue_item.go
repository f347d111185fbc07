package model

import "time"

// Queue item statuses. "posted" and "cancelled" are terminal.
const (
	QueueStatusQueued    = "queued"
	QueueStatusPosted    = "posted"
	QueueStatusFailed    = "failed"
	QueueStatusCancelled = "cancelled"
	QueueStatusRetrying  = "retrying"
)

const (
	ContentTypeStory     = "story"
	ContentTypePost      = "post"
	ContentTypeHighlight = "highlight"
)

// Queue priorities: lower is more urgent. Emergency content is always 1.
const (
	PriorityEmergency = 1
	PriorityNormal    = 100
)

type QueueItem struct {
	ID                 int        `db:"id" json:"id"`
	AccountID          int        `db:"account_id" json:"account_id"`
	SprintAssignmentID *int       `db:"sprint_assignment_id" json:"sprint_assignment_id,omitempty"`
	ContentItemID      *int       `db:"content_item_id" json:"content_item_id,omitempty"`
	ScheduledTime      time.Time  `db:"scheduled_time" json:"scheduled_time"`
	ContentType        string     `db:"content_type" json:"content_type"`
	Status             string     `db:"status" json:"status"`
	EmergencyContent   bool       `db:"emergency_content" json:"emergency_content"`
	QueuePriority      int        `db:"queue_priority" json:"queue_priority"`
	RetryCount         int        `db:"retry_count" json:"retry_count"`
	ErrorMessage       *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	PostedAt           *time.Time `db:"posted_at" json:"posted_at,omitempty"`
}

// QueueItemDetailed is a queue item joined with account/sprint context for
// listing endpoints.
type QueueItemDetailed struct {
	QueueItem
	AccountUsername *string `json:"account_username,omitempty"`
	SprintName      *string `json:"sprint_name,omitempty"`
	IsOverdue       bool    `json:"is_overdue"`
	TimeUntilDueMin int     `json:"time_until_due"`
}

// QueueFilters narrows queue listings. Zero values mean "no filter".
type QueueFilters struct {
	AccountID          int
	SprintAssignmentID int
	ContentType        string
	Status             string
	EmergencyContent   *bool
	ScheduledFrom      *time.Time
	ScheduledTo        *time.Time
	Limit              int
	Offset             int
	SortBy             string
	SortOrder          string
}

type PageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type QueuePage struct {
	Items      []QueueItemDetailed `json:"items"`
	TotalCount int                 `json:"total_count"`
	PageInfo   PageInfo            `json:"page_info"`
}

// QueueUpdate is one entry of a bulk update. Nil fields are left untouched.
type QueueUpdate struct {
	ItemID        int        `json:"item_id"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	ContentType   *string    `json:"content_type,omitempty"`
	QueuePriority *int       `json:"queue_priority,omitempty"`
	Status        *string    `json:"status,omitempty"`
}

type BulkUpdateError struct {
	ItemID       int    `json:"item_id"`
	ErrorMessage string `json:"error_message"`
}

type BulkUpdateResult struct {
	UpdatedCount int               `json:"updated_count"`
	FailedCount  int               `json:"failed_count"`
	Errors       []BulkUpdateError `json:"errors"`
}

type QueueStats struct {
	TotalItems        int     `json:"total_items"`
	QueuedCount       int     `json:"queued_count"`
	PostedCount       int     `json:"posted_count"`
	FailedCount       int     `json:"failed_count"`
	OverdueCount      int     `json:"overdue_count"`
	Upcoming24h       int     `json:"upcoming_24h"`
	EmergencyCount    int     `json:"emergency_count"`
	AccountsWithQueue int     `json:"accounts_with_queue"`
	AvgQueueSize      float64 `json:"avg_queue_size"`
}

type QueueBottleneck struct {
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	AffectedAccounts int    `json:"affected_accounts"`
	Description      string `json:"description"`
	SuggestedAction  string `json:"suggested_action"`
}

type QueueAlert struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	RequiresAction bool      `json:"requires_action"`
}

type QueueHealthReport struct {
	OverallStatus string            `json:"overall_status"`
	QueueSize     int               `json:"queue_size"`
	OverdueCount  int               `json:"overdue_count"`
	FailedCount   int               `json:"failed_count"`
	Bottlenecks   []QueueBottleneck `json:"bottlenecks"`
	Alerts        []QueueAlert      `json:"alerts"`
	LastChecked   time.Time         `json:"last_checked"`
}

type QueueSummary struct {
	Stats          QueueStats          `json:"stats"`
	Upcoming       []QueueItemDetailed `json:"upcoming"`
	Overdue        []QueueItemDetailed `json:"overdue"`
	RecentActivity []QueueItemDetailed `json:"recent_activity"`
}
