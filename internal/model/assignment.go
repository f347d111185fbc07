package model

import "time"

// Assignment statuses. "completed" and "cancelled" are terminal.
const (
	AssignmentStatusScheduled = "scheduled"
	AssignmentStatusActive    = "active"
	AssignmentStatusPaused    = "paused"
	AssignmentStatusCompleted = "completed"
	AssignmentStatusCancelled = "cancelled"
)

// SprintAssignment binds one sprint to one account, with its own progress
// cursor and schedule. Rows are never deleted; terminal status is the soft
// delete.
type SprintAssignment struct {
	ID                  int        `db:"id" json:"id"`
	AccountID           int        `db:"account_id" json:"account_id"`
	SprintID            int        `db:"sprint_id" json:"sprint_id"`
	AssignmentDate      time.Time  `db:"assignment_date" json:"assignment_date"`
	StartDate           *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate             *time.Time `db:"end_date" json:"end_date,omitempty"`
	Status              string     `db:"status" json:"status"`
	CurrentContentIndex int        `db:"current_content_index" json:"current_content_index"`
	NextContentDue      *time.Time `db:"next_content_due" json:"next_content_due,omitempty"`
	SprintInstanceID    string     `db:"sprint_instance_id" json:"sprint_instance_id"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// AssignmentOptions tweaks assignment creation.
type AssignmentOptions struct {
	StartDate      *time.Time `json:"start_date,omitempty"`
	SkipValidation bool       `json:"skip_validation,omitempty"`
	ForceOverride  bool       `json:"force_override,omitempty"`
}

type AssignmentRequest struct {
	AccountID int        `json:"account_id"`
	SprintID  int        `json:"sprint_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

type BulkAssignmentRequest struct {
	Assignments   []AssignmentRequest `json:"assignments"`
	ForceOverride bool                `json:"force_override,omitempty"`
}

type FailedAssignment struct {
	AccountID int                  `json:"account_id"`
	SprintID  int                  `json:"sprint_id"`
	Error     string               `json:"error"`
	Conflicts []AssignmentConflict `json:"conflicts,omitempty"`
}

type BulkAssignmentSummary struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
}

type BulkAssignmentResult struct {
	SuccessfulAssignments []SprintAssignment    `json:"successful_assignments"`
	FailedAssignments     []FailedAssignment    `json:"failed_assignments"`
	Summary               BulkAssignmentSummary `json:"summary"`
}

type AssignmentFilters struct {
	AccountID int
	SprintID  int
	Status    string
}

// Validation collaborator result types.

type AssignmentConflict struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type AssignmentWarning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EligibilityCheck struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

type ValidationResult struct {
	IsValid           bool                 `json:"is_valid"`
	Conflicts         []AssignmentConflict `json:"conflicts"`
	Warnings          []AssignmentWarning  `json:"warnings"`
	EligibilityChecks []EligibilityCheck   `json:"eligibility_checks"`
}
