package model

import "time"

// Conflict resolution strategies for emergency content.
const (
	StrategyPauseSprints      = "pause_sprints"
	StrategyPostAlongside     = "post_alongside"
	StrategyOverrideConflicts = "override_conflicts"
	StrategySkipConflicted    = "skip_conflicted"
)

// Emergency priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityStandard = "standard"
)

// Conflict severities.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// EmergencyContent is an out-of-band content item to be inserted ahead of or
// alongside normal schedules.
type EmergencyContent struct {
	FilePath        string `json:"file_path"`
	FileName        string `json:"file_name"`
	Caption         string `json:"caption,omitempty"`
	ContentType     string `json:"content_type"`
	Priority        string `json:"priority"`
	LocationContext string `json:"location_context,omitempty"`
	ThemeContext    string `json:"theme_context,omitempty"`
	PostImmediately bool   `json:"post_immediately"`
}

type EmergencyInjectionRequest struct {
	EmergencyContent EmergencyContent `json:"emergency_content"`
	TargetAccountIDs []int            `json:"target_account_ids,omitempty"`
	TargetAllAccounts bool            `json:"target_all_accounts,omitempty"`
	ConflictStrategy string           `json:"conflict_strategy"`
	ScheduledTime    *time.Time       `json:"scheduled_time,omitempty"`
}

type LocationConflict struct {
	Type              string   `json:"type"`
	CurrentLocation   string   `json:"current_location"`
	EmergencyLocation string   `json:"emergency_location"`
	Severity          string   `json:"severity"`
	ResolutionOptions []string `json:"resolution_options"`
}

type SprintConflict struct {
	Type              string   `json:"type"`
	ActiveSprintID    int      `json:"active_sprint_id"`
	SprintName        string   `json:"sprint_name"`
	ConflictReason    string   `json:"conflict_reason"`
	ResolutionOptions []string `json:"resolution_options"`
}

type ThemeConflict struct {
	Type              string   `json:"type"`
	CurrentTheme      string   `json:"current_theme"`
	EmergencyTheme    string   `json:"emergency_theme"`
	Severity          string   `json:"severity"`
	ResolutionOptions []string `json:"resolution_options"`
}

// ConflictAnalysis is the per-account result of comparing a candidate
// emergency content item against the account's state and active sprints.
// Produced fresh per call, never persisted.
type ConflictAnalysis struct {
	AccountID           int                `json:"account_id"`
	HasConflicts        bool               `json:"has_conflicts"`
	LocationConflicts   []LocationConflict `json:"location_conflicts"`
	SprintConflicts     []SprintConflict   `json:"sprint_conflicts"`
	ThemeConflicts      []ThemeConflict    `json:"theme_conflicts"`
	RecommendedStrategy string             `json:"recommended_strategy"`
	CanProceed          bool               `json:"can_proceed"`
}

// QueueAdjustment records one side effect performed during emergency
// insertion, for the result summary.
type QueueAdjustment struct {
	Type           string     `json:"type"`
	AssignmentID   *int       `json:"assignment_id,omitempty"`
	QueueItemID    *int       `json:"queue_item_id,omitempty"`
	OriginalTime   *time.Time `json:"original_time,omitempty"`
	NewTime        *time.Time `json:"new_time,omitempty"`
	OriginalStatus string     `json:"original_status,omitempty"`
	NewStatus      string     `json:"new_status,omitempty"`
	Reason         string     `json:"reason"`
}

// Adjustment types.
const (
	AdjustmentSprintPaused    = "sprint_paused"
	AdjustmentSprintResumed   = "sprint_resumed"
	AdjustmentItemRescheduled = "item_rescheduled"
	AdjustmentItemCancelled   = "item_cancelled"
)

type SuccessfulInjection struct {
	AccountID         int       `json:"account_id"`
	QueueItemID       int       `json:"queue_item_id"`
	ScheduledTime     time.Time `json:"scheduled_time"`
	StrategyUsed      string    `json:"strategy_used"`
	ConflictsResolved int       `json:"conflicts_resolved"`
	AdjustmentsMade   int       `json:"adjustments_made"`
}

type FailedInjection struct {
	AccountID         int              `json:"account_id"`
	Error             string           `json:"error"`
	Conflicts         ConflictAnalysis `json:"conflicts"`
	AttemptedStrategy string           `json:"attempted_strategy"`
}

type ConflictResolution struct {
	AccountID          int              `json:"account_id"`
	ConflictType       string           `json:"conflict_type"`
	ResolutionStrategy string           `json:"resolution_strategy"`
	OriginalState      ConflictAnalysis `json:"original_state"`
	Timestamp          time.Time        `json:"timestamp"`
}

type EmergencyInjectionResult struct {
	SuccessfulInjections  []SuccessfulInjection `json:"successful_injections"`
	FailedInjections      []FailedInjection     `json:"failed_injections"`
	AccountsSkipped       []int                 `json:"accounts_skipped"`
	ConflictsResolved     []ConflictResolution  `json:"conflicts_resolved"`
	QueueAdjustments      []QueueAdjustment     `json:"queue_adjustments"`
	TotalAccountsAffected int                   `json:"total_accounts_affected"`
	Summary               string                `json:"summary"`
}

type ConflictSummary struct {
	LocationConflicts     int `json:"location_conflicts"`
	SprintConflicts       int `json:"sprint_conflicts"`
	ThemeConflicts        int `json:"theme_conflicts"`
	HighSeverityConflicts int `json:"high_severity_conflicts"`
	LowSeverityConflicts  int `json:"low_severity_conflicts"`
}

type EmergencyContentPreview struct {
	TotalTargetAccounts           int             `json:"total_target_accounts"`
	AccountsWithConflicts         int             `json:"accounts_with_conflicts"`
	AccountsSkipped               int             `json:"accounts_skipped"`
	EstimatedSuccessfulInjections int             `json:"estimated_successful_injections"`
	ConflictSummary               ConflictSummary `json:"conflict_summary"`
	Recommendations               []string        `json:"recommendations"`
}

type EmergencyStats struct {
	ActiveEmergencyItems int `json:"active_emergency_items"`
	PostedLast7Days      int `json:"posted_last_7_days"`
	FailedLast7Days      int `json:"failed_last_7_days"`
	OverdueEmergency     int `json:"overdue_emergency"`
}

type EmergencyContentValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
