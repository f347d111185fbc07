package model

import "time"

type Account struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Status   string `db:"status" json:"status"`
}

// AccountContentState is the per-account scheduling context. Lazily created
// on first assignment, never deleted.
type AccountContentState struct {
	AccountID            int        `db:"account_id" json:"account_id"`
	CurrentLocation      *string    `db:"current_location" json:"current_location,omitempty"`
	ActiveSprintIDs      []int      `db:"active_sprint_ids" json:"active_sprint_ids"`
	CooldownUntil        *time.Time `db:"cooldown_until" json:"cooldown_until,omitempty"`
	IdleSince            *time.Time `db:"idle_since" json:"idle_since,omitempty"`
	SilenceDuringIdle    bool       `db:"silence_during_idle" json:"silence_during_idle"`
	LastEmergencyContent *time.Time `db:"last_emergency_content" json:"last_emergency_content,omitempty"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// TargetAccount is an account joined with its content state, as resolved by
// the emergency orchestrator when fanning out an injection.
type TargetAccount struct {
	ID              int     `json:"id"`
	Username        string  `json:"username"`
	Status          string  `json:"status"`
	CurrentLocation *string `json:"current_location,omitempty"`
	ActiveSprintIDs []int   `json:"active_sprint_ids"`
}
