package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// AccountStateRepository manages account_content_state rows. Multi-step
// scheduling operations lock the row first so two writers touching the same
// account serialize on it.
type AccountStateRepository struct {
	Conn *sql.DB
}

const accountStateColumns = `
    account_id, current_location, active_sprint_ids, cooldown_until,
    idle_since, silence_during_idle, last_emergency_content, updated_at
`

func scanAccountState(row interface{ Scan(dest ...any) error }) (*model.AccountContentState, error) {
	var (
		state     model.AccountContentState
		sprintIDs pq.Int64Array
	)
	err := row.Scan(
		&state.AccountID, &state.CurrentLocation, &sprintIDs, &state.CooldownUntil,
		&state.IdleSince, &state.SilenceDuringIdle, &state.LastEmergencyContent, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	state.ActiveSprintIDs = make([]int, len(sprintIDs))
	for i, id := range sprintIDs {
		state.ActiveSprintIDs[i] = int(id)
	}
	return &state, nil
}

// EnsureExists lazily creates the state row with home defaults. Safe to
// call repeatedly.
func (r *AccountStateRepository) EnsureExists(ctx context.Context, q db.Querier, accountID int) error {
	if _, err := q.ExecContext(ctx, `
        INSERT INTO account_content_state (account_id, current_location, active_sprint_ids)
        VALUES ($1, 'home', '{}')
        ON CONFLICT (account_id) DO NOTHING
    `, accountID); err != nil {
		return fmt.Errorf("ensure account state %d: %w", accountID, err)
	}
	return nil
}

// Get reads the state row without locking, creating it if absent.
func (r *AccountStateRepository) Get(ctx context.Context, q db.Querier, accountID int) (*model.AccountContentState, error) {
	if err := r.EnsureExists(ctx, q, accountID); err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `
        SELECT `+accountStateColumns+`
        FROM account_content_state
        WHERE account_id = $1
    `, accountID)
	state, err := scanAccountState(row)
	if err != nil {
		return nil, fmt.Errorf("get account state %d: %w", accountID, err)
	}
	return state, nil
}

// LockForUpdate reads the state row with FOR UPDATE inside the caller's
// transaction. Every multi-step mutation of one account's schedule starts
// here.
func (r *AccountStateRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, accountID int) (*model.AccountContentState, error) {
	if err := r.EnsureExists(ctx, tx, accountID); err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx, `
        SELECT `+accountStateColumns+`
        FROM account_content_state
        WHERE account_id = $1
        FOR UPDATE
    `, accountID)
	state, err := scanAccountState(row)
	if err != nil {
		return nil, fmt.Errorf("lock account state %d: %w", accountID, err)
	}
	return state, nil
}

// ActivateSprint records a sprint going live: appends it to the active set
// and, when the sprint carries a location, moves the account there.
func (r *AccountStateRepository) ActivateSprint(ctx context.Context, q db.Querier, accountID, sprintID int, location *string) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE account_content_state
        SET
            active_sprint_ids = array_append(active_sprint_ids, $2),
            current_location = COALESCE($3, current_location),
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $1
    `, accountID, sprintID, location); err != nil {
		return fmt.Errorf("activate sprint on account state %d: %w", accountID, err)
	}
	return nil
}

// DeactivateSprint removes a sprint from the active set.
func (r *AccountStateRepository) DeactivateSprint(ctx context.Context, q db.Querier, accountID, sprintID int) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE account_content_state
        SET
            active_sprint_ids = array_remove(active_sprint_ids, $2),
            updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $1
    `, accountID, sprintID); err != nil {
		return fmt.Errorf("deactivate sprint on account state %d: %w", accountID, err)
	}
	return nil
}

// SetCooldown parks the account until the given time.
func (r *AccountStateRepository) SetCooldown(ctx context.Context, q db.Querier, accountID int, until time.Time) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE account_content_state
        SET cooldown_until = $2, updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $1
    `, accountID, until); err != nil {
		return fmt.Errorf("set cooldown on account state %d: %w", accountID, err)
	}
	return nil
}

// TouchLastEmergency stamps the account's emergency marker.
func (r *AccountStateRepository) TouchLastEmergency(ctx context.Context, q db.Querier, accountID int) error {
	if _, err := q.ExecContext(ctx, `
        UPDATE account_content_state
        SET last_emergency_content = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE account_id = $1
    `, accountID); err != nil {
		return fmt.Errorf("touch emergency on account state %d: %w", accountID, err)
	}
	return nil
}
