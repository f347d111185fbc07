package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// AccountRepository reads accounts and resolves injection targets. Account
// provisioning lives in another system; warmup progress is exposed through
// the is_warmup_complete SQL function it owns.
type AccountRepository struct {
	Conn *sql.DB
}

// GetByID fetches one account.
func (r *AccountRepository) GetByID(ctx context.Context, q db.Querier, id int) (*model.Account, error) {
	var account model.Account
	err := q.QueryRowContext(ctx, `
        SELECT id, username, status FROM accounts WHERE id = $1
    `, id).Scan(&account.ID, &account.Username, &account.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return &account, nil
}

// IsWarmupComplete reports whether the account finished its warmup phase.
func (r *AccountRepository) IsWarmupComplete(ctx context.Context, q db.Querier, accountID int) (bool, error) {
	var complete bool
	err := q.QueryRowContext(ctx, `
        SELECT is_warmup_complete($1)
    `, accountID).Scan(&complete)
	if err != nil {
		return false, fmt.Errorf("warmup check for account %d: %w", accountID, err)
	}
	return complete, nil
}

// ResolveTargets returns active, warmup-complete accounts joined with their
// content state. With ids it narrows to that set; without, every eligible
// account is a target.
func (r *AccountRepository) ResolveTargets(ctx context.Context, ids []int) ([]model.TargetAccount, error) {
	query := `
        SELECT a.id, a.username, a.status,
               acs.current_location,
               COALESCE(acs.active_sprint_ids, '{}') AS active_sprint_ids
        FROM accounts a
        LEFT JOIN account_content_state acs ON acs.account_id = a.id
        WHERE a.status = 'active' AND is_warmup_complete(a.id)
    `
	params := []any{}
	if len(ids) > 0 {
		query += " AND a.id = ANY($1)"
		params = append(params, pq.Array(ids))
	}
	query += " ORDER BY a.id ASC"

	rows, err := r.Conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("resolve target accounts: %w", err)
	}
	defer rows.Close()

	targets := []model.TargetAccount{}
	for rows.Next() {
		var (
			target    model.TargetAccount
			sprintIDs pq.Int64Array
		)
		err := rows.Scan(&target.ID, &target.Username, &target.Status, &target.CurrentLocation, &sprintIDs)
		if err != nil {
			return nil, fmt.Errorf("scan target account: %w", err)
		}
		target.ActiveSprintIDs = make([]int, len(sprintIDs))
		for i, id := range sprintIDs {
			target.ActiveSprintIDs[i] = int(id)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}
