package service

import (
	"context"
	"fmt"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// Data the validator needs, kept as interfaces so tests can fake them.

type accountReader interface {
	GetByID(ctx context.Context, q db.Querier, id int) (*model.Account, error)
	IsWarmupComplete(ctx context.Context, q db.Querier, accountID int) (bool, error)
}

type accountStateReader interface {
	Get(ctx context.Context, q db.Querier, accountID int) (*model.AccountContentState, error)
}

type sprintReader interface {
	GetByID(ctx context.Context, q db.Querier, id int) (*model.Sprint, error)
	GetByIDs(ctx context.Context, q db.Querier, ids []int) ([]model.Sprint, error)
	ContentItemCount(ctx context.Context, q db.Querier, sprintID int) (int, error)
}

const sparseContentThreshold = 5

// ValidationService decides whether an account may receive a sprint
// assignment. It never mutates anything; callers act on the result.
type ValidationService struct {
	AccountRepo accountReader
	StateRepo   accountStateReader
	SprintRepo  sprintReader
}

// ValidateAssignment runs the eligibility checks and conflict scan for one
// account/sprint pair. Runs inside the caller's transaction when one is
// open, so the answer matches what the caller is about to commit against.
func (s *ValidationService) ValidateAssignment(ctx context.Context, q db.Querier, accountID, sprintID int) (model.ValidationResult, error) {
	result := model.ValidationResult{
		Conflicts:         []model.AssignmentConflict{},
		Warnings:          []model.AssignmentWarning{},
		EligibilityChecks: []model.EligibilityCheck{},
	}

	account, err := s.AccountRepo.GetByID(ctx, q, accountID)
	if err != nil {
		return result, fmt.Errorf("validate assignment: %w", err)
	}

	warmupComplete, err := s.AccountRepo.IsWarmupComplete(ctx, q, accountID)
	if err != nil {
		return result, fmt.Errorf("validate assignment: %w", err)
	}
	result.EligibilityChecks = append(result.EligibilityChecks, model.EligibilityCheck{
		Check:   "warmup_complete",
		Passed:  warmupComplete,
		Message: checkMessage(warmupComplete, "Account has completed warmup", "Account is still in warmup"),
	})

	active := account.Status == "active"
	result.EligibilityChecks = append(result.EligibilityChecks, model.EligibilityCheck{
		Check:   "account_active",
		Passed:  active,
		Message: checkMessage(active, "Account is active", fmt.Sprintf("Account status is %q", account.Status)),
	})

	state, err := s.StateRepo.Get(ctx, q, accountID)
	if err != nil {
		return result, fmt.Errorf("validate assignment: %w", err)
	}

	now := time.Now()
	notInCooldown := state.CooldownUntil == nil || state.CooldownUntil.Before(now)
	result.EligibilityChecks = append(result.EligibilityChecks, model.EligibilityCheck{
		Check:   "not_in_cooldown",
		Passed:  notInCooldown,
		Message: checkMessage(notInCooldown, "Account is not in cooldown", "Account is in post-sprint cooldown"),
	})

	notIdle := state.IdleSince == nil || !state.SilenceDuringIdle
	result.EligibilityChecks = append(result.EligibilityChecks, model.EligibilityCheck{
		Check:   "not_idle",
		Passed:  notIdle,
		Message: checkMessage(notIdle, "Account is not idled", "Account is idled with silence enabled"),
	})

	sprint, err := s.SprintRepo.GetByID(ctx, q, sprintID)
	if err != nil {
		return result, fmt.Errorf("validate assignment: %w", err)
	}

	if sprint.Location != nil {
		activeSprints, err := s.SprintRepo.GetByIDs(ctx, q, state.ActiveSprintIDs)
		if err != nil {
			return result, fmt.Errorf("validate assignment: %w", err)
		}
		for _, activeSprint := range activeSprints {
			if activeSprint.Location != nil && *activeSprint.Location != *sprint.Location {
				result.Conflicts = append(result.Conflicts, model.AssignmentConflict{
					Type:     "location_conflict",
					Severity: model.SeverityError,
					Message: fmt.Sprintf("Sprint location %q conflicts with active sprint %q at %q",
						*sprint.Location, activeSprint.Name, *activeSprint.Location),
				})
			}
		}
	}

	itemCount, err := s.SprintRepo.ContentItemCount(ctx, q, sprintID)
	if err != nil {
		return result, fmt.Errorf("validate assignment: %w", err)
	}
	if itemCount < sparseContentThreshold {
		result.Warnings = append(result.Warnings, model.AssignmentWarning{
			Type:    "sparse_sprint",
			Message: fmt.Sprintf("Sprint has only %d content items", itemCount),
		})
	}

	result.IsValid = true
	for _, check := range result.EligibilityChecks {
		if !check.Passed {
			result.IsValid = false
		}
	}
	for _, conflict := range result.Conflicts {
		if conflict.Severity == model.SeverityError {
			result.IsValid = false
		}
	}
	return result, nil
}

func checkMessage(passed bool, ok, failed string) string {
	if passed {
		return ok
	}
	return failed
}
