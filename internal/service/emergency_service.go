package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
)

// EmergencyService orchestrates emergency content injection across target
// accounts: payload validation, target resolution, conflict analysis, the
// per-account insertion fan-out and the audit trail.
type EmergencyService struct {
	AccountRepo *repository.AccountRepository
	QueueRepo   *repository.QueueRepository
	LogRepo     *repository.EmergencyLogRepository
	Conflicts   *ConflictService
	Engine      *EmergencyQueueService
	Logger      zerolog.Logger
}

var validContentTypes = map[string]bool{
	model.ContentTypeStory:     true,
	model.ContentTypePost:      true,
	model.ContentTypeHighlight: true,
}

var validPriorities = map[string]bool{
	model.PriorityCritical: true,
	model.PriorityHigh:     true,
	model.PriorityStandard: true,
}

// ValidatePayload checks the emergency content fields without touching the
// database. Warnings flag combinations that work but deserve a second look.
func (s *EmergencyService) ValidatePayload(content model.EmergencyContent) model.EmergencyContentValidation {
	validation := model.EmergencyContentValidation{Errors: []string{}, Warnings: []string{}}

	if content.FilePath == "" {
		validation.Errors = append(validation.Errors, "file_path is required")
	} else if !strings.HasPrefix(content.FilePath, "/") && !strings.HasPrefix(content.FilePath, "http") {
		validation.Errors = append(validation.Errors, "file_path must be an absolute path or URL")
	}
	if content.FileName == "" {
		validation.Errors = append(validation.Errors, "file_name is required")
	}
	if !validContentTypes[content.ContentType] {
		validation.Errors = append(validation.Errors, fmt.Sprintf("content_type must be one of story, post, highlight; got %q", content.ContentType))
	}
	if !validPriorities[content.Priority] {
		validation.Errors = append(validation.Errors, fmt.Sprintf("priority must be one of critical, high, standard; got %q", content.Priority))
	}

	if content.LocationContext != "" && content.ThemeContext != "" {
		validation.Warnings = append(validation.Warnings, "Both location and theme context are set; conflicts are more likely")
	}
	if content.Priority == model.PriorityStandard && content.PostImmediately {
		validation.Warnings = append(validation.Warnings, "post_immediately with standard priority skips the usual scheduling delay")
	}

	validation.Valid = len(validation.Errors) == 0
	return validation
}

func (s *EmergencyService) resolveTargets(ctx context.Context, req model.EmergencyInjectionRequest) ([]model.TargetAccount, error) {
	var ids []int
	if !req.TargetAllAccounts {
		ids = req.TargetAccountIDs
	}
	targets, err := s.AccountRepo.ResolveTargets(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, appErrors.NewValidationError("no eligible target accounts found")
	}
	return targets, nil
}

// Inject runs one emergency injection end to end. Per-account failures are
// collected, never propagated; the audit row is written asynchronously.
func (s *EmergencyService) Inject(ctx context.Context, req model.EmergencyInjectionRequest) (*model.EmergencyInjectionResult, error) {
	started := time.Now()

	if validation := s.ValidatePayload(req.EmergencyContent); !validation.Valid {
		return nil, appErrors.NewValidationError("invalid emergency content: %s", strings.Join(validation.Errors, "; "))
	}
	strategy := req.ConflictStrategy
	if strategy == "" {
		strategy = model.StrategyPauseSprints
	}

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	analyses, err := s.Conflicts.Analyze(ctx, req.EmergencyContent, targets)
	if err != nil {
		return nil, err
	}

	result := &model.EmergencyInjectionResult{
		SuccessfulInjections: []model.SuccessfulInjection{},
		FailedInjections:     []model.FailedInjection{},
		AccountsSkipped:      []int{},
		ConflictsResolved:    []model.ConflictResolution{},
		QueueAdjustments:     []model.QueueAdjustment{},
	}

	for i, target := range targets {
		analysis := analyses[i]

		// Skipped is not failed: conflicted accounts under skip_conflicted
		// drop out of the run without an error entry.
		if !analysis.CanProceed && strategy == model.StrategySkipConflicted {
			result.AccountsSkipped = append(result.AccountsSkipped, target.ID)
			continue
		}

		itemID, scheduledTime, adjustments, err := s.Engine.Insert(ctx, target.ID, req.EmergencyContent, strategy, req.ScheduledTime)
		if err != nil {
			s.Logger.Error().Err(err).Int("account_id", target.ID).Msg("emergency injection failed for account")
			result.FailedInjections = append(result.FailedInjections, model.FailedInjection{
				AccountID:         target.ID,
				Error:             err.Error(),
				Conflicts:         analysis,
				AttemptedStrategy: strategy,
			})
			continue
		}

		conflictCount := len(analysis.LocationConflicts) + len(analysis.SprintConflicts) + len(analysis.ThemeConflicts)
		result.SuccessfulInjections = append(result.SuccessfulInjections, model.SuccessfulInjection{
			AccountID:         target.ID,
			QueueItemID:       itemID,
			ScheduledTime:     scheduledTime,
			StrategyUsed:      strategy,
			ConflictsResolved: conflictCount,
			AdjustmentsMade:   len(adjustments),
		})
		result.QueueAdjustments = append(result.QueueAdjustments, adjustments...)

		if analysis.HasConflicts {
			result.ConflictsResolved = append(result.ConflictsResolved, model.ConflictResolution{
				AccountID:          target.ID,
				ConflictType:       conflictTypeLabel(analysis),
				ResolutionStrategy: strategy,
				OriginalState:      analysis,
				Timestamp:          time.Now(),
			})
		}
	}

	result.TotalAccountsAffected = len(result.SuccessfulInjections)
	result.Summary = injectionSummary(len(result.SuccessfulInjections), len(targets), len(result.ConflictsResolved))

	go s.audit(req, result, time.Since(started))

	return result, nil
}

// InjectImmediate is the panic button: critical priority, immediate
// posting, conflicts overridden.
func (s *EmergencyService) InjectImmediate(ctx context.Context, content model.EmergencyContent, targetIDs []int) (*model.EmergencyInjectionResult, error) {
	content.Priority = model.PriorityCritical
	content.PostImmediately = true
	return s.Inject(ctx, model.EmergencyInjectionRequest{
		EmergencyContent:  content,
		TargetAccountIDs:  targetIDs,
		TargetAllAccounts: len(targetIDs) == 0,
		ConflictStrategy:  model.StrategyOverrideConflicts,
	})
}

// BatchOutcome is one request's result within a batch injection.
type BatchOutcome struct {
	Index  int                             `json:"index"`
	Result *model.EmergencyInjectionResult `json:"result,omitempty"`
	Error  string                          `json:"error,omitempty"`
}

// BatchInject runs several injections with per-request isolation.
func (s *EmergencyService) BatchInject(ctx context.Context, requests []model.EmergencyInjectionRequest) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(requests))
	for i, req := range requests {
		result, err := s.Inject(ctx, req)
		outcome := BatchOutcome{Index: i, Result: result}
		if err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Preview reports what an injection would do without mutating anything.
func (s *EmergencyService) Preview(ctx context.Context, req model.EmergencyInjectionRequest) (*model.EmergencyContentPreview, error) {
	if validation := s.ValidatePayload(req.EmergencyContent); !validation.Valid {
		return nil, appErrors.NewValidationError("invalid emergency content: %s", strings.Join(validation.Errors, "; "))
	}
	strategy := req.ConflictStrategy
	if strategy == "" {
		strategy = model.StrategyPauseSprints
	}

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	analyses, err := s.Conflicts.Analyze(ctx, req.EmergencyContent, targets)
	if err != nil {
		return nil, err
	}

	preview := &model.EmergencyContentPreview{
		TotalTargetAccounts: len(targets),
		Recommendations:     []string{},
	}
	for _, analysis := range analyses {
		if analysis.HasConflicts {
			preview.AccountsWithConflicts++
		}
		if !analysis.CanProceed && strategy == model.StrategySkipConflicted {
			preview.AccountsSkipped++
		}
		preview.ConflictSummary.LocationConflicts += len(analysis.LocationConflicts)
		preview.ConflictSummary.SprintConflicts += len(analysis.SprintConflicts)
		preview.ConflictSummary.ThemeConflicts += len(analysis.ThemeConflicts)
		for _, c := range analysis.LocationConflicts {
			countSeverity(&preview.ConflictSummary, c.Severity)
		}
		for _, c := range analysis.ThemeConflicts {
			countSeverity(&preview.ConflictSummary, c.Severity)
		}
	}
	preview.EstimatedSuccessfulInjections = preview.TotalTargetAccounts - preview.AccountsSkipped

	if preview.AccountsWithConflicts > 0 {
		preview.Recommendations = append(preview.Recommendations,
			fmt.Sprintf("%d accounts have conflicts that may affect posting", preview.AccountsWithConflicts))
	}
	if strategy == model.StrategySkipConflicted && preview.AccountsSkipped > 0 {
		preview.Recommendations = append(preview.Recommendations,
			`Consider using "override_conflicts" to post to all accounts`)
	}
	if req.EmergencyContent.Priority == model.PriorityStandard && preview.AccountsWithConflicts > 0 {
		preview.Recommendations = append(preview.Recommendations,
			`Consider upgrading priority to "high" to post despite warnings`)
	}
	return preview, nil
}

// ResumeSprints delegates to the engine for one account.
func (s *EmergencyService) ResumeSprints(ctx context.Context, accountID int) ([]model.QueueAdjustment, error) {
	return s.Engine.ResumeSprints(ctx, accountID)
}

// CleanupExpired delegates to the engine.
func (s *EmergencyService) CleanupExpired(ctx context.Context, accountID *int) (int64, error) {
	return s.Engine.CleanupExpired(ctx, accountID)
}

// Stats reports emergency content counters.
func (s *EmergencyService) Stats(ctx context.Context) (model.EmergencyStats, error) {
	return s.QueueRepo.EmergencyStats(ctx)
}

// audit writes the injection trail. Failures are logged and swallowed so
// the audit path never breaks the injection path.
func (s *EmergencyService) audit(req model.EmergencyInjectionRequest, result *model.EmergencyInjectionResult, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.LogRepo.Insert(ctx,
		req.EmergencyContent.FileName,
		req.EmergencyContent.Priority,
		req.ConflictStrategy,
		req, result, elapsed.Milliseconds())
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to write emergency audit log")
	}
}

func injectionSummary(successful, total, conflictsResolved int) string {
	rate := 0
	if total > 0 {
		rate = int(math.Round(float64(successful) / float64(total) * 100))
	}
	return fmt.Sprintf("Emergency content injection completed: %d/%d successful (%d%%). %d conflicts resolved.",
		successful, total, rate, conflictsResolved)
}

func conflictTypeLabel(analysis model.ConflictAnalysis) string {
	types := []string{}
	if len(analysis.LocationConflicts) > 0 {
		types = append(types, "location")
	}
	if len(analysis.SprintConflicts) > 0 {
		types = append(types, "sprint")
	}
	if len(analysis.ThemeConflicts) > 0 {
		types = append(types, "theme")
	}
	return strings.Join(types, ",")
}

func countSeverity(summary *model.ConflictSummary, severity string) {
	if severity == model.SeverityError {
		summary.HighSeverityConflicts++
	} else {
		summary.LowSeverityConflicts++
	}
}
