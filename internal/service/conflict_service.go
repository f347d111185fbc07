package service

import (
	"context"
	"fmt"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// incompatibleThemes lists theme pairs that must not run together, in both
// directions.
var incompatibleThemes = map[string][]string{
	"vacation":       {"work", "university"},
	"work":           {"vacation"},
	"university":     {"vacation"},
	"professional":   {"party"},
	"party":          {"professional"},
	"formal":         {"casual_extreme"},
	"casual_extreme": {"formal"},
}

func themesIncompatible(a, b string) bool {
	for _, other := range incompatibleThemes[a] {
		if other == b {
			return true
		}
	}
	return false
}

// ConflictService compares candidate emergency content against account
// state and active sprints. AnalyzeAccount is pure; Analyze fetches the
// sprint rows and fans out.
type ConflictService struct {
	SprintRepo sprintReader
	Conn       db.Querier
}

// Analyze produces one analysis per target account.
func (s *ConflictService) Analyze(ctx context.Context, content model.EmergencyContent, targets []model.TargetAccount) ([]model.ConflictAnalysis, error) {
	analyses := make([]model.ConflictAnalysis, 0, len(targets))
	for _, target := range targets {
		sprints, err := s.SprintRepo.GetByIDs(ctx, s.Conn, target.ActiveSprintIDs)
		if err != nil {
			return nil, fmt.Errorf("analyze conflicts for account %d: %w", target.ID, err)
		}
		analyses = append(analyses, AnalyzeAccount(content, target, sprints))
	}
	return analyses, nil
}

// AnalyzeAccount compares one account against the candidate content. The
// theme scan runs twice on purpose: once per active sprint, once per
// distinct sprint type for the account as a whole, mirroring how operators
// read the two lists.
func AnalyzeAccount(content model.EmergencyContent, target model.TargetAccount, activeSprints []model.Sprint) model.ConflictAnalysis {
	analysis := model.ConflictAnalysis{
		AccountID:         target.ID,
		LocationConflicts: []model.LocationConflict{},
		SprintConflicts:   []model.SprintConflict{},
		ThemeConflicts:    []model.ThemeConflict{},
	}

	if content.LocationContext != "" && target.CurrentLocation != nil && *target.CurrentLocation != content.LocationContext {
		analysis.LocationConflicts = append(analysis.LocationConflicts, model.LocationConflict{
			Type:              "location_mismatch",
			CurrentLocation:   *target.CurrentLocation,
			EmergencyLocation: content.LocationContext,
			Severity:          model.SeverityWarning,
			ResolutionOptions: []string{
				model.StrategyPostAlongside,
				model.StrategyOverrideConflicts,
				model.StrategySkipConflicted,
			},
		})
	}

	for _, sprint := range activeSprints {
		if content.LocationContext != "" && sprint.Location != nil && *sprint.Location != content.LocationContext {
			analysis.SprintConflicts = append(analysis.SprintConflicts, model.SprintConflict{
				Type:           "sprint_blocking",
				ActiveSprintID: sprint.ID,
				SprintName:     sprint.Name,
				ConflictReason: fmt.Sprintf("Sprint runs at %q, emergency content is for %q", *sprint.Location, content.LocationContext),
				ResolutionOptions: []string{
					model.StrategyPauseSprints,
					model.StrategyOverrideConflicts,
					model.StrategySkipConflicted,
				},
			})
		}
		if content.ThemeContext != "" && sprint.SprintType != nil && themesIncompatible(content.ThemeContext, *sprint.SprintType) {
			analysis.SprintConflicts = append(analysis.SprintConflicts, model.SprintConflict{
				Type:           "theme_mismatch",
				ActiveSprintID: sprint.ID,
				SprintName:     sprint.Name,
				ConflictReason: fmt.Sprintf("Sprint theme %q is incompatible with %q", *sprint.SprintType, content.ThemeContext),
				ResolutionOptions: []string{
					model.StrategyPauseSprints,
					model.StrategySkipConflicted,
				},
			})
		}
	}

	if content.ThemeContext != "" {
		seenTypes := map[string]bool{}
		for _, sprint := range activeSprints {
			if sprint.SprintType == nil || seenTypes[*sprint.SprintType] {
				continue
			}
			seenTypes[*sprint.SprintType] = true
			if themesIncompatible(content.ThemeContext, *sprint.SprintType) {
				analysis.ThemeConflicts = append(analysis.ThemeConflicts, model.ThemeConflict{
					Type:           "theme_incompatible",
					CurrentTheme:   *sprint.SprintType,
					EmergencyTheme: content.ThemeContext,
					Severity:       model.SeverityWarning,
					ResolutionOptions: []string{
						model.StrategyPostAlongside,
						model.StrategySkipConflicted,
					},
				})
			}
		}
	}

	analysis.HasConflicts = len(analysis.LocationConflicts) > 0 ||
		len(analysis.SprintConflicts) > 0 ||
		len(analysis.ThemeConflicts) > 0

	analysis.RecommendedStrategy = recommendStrategy(analysis)
	analysis.CanProceed = canProceed(content.Priority, analysis)
	return analysis
}

func recommendStrategy(analysis model.ConflictAnalysis) string {
	if !analysis.HasConflicts {
		return model.StrategyPostAlongside
	}
	if hasErrorSeverity(analysis) {
		return model.StrategySkipConflicted
	}
	if len(analysis.SprintConflicts) > 0 {
		return model.StrategyPauseSprints
	}
	return model.StrategyOverrideConflicts
}

// canProceed applies the priority gate: critical always goes through, high
// tolerates warnings, standard requires a clean account.
func canProceed(priority string, analysis model.ConflictAnalysis) bool {
	switch priority {
	case model.PriorityCritical:
		return true
	case model.PriorityHigh:
		return !hasErrorSeverity(analysis)
	default:
		return !analysis.HasConflicts
	}
}

func hasErrorSeverity(analysis model.ConflictAnalysis) bool {
	for _, c := range analysis.LocationConflicts {
		if c.Severity == model.SeverityError {
			return true
		}
	}
	for _, c := range analysis.ThemeConflicts {
		if c.Severity == model.SeverityError {
			return true
		}
	}
	return false
}
