package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

func strPtr(s string) *string { return &s }

func vacationContent(priority string) model.EmergencyContent {
	return model.EmergencyContent{
		FilePath:        "/content/emergency.jpg",
		FileName:        "emergency.jpg",
		ContentType:     model.ContentTypeStory,
		Priority:        priority,
		LocationContext: "mallorca",
		ThemeContext:    "vacation",
	}
}

func TestAnalyzeAccountNoConflicts(t *testing.T) {
	target := model.TargetAccount{ID: 1, CurrentLocation: strPtr("mallorca")}
	sprints := []model.Sprint{
		{ID: 10, Name: "Beach Week", SprintType: strPtr("vacation"), Location: strPtr("mallorca")},
	}

	analysis := AnalyzeAccount(vacationContent(model.PriorityStandard), target, sprints)

	assert.False(t, analysis.HasConflicts)
	assert.True(t, analysis.CanProceed)
	assert.Equal(t, model.StrategyPostAlongside, analysis.RecommendedStrategy)
}

func TestAnalyzeAccountLocationMismatch(t *testing.T) {
	target := model.TargetAccount{ID: 1, CurrentLocation: strPtr("berlin")}

	analysis := AnalyzeAccount(vacationContent(model.PriorityStandard), target, nil)

	require.Len(t, analysis.LocationConflicts, 1)
	assert.Equal(t, "location_mismatch", analysis.LocationConflicts[0].Type)
	assert.Equal(t, model.SeverityWarning, analysis.LocationConflicts[0].Severity)
	assert.True(t, analysis.HasConflicts)
	// Standard priority requires a clean account.
	assert.False(t, analysis.CanProceed)
	assert.Equal(t, model.StrategyOverrideConflicts, analysis.RecommendedStrategy)
}

func TestAnalyzeAccountSprintConflictRecommendsPause(t *testing.T) {
	target := model.TargetAccount{ID: 1, CurrentLocation: strPtr("mallorca")}
	sprints := []model.Sprint{
		{ID: 20, Name: "University Week", SprintType: strPtr("university"), Location: strPtr("berlin")},
	}

	analysis := AnalyzeAccount(vacationContent(model.PriorityHigh), target, sprints)

	require.NotEmpty(t, analysis.SprintConflicts)
	assert.Equal(t, model.StrategyPauseSprints, analysis.RecommendedStrategy)
	// High priority tolerates warning-level conflicts.
	assert.True(t, analysis.CanProceed)
}

func TestAnalyzeAccountThemeIncompatibilityListedTwice(t *testing.T) {
	target := model.TargetAccount{ID: 1}
	sprints := []model.Sprint{
		{ID: 30, Name: "Office Days", SprintType: strPtr("work")},
	}

	analysis := AnalyzeAccount(vacationContent(model.PriorityHigh), target, sprints)

	// The incompatible pair shows up in both the sprint view and the theme
	// view of the analysis.
	themeMismatches := 0
	for _, c := range analysis.SprintConflicts {
		if c.Type == "theme_mismatch" {
			themeMismatches++
		}
	}
	assert.Equal(t, 1, themeMismatches)
	require.Len(t, analysis.ThemeConflicts, 1)
	assert.Equal(t, "theme_incompatible", analysis.ThemeConflicts[0].Type)
	assert.Equal(t, "work", analysis.ThemeConflicts[0].CurrentTheme)
}

func TestAnalyzeAccountThemeConflictsDedupedBySprintType(t *testing.T) {
	target := model.TargetAccount{ID: 1}
	sprints := []model.Sprint{
		{ID: 30, Name: "Office Days", SprintType: strPtr("work")},
		{ID: 31, Name: "Overtime Week", SprintType: strPtr("work")},
	}

	analysis := AnalyzeAccount(vacationContent(model.PriorityHigh), target, sprints)

	// Each sprint still reports its own conflict, but the theme view counts
	// the shared type once.
	themeMismatches := 0
	for _, c := range analysis.SprintConflicts {
		if c.Type == "theme_mismatch" {
			themeMismatches++
		}
	}
	assert.Equal(t, 2, themeMismatches)
	require.Len(t, analysis.ThemeConflicts, 1)
	assert.Equal(t, "work", analysis.ThemeConflicts[0].CurrentTheme)
}

func TestAnalyzeAccountPriorityGate(t *testing.T) {
	target := model.TargetAccount{ID: 1, CurrentLocation: strPtr("berlin")}
	sprints := []model.Sprint{
		{ID: 20, Name: "Campus Life", SprintType: strPtr("university"), Location: strPtr("berlin")},
	}
	content := vacationContent("")

	for _, tc := range []struct {
		priority   string
		canProceed bool
	}{
		{model.PriorityCritical, true},
		{model.PriorityHigh, true},
		{model.PriorityStandard, false},
	} {
		content.Priority = tc.priority
		analysis := AnalyzeAccount(content, target, sprints)
		assert.Equal(t, tc.canProceed, analysis.CanProceed, "priority %s", tc.priority)
	}
}

func TestThemesIncompatiblePairs(t *testing.T) {
	assert.True(t, themesIncompatible("vacation", "work"))
	assert.True(t, themesIncompatible("work", "vacation"))
	assert.True(t, themesIncompatible("professional", "party"))
	assert.True(t, themesIncompatible("formal", "casual_extreme"))
	assert.False(t, themesIncompatible("vacation", "fitness"))
	assert.False(t, themesIncompatible("", "work"))
}
