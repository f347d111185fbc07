package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

func TestCalculateInsertionTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next := now.Add(30 * time.Minute)

	t.Run("post immediately wins over priority", func(t *testing.T) {
		got := CalculateInsertionTime(model.PriorityStandard, true, &next, now)
		assert.Equal(t, now, got)
	})

	t.Run("critical posts now", func(t *testing.T) {
		got := CalculateInsertionTime(model.PriorityCritical, false, &next, now)
		assert.Equal(t, now, got)
	})

	t.Run("high squeezes in before next item", func(t *testing.T) {
		got := CalculateInsertionTime(model.PriorityHigh, false, &next, now)
		assert.Equal(t, next.Add(-1*time.Minute), got)
	})

	t.Run("high with empty queue waits five minutes", func(t *testing.T) {
		got := CalculateInsertionTime(model.PriorityHigh, false, nil, now)
		assert.Equal(t, now.Add(5*time.Minute), got)
	})

	t.Run("high ignores items already in the past", func(t *testing.T) {
		past := now.Add(-10 * time.Minute)
		got := CalculateInsertionTime(model.PriorityHigh, false, &past, now)
		assert.Equal(t, now.Add(5*time.Minute), got)
	})

	t.Run("standard waits an hour", func(t *testing.T) {
		got := CalculateInsertionTime(model.PriorityStandard, false, nil, now)
		assert.Equal(t, now.Add(1*time.Hour), got)
	})
}

func TestPlanGapEnforcementPushesCrowdedItems(t *testing.T) {
	insertion := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		{ID: 1, ScheduledTime: insertion.Add(1 * time.Hour)},
		{ID: 2, ScheduledTime: insertion.Add(2 * time.Hour)},
		{ID: 3, ScheduledTime: insertion.Add(3 * time.Hour)},
	}

	moves := PlanGapEnforcement(items, insertion)

	require.Len(t, moves, 3)
	assert.Equal(t, insertion.Add(4*time.Hour), moves[0].NewTime)
	assert.Equal(t, insertion.Add(8*time.Hour), moves[1].NewTime)
	assert.Equal(t, insertion.Add(12*time.Hour), moves[2].NewTime)
}

func TestPlanGapEnforcementKeepsSpacedItems(t *testing.T) {
	insertion := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		{ID: 1, ScheduledTime: insertion.Add(5 * time.Hour)},
		{ID: 2, ScheduledTime: insertion.Add(20 * time.Hour)},
	}

	moves := PlanGapEnforcement(items, insertion)

	assert.Empty(t, moves)
}

func TestPlanGapEnforcementFarItemResetsCursor(t *testing.T) {
	insertion := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		{ID: 1, ScheduledTime: insertion.Add(1 * time.Hour)},   // pushed to +4h
		{ID: 2, ScheduledTime: insertion.Add(30 * time.Hour)},  // far out, stays
		{ID: 3, ScheduledTime: insertion.Add(31 * time.Hour)},  // too close behind item 2
	}

	moves := PlanGapEnforcement(items, insertion)

	require.Len(t, moves, 2)
	assert.Equal(t, 1, moves[0].ItemID)
	assert.Equal(t, insertion.Add(4*time.Hour), moves[0].NewTime)
	assert.Equal(t, 3, moves[1].ItemID)
	assert.Equal(t, insertion.Add(34*time.Hour), moves[1].NewTime)
}

func TestPlanGapEnforcementResultingSpacing(t *testing.T) {
	insertion := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	items := []model.QueueItem{}
	for i := 0; i < 8; i++ {
		items = append(items, model.QueueItem{ID: i + 1, ScheduledTime: insertion.Add(time.Duration(i+1) * time.Hour)})
	}

	moves := PlanGapEnforcement(items, insertion)

	// Apply the plan and verify every consecutive pair ends up at least the
	// enforced gap apart, starting from the insertion slot.
	final := map[int]time.Time{}
	for _, item := range items {
		final[item.ID] = item.ScheduledTime
	}
	for _, move := range moves {
		final[move.ItemID] = move.NewTime
	}

	prev := insertion
	for _, item := range items {
		assert.True(t, final[item.ID].Sub(prev) >= emergencyContentGap,
			"item %d at %s is too close to %s", item.ID, final[item.ID], prev)
		prev = final[item.ID]
	}
}
