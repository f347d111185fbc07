package schedule_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
)

func seededCalculator(seed int64) *schedule.Calculator {
	return &schedule.Calculator{Rand: rand.New(rand.NewSource(seed))}
}

func TestCalculateDelayBounds(t *testing.T) {
	items := []model.SprintContentItem{
		{ID: 1, ContentOrder: 1, DelayHoursMin: 2, DelayHoursMax: 8, ContentCategories: []string{"story"}},
		{ID: 2, ContentOrder: 2, DelayHoursMin: 12, DelayHoursMax: 36, ContentCategories: []string{"post"}},
		{ID: 3, ContentOrder: 3, DelayHoursMin: 1, DelayHoursMax: 1, ContentCategories: []string{"highlight"}},
	}
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Many seeds: every drawn delay must stay inside its bounds.
	for seed := int64(0); seed < 50; seed++ {
		sched := seededCalculator(seed).Calculate(items, start)
		require.Len(t, sched.Items, 3)

		for i, got := range sched.Items {
			assert.GreaterOrEqual(t, got.DelayFromPreviousHours, items[i].DelayHoursMin,
				"seed %d item %d below min", seed, i)
			assert.LessOrEqual(t, got.DelayFromPreviousHours, items[i].DelayHoursMax,
				"seed %d item %d above max", seed, i)
		}

		// min == max draws the constant exactly
		assert.Equal(t, 1, sched.Items[2].DelayFromPreviousHours)
	}
}

func TestCalculateMonotonicSchedule(t *testing.T) {
	items := []model.SprintContentItem{
		{ID: 1, ContentOrder: 1, DelayHoursMin: 0, DelayHoursMax: 5},
		{ID: 2, ContentOrder: 2, DelayHoursMin: 0, DelayHoursMax: 5},
		{ID: 3, ContentOrder: 3, DelayHoursMin: 0, DelayHoursMax: 5},
		{ID: 4, ContentOrder: 4, DelayHoursMin: 0, DelayHoursMax: 5},
	}
	start := time.Now()

	for seed := int64(0); seed < 50; seed++ {
		sched := seededCalculator(seed).Calculate(items, start)
		for i := 1; i < len(sched.Items); i++ {
			assert.False(t, sched.Items[i].ScheduledTime.Before(sched.Items[i-1].ScheduledTime),
				"seed %d: item %d scheduled before item %d", seed, i, i-1)
		}
	}
}

func TestCalculateCumulativeTimes(t *testing.T) {
	items := []model.SprintContentItem{
		{ID: 1, ContentOrder: 1, DelayHoursMin: 3, DelayHoursMax: 3},
		{ID: 2, ContentOrder: 2, DelayHoursMin: 6, DelayHoursMax: 6},
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	sched := seededCalculator(1).Calculate(items, start)

	require.Len(t, sched.Items, 2)
	assert.Equal(t, start.Add(3*time.Hour), sched.Items[0].ScheduledTime)
	assert.Equal(t, start.Add(9*time.Hour), sched.Items[1].ScheduledTime)
	assert.Equal(t, start.Add(9*time.Hour), sched.EndDate)
	assert.Equal(t, 9, sched.TotalDurationHours)
	assert.Equal(t, start, sched.StartDate)
}

func TestCalculateEmptySprint(t *testing.T) {
	start := time.Now()
	sched := seededCalculator(1).Calculate(nil, start)

	assert.Empty(t, sched.Items)
	assert.Equal(t, start, sched.EndDate)
	assert.Zero(t, sched.TotalDurationHours)
}

func TestResolveContentType(t *testing.T) {
	cases := []struct {
		name       string
		categories []string
		want       string
	}{
		{"post wins over story", []string{"post", "story"}, "post"},
		{"story wins over highlight", []string{"story", "highlight"}, "story"},
		{"highlight alone", []string{"highlight"}, "highlight"},
		{"empty defaults to story", []string{}, "story"},
		{"unrelated categories default to story", []string{"sprint", "travel"}, "story"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, schedule.ResolveContentType(tc.categories))
		})
	}
}
