package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/schedule"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{model.AssignmentStatusScheduled, model.AssignmentStatusActive, true},
		{model.AssignmentStatusScheduled, model.AssignmentStatusCancelled, true},
		{model.AssignmentStatusScheduled, model.AssignmentStatusPaused, false},
		{model.AssignmentStatusScheduled, model.AssignmentStatusCompleted, false},
		{model.AssignmentStatusActive, model.AssignmentStatusPaused, true},
		{model.AssignmentStatusActive, model.AssignmentStatusCompleted, true},
		{model.AssignmentStatusActive, model.AssignmentStatusCancelled, true},
		{model.AssignmentStatusActive, model.AssignmentStatusScheduled, false},
		{model.AssignmentStatusPaused, model.AssignmentStatusActive, true},
		{model.AssignmentStatusPaused, model.AssignmentStatusCancelled, true},
		{model.AssignmentStatusPaused, model.AssignmentStatusCompleted, false},
		{model.AssignmentStatusCompleted, model.AssignmentStatusActive, false},
		{model.AssignmentStatusCompleted, model.AssignmentStatusCancelled, false},
		{model.AssignmentStatusCancelled, model.AssignmentStatusActive, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestQueueItemsFromSchedule(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	assignment := &model.SprintAssignment{ID: 42, AccountID: 7}
	expanded := schedule.Schedule{
		StartDate: start,
		Items: []schedule.ScheduledItem{
			{ContentItemID: 101, ContentOrder: 0, ScheduledTime: start.Add(3 * time.Hour), ContentType: model.ContentTypeStory},
			{ContentItemID: 102, ContentOrder: 1, ScheduledTime: start.Add(9 * time.Hour), ContentType: model.ContentTypePost},
		},
	}

	items := queueItemsFromSchedule(assignment, expanded)

	require.Len(t, items, 2)
	for i, item := range items {
		assert.Equal(t, 7, item.AccountID)
		require.NotNil(t, item.SprintAssignmentID)
		assert.Equal(t, 42, *item.SprintAssignmentID)
		require.NotNil(t, item.ContentItemID)
		assert.Equal(t, expanded.Items[i].ContentItemID, *item.ContentItemID)
		assert.Equal(t, expanded.Items[i].ScheduledTime, item.ScheduledTime)
		assert.Equal(t, model.PriorityNormal, item.QueuePriority)
		assert.False(t, item.EmergencyContent)
	}
}
