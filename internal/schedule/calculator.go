// Package schedule expands a sprint's ordered content items into concrete
// posting timestamps using randomized delays.
package schedule

import (
	"math/rand"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
)

// ScheduledItem is one content item with its resolved posting time.
type ScheduledItem struct {
	ContentItemID          int       `json:"content_item_id"`
	ContentOrder           int       `json:"content_order"`
	ScheduledTime          time.Time `json:"scheduled_time"`
	ContentType            string    `json:"content_type"`
	DelayFromPreviousHours int       `json:"delay_from_previous_hours"`
	IsAfterSprintContent   bool      `json:"is_after_sprint_content"`
}

// Schedule is the expansion of one sprint starting at StartDate.
// TotalDurationHours is the sum of the drawn delays, not EndDate-StartDate.
type Schedule struct {
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	Items              []ScheduledItem `json:"items"`
	TotalDurationHours int             `json:"total_duration_hours"`
}

// Calculator draws delays from Rand so callers can seed deterministically.
type Calculator struct {
	Rand *rand.Rand
}

// New returns a Calculator seeded from the current time.
func New() *Calculator {
	return &Calculator{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Calculate expands items (assumed sorted by content_order ascending) into a
// schedule anchored at startDate. Each item's delay is a uniform integer in
// [DelayHoursMin, DelayHoursMax]; equal bounds give the constant exactly.
func (c *Calculator) Calculate(items []model.SprintContentItem, startDate time.Time) Schedule {
	scheduled := make([]ScheduledItem, 0, len(items))

	currentTime := startDate
	totalHours := 0

	for _, item := range items {
		delay := c.randomDelay(item.DelayHoursMin, item.DelayHoursMax)
		currentTime = currentTime.Add(time.Duration(delay) * time.Hour)
		totalHours += delay

		scheduled = append(scheduled, ScheduledItem{
			ContentItemID:          item.ID,
			ContentOrder:           item.ContentOrder,
			ScheduledTime:          currentTime,
			ContentType:            ResolveContentType(item.ContentCategories),
			DelayFromPreviousHours: delay,
			IsAfterSprintContent:   item.IsAfterSprintContent,
		})
	}

	return Schedule{
		StartDate:          startDate,
		EndDate:            currentTime,
		Items:              scheduled,
		TotalDurationHours: totalHours,
	}
}

func (c *Calculator) randomDelay(minHours, maxHours int) int {
	if minHours == maxHours {
		return minHours
	}
	return c.Rand.Intn(maxHours-minHours+1) + minHours
}

// ResolveContentType picks the primary content type from a category set.
// Precedence: post > story > highlight; story when none of them is present.
func ResolveContentType(categories []string) string {
	has := func(want string) bool {
		for _, c := range categories {
			if c == want {
				return true
			}
		}
		return false
	}

	switch {
	case has(model.ContentTypePost):
		return model.ContentTypePost
	case has(model.ContentTypeStory):
		return model.ContentTypeStory
	case has(model.ContentTypeHighlight):
		return model.ContentTypeHighlight
	default:
		return model.ContentTypeStory
	}
}
