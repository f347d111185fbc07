package service

import (
	"context"
	"fmt"
	"time"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/model"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
)

// Health thresholds. Crossing the critical pair flips the overall status.
const (
	overdueWarning  = 5
	overdueCritical = 10
	failedWarning   = 10
	failedCritical  = 20
)

// QueueQueryService is the read-only monitoring surface: listings, stats,
// the health report and the dashboard summary.
type QueueQueryService struct {
	QueueRepo *repository.QueueRepository
}

func (s *QueueQueryService) List(ctx context.Context, filters model.QueueFilters) (model.QueuePage, error) {
	return s.QueueRepo.List(ctx, filters)
}

func (s *QueueQueryService) AccountQueue(ctx context.Context, accountID int, includeCompleted bool) ([]model.QueueItemDetailed, error) {
	return s.QueueRepo.AccountQueue(ctx, accountID, includeCompleted)
}

func (s *QueueQueryService) Upcoming(ctx context.Context, window time.Duration, limit int) ([]model.QueueItemDetailed, error) {
	return s.QueueRepo.Upcoming(ctx, window, limit)
}

func (s *QueueQueryService) Overdue(ctx context.Context, limit int) ([]model.QueueItemDetailed, error) {
	return s.QueueRepo.Overdue(ctx, limit)
}

func (s *QueueQueryService) Stats(ctx context.Context) (model.QueueStats, error) {
	return s.QueueRepo.Stats(ctx)
}

// Health derives the operational status from the current stats: overall
// traffic light, bottleneck list and alerts needing attention.
func (s *QueueQueryService) Health(ctx context.Context) (model.QueueHealthReport, error) {
	stats, err := s.QueueRepo.Stats(ctx)
	if err != nil {
		return model.QueueHealthReport{}, err
	}
	overdueEmergency, err := s.QueueRepo.OverdueEmergencyCount(ctx)
	if err != nil {
		return model.QueueHealthReport{}, err
	}

	report := model.QueueHealthReport{
		OverallStatus: "healthy",
		QueueSize:     stats.QueuedCount,
		OverdueCount:  stats.OverdueCount,
		FailedCount:   stats.FailedCount,
		Bottlenecks:   []model.QueueBottleneck{},
		Alerts:        []model.QueueAlert{},
		LastChecked:   time.Now(),
	}

	switch {
	case stats.OverdueCount > overdueCritical || stats.FailedCount > failedCritical:
		report.OverallStatus = "critical"
	case stats.OverdueCount > overdueWarning || stats.FailedCount > failedWarning:
		report.OverallStatus = "warning"
	}

	if stats.QueuedCount > 100 {
		severity := "medium"
		if stats.QueuedCount > 200 {
			severity = "high"
		}
		report.Bottlenecks = append(report.Bottlenecks, model.QueueBottleneck{
			Type:             "queue_backlog",
			Severity:         severity,
			AffectedAccounts: stats.AccountsWithQueue,
			Description:      fmt.Sprintf("%d items waiting in the queue", stats.QueuedCount),
			SuggestedAction:  "Review posting throughput or reduce sprint density",
		})
	}
	if stats.FailedCount > 10 {
		severity := "medium"
		if stats.FailedCount > 30 {
			severity = "high"
		}
		report.Bottlenecks = append(report.Bottlenecks, model.QueueBottleneck{
			Type:             "failed_items",
			Severity:         severity,
			AffectedAccounts: stats.AccountsWithQueue,
			Description:      fmt.Sprintf("%d items failed in the last 7 days", stats.FailedCount),
			SuggestedAction:  "Inspect error messages and retry or cancel the failures",
		})
	}
	if stats.OverdueCount > 5 {
		severity := "medium"
		if stats.OverdueCount > 15 {
			severity = "high"
		}
		report.Bottlenecks = append(report.Bottlenecks, model.QueueBottleneck{
			Type:             "overdue_items",
			Severity:         severity,
			AffectedAccounts: stats.AccountsWithQueue,
			Description:      fmt.Sprintf("%d items are past their scheduled time", stats.OverdueCount),
			SuggestedAction:  "Check the posting executor and reschedule stale items",
		})
	}

	if overdueEmergency > 0 {
		report.Alerts = append(report.Alerts, model.QueueAlert{
			ID:             fmt.Sprintf("overdue-emergency-%d", time.Now().Unix()),
			Type:           "error",
			Title:          "Overdue emergency content",
			Message:        fmt.Sprintf("%d emergency items are past their scheduled time", overdueEmergency),
			CreatedAt:      time.Now(),
			RequiresAction: true,
		})
	}

	return report, nil
}

// Summary is the dashboard payload: stats plus the next six hours, the
// overdue backlog and recent activity.
func (s *QueueQueryService) Summary(ctx context.Context) (model.QueueSummary, error) {
	stats, err := s.QueueRepo.Stats(ctx)
	if err != nil {
		return model.QueueSummary{}, err
	}
	upcoming, err := s.QueueRepo.Upcoming(ctx, 6*time.Hour, 20)
	if err != nil {
		return model.QueueSummary{}, err
	}
	overdue, err := s.QueueRepo.Overdue(ctx, 20)
	if err != nil {
		return model.QueueSummary{}, err
	}
	recent, err := s.QueueRepo.RecentPosted(ctx, 10)
	if err != nil {
		return model.QueueSummary{}, err
	}

	return model.QueueSummary{
		Stats:          stats,
		Upcoming:       upcoming,
		Overdue:        overdue,
		RecentActivity: recent,
	}, nil
}
