package service

import (
	"context"

	"github.com/psw-tryout/tryout-backend/internal/repository"
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalParticipants  int                                  `json:"total_participants"`
	TotalTryouts       int                                  `json:"total_tryouts"`
	PublishedTryouts   int                                  `json:"published_tryouts"`
	TotalQuestions     int                                  `json:"total_questions"`
	AttemptsInProgress int                                  `json:"attempts_in_progress"`
	AttemptsFinished   int                                  `json:"attempts_finished"`
	UpcomingTryouts    []repository.DashboardUpcomingTryout `json:"upcoming_tryouts"`
	RecentFinishes     []repository.DashboardRecentFinish   `json:"recent_finishes"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches all dashboard metrics.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	participants, tryouts, published, questions, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	inProgress, finished, err := s.repo.GetAttemptCounts(ctx)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.repo.GetUpcomingTryouts(ctx, 5)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentFinishes(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		TotalParticipants:  participants,
		TotalTryouts:       tryouts,
		PublishedTryouts:   published,
		TotalQuestions:     questions,
		AttemptsInProgress: inProgress,
		AttemptsFinished:   finished,
		UpcomingTryouts:    upcoming,
		RecentFinishes:     recent,
	}, nil
}
