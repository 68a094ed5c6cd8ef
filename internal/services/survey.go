package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

var _ flow.SurveyPort = (*SurveyService)(nil)

// SurveyService records satisfaction ratings and summarizes them.
type SurveyService struct {
	repo store.SurveyRepo
	now  Clock
}

func NewSurveyService(repo store.SurveyRepo) *SurveyService {
	return &SurveyService{repo: repo, now: time.Now}
}

func (s *SurveyService) SetClock(now Clock) { s.now = now }

// SaveResponse stores a rating. Ratings outside 0..5 are refused with false.
func (s *SurveyService) SaveResponse(ctx context.Context, userID, workflowID string, rating int, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if rating < 0 || rating > 5 {
		return false, nil
	}
	r := &models.SurveyResponse{
		ID:         newID(),
		UserID:     userID,
		WorkflowID: workflowID,
		Rating:     rating,
		Question:   question,
		CreatedAt:  s.now(),
	}
	if err := s.repo.SaveSurveyResponse(r); err != nil {
		return false, fmt.Errorf("save survey response: %w", err)
	}
	slog.Debug("SurveyService.SaveResponse: saved", "userID", userID, "workflowID", workflowID, "rating", rating)
	return true, nil
}

// Statistics summarizes ratings of workflowID (all workflows when empty)
// created at or after since (all time when zero).
func (s *SurveyService) Statistics(workflowID string, since time.Time) (models.SurveyStats, error) {
	responses, err := s.repo.ListSurveyResponses(workflowID, since)
	if err != nil {
		return models.SurveyStats{}, fmt.Errorf("list survey responses: %w", err)
	}
	return summarize(responses), nil
}

func summarize(responses []models.SurveyResponse) models.SurveyStats {
	stats := models.SurveyStats{Distribution: make(map[int]int, 6)}
	for i := 0; i <= 5; i++ {
		stats.Distribution[i] = 0
	}
	if len(responses) == 0 {
		return stats
	}
	sum, satisfied := 0, 0
	for _, r := range responses {
		stats.Distribution[r.Rating]++
		sum += r.Rating
		if r.Rating >= 4 {
			satisfied++
		}
	}
	stats.Total = len(responses)
	stats.Average = round2(float64(sum) / float64(stats.Total))
	stats.SatisfactionRate = round2(float64(satisfied) * 100 / float64(stats.Total))
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
