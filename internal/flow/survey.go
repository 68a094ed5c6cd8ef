package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aura-dev/aura/internal/models"
)

// enterFinalizar emits the closing text and always opens the satisfaction
// survey. EnableSatisfactionSurvey is not consulted.
func (t *turn) enterFinalizar(node *models.Node, d *models.FinalizarData) {
	if closing := d.Closing(); strings.TrimSpace(closing) != "" {
		t.say(closing)
	}
	question := orDefault(d.SurveyQuestion, defaultSurveyPrompt)
	t.st.Survey = &models.SurveyState{WaitingResponse: true, Question: question, Timestamp: t.now}
	t.say(renderSurvey(question))
	t.park(node.ID)
	slog.Debug("turn.enterFinalizar: survey opened", "userID", t.st.UserID, "node", node.ID)
}

func parseRating(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if len(s) != 1 || s[0] < '0' || s[0] > '5' {
		return 0, false
	}
	return int(s[0] - '0'), true
}

func (t *turn) handleSurvey(text string) error {
	rating, ok := parseRating(text)
	if !ok {
		t.say(invalidSurveyRating)
		t.st.WaitingForInput = true
		return nil
	}

	if t.engine.survey == nil {
		return fmt.Errorf("survey: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	saved, err := t.engine.survey.SaveResponse(ctx, t.st.UserID, t.wf.ID, rating, t.st.Survey.Question)
	cancel()
	if err != nil {
		slog.Error("turn.handleSurvey: failed to save response", "error", err, "userID", t.st.UserID)
	}
	if !saved {
		t.say(surveySaveFailed)
		t.st.WaitingForInput = true
		return nil
	}

	slog.Info("turn.handleSurvey: rating recorded", "userID", t.st.UserID, "workflowID", t.wf.ID, "rating", rating)
	t.say(surveyThanks)
	t.st.Survey = nil
	t.finish(true)
	return nil
}
