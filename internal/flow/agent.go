package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aura-dev/aura/internal/models"
)

func (t *turn) enterAIAgent(node *models.Node, d *models.AIAgentData) error {
	if t.engine.agents == nil {
		return fmt.Errorf("agent: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	res, err := t.engine.agents.Initialize(ctx, d.AgentID, t.st.UserID)
	cancel()
	if err != nil || !res.Success {
		slog.Error("turn.enterAIAgent: agent init failed", "error", err, "reason", res.Error, "userID", t.st.UserID, "agentID", d.AgentID)
		t.say(agentInitFailed)
		t.finish(false)
		return nil
	}
	if strings.TrimSpace(d.InitialMessage) != "" {
		t.say(d.InitialMessage)
	}
	t.park(node.ID)
	slog.Info("turn.enterAIAgent: conversation handed to AI agent", "userID", t.st.UserID, "agentID", d.AgentID)
	return nil
}

func (t *turn) handleAIAgent(node *models.Node, d *models.AIAgentData, text string) error {
	if t.engine.agents == nil {
		return fmt.Errorf("agent: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	reply, err := t.engine.agents.Process(ctx, d.AgentID, t.st.UserID, text)
	cancel()
	if err != nil || !reply.Success {
		slog.Warn("turn.handleAIAgent: agent process failed", "error", err, "reason", reply.Error, "userID", t.st.UserID, "agentID", d.AgentID)
		t.say(agentProcessFailed)
		t.park(node.ID)
		return nil
	}
	if reply.Message != "" {
		t.say(reply.Message)
	}
	if !reply.IsComplete {
		t.park(node.ID)
		return nil
	}
	slog.Info("turn.handleAIAgent: agent conversation complete", "userID", t.st.UserID, "agentID", d.AgentID)
	t.st.WaitingForInput = false
	return t.advance(t.next(node.ID))
}

func (t *turn) enterHumanAgent(node *models.Node, d *models.HumanAgentData) error {
	if t.engine.agents == nil {
		return fmt.Errorf("agentes: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	ok, err := t.engine.agents.StartSession(ctx, t.st.UserID, node.ID)
	cancel()
	if err != nil || !ok {
		slog.Error("turn.enterHumanAgent: failed to start session", "error", err, "userID", t.st.UserID, "node", node.ID)
		t.say(humanHandoffFailed)
		t.finish(false)
		return nil
	}
	t.say(orDefault(d.InitialMessage, defaultHumanHandoff))
	t.park(node.ID)
	slog.Info("turn.enterHumanAgent: conversation handed to operator", "userID", t.st.UserID, "node", node.ID)
	return nil
}

// handleHumanAgent records end-user messages while an operator is attending.
// A session that ended out of band restarts the flow.
func (t *turn) handleHumanAgent(node *models.Node, text string) error {
	if t.engine.agents == nil {
		return fmt.Errorf("agentes: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	active, err := t.engine.agents.IsSessionActive(ctx, t.st.UserID)
	cancel()
	if err != nil {
		return fmt.Errorf("check operator session: %w", err)
	}
	if active {
		slog.Debug("turn.handleHumanAgent: message recorded for operator", "userID", t.st.UserID, "node", node.ID)
		t.park(node.ID)
		return nil
	}

	slog.Info("turn.handleHumanAgent: operator session no longer active, restarting flow", "userID", t.st.UserID)
	t.st.CurrentNodeID = ""
	t.st.WaitingForInput = false
	t.st.ClearSubDialogs()
	return t.start()
}
