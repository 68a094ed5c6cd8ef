package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

// turn is the working set of one HandleMessage pass. It mutates a copy of the
// stored state; the engine persists it only when the pass succeeds.
type turn struct {
	engine *Engine
	ctx    context.Context
	wf     *models.Workflow
	st     *models.ExecutionState
	now    time.Time

	out     []models.OutboundMessage
	ended   bool
	archive bool
}

func (t *turn) say(text string) {
	t.sayAfter(text, 0)
}

func (t *turn) sayAfter(text string, delay int) {
	msg := models.Text(text)
	msg.Delay = delay
	t.out = append(t.out, msg)
	t.st.Append(models.RoleAssistant, text, t.now)
}

// park stops the pass at nodeID waiting for the next user message.
func (t *turn) park(nodeID string) {
	t.st.CurrentNodeID = nodeID
	t.st.WaitingForInput = true
}

// finish ends the conversation. The state is deleted; archive tells the
// caller whether to archive its own conversation record.
func (t *turn) finish(archive bool) {
	t.ended = true
	t.archive = archive
	t.st.WaitingForInput = false
}

func (t *turn) portCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(t.ctx, t.engine.portTimeout)
}

// dispatch routes the inbound text: agent nodes first, then active
// sub-dialogs, then the start of the flow or an options choice.
func (t *turn) dispatch(text string) error {
	st := t.st

	if st.CurrentNodeID != "" {
		if node := t.wf.Node(st.CurrentNodeID); node != nil {
			switch d := node.Data.(type) {
			case *models.AIAgentData:
				return t.handleAIAgent(node, d, text)
			case *models.HumanAgentData:
				return t.handleHumanAgent(node, text)
			}
		}
	}

	switch {
	case st.Cancellation != nil:
		return t.handleCancellation(text)
	case st.Sale != nil:
		return t.handleSale(text)
	case st.Survey != nil && st.Survey.WaitingResponse:
		return t.handleSurvey(text)
	case st.Scheduling != nil && st.WaitingForInput:
		return t.handleScheduling(text)
	}

	if st.CurrentNodeID == "" {
		return t.start()
	}

	node := t.wf.Node(st.CurrentNodeID)
	if node == nil {
		slog.Warn("turn.dispatch: current node missing from workflow, ending conversation",
			"userID", st.UserID, "workflowID", t.wf.ID, "node", st.CurrentNodeID)
		t.finish(true)
		return nil
	}
	if d, ok := node.Data.(*models.OptionsData); ok && st.WaitingForInput {
		return t.handleOptionChoice(node, d, text)
	}
	// A parked state without a sub-dialog re-enters its node.
	return t.advance(node)
}

func (t *turn) start() error {
	start := t.wf.StartNode()
	if start == nil {
		slog.Warn("turn.start: workflow has no start node", "workflowID", t.wf.ID)
		t.finish(true)
		return nil
	}
	t.st.CurrentNodeID = start.ID
	t.engine.observer.NodeExecuted(models.NodeTypeStart)
	return t.advance(t.wf.ResolveTarget(start.ID, models.NoOption))
}

func (t *turn) handleOptionChoice(node *models.Node, d *models.OptionsData, text string) error {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		slog.Debug("turn.handleOptionChoice: non-numeric choice", "userID", t.st.UserID, "node", node.ID)
		t.say(renderOptionsError(d, false))
		return nil
	}
	if n < 1 || n > len(d.Options) {
		slog.Debug("turn.handleOptionChoice: choice out of range", "userID", t.st.UserID, "node", node.ID, "choice", n)
		t.say(renderOptionsError(d, true))
		return nil
	}
	slog.Debug("turn.handleOptionChoice: option selected", "userID", t.st.UserID, "node", node.ID, "choice", n)
	t.st.WaitingForInput = false
	return t.advance(t.wf.ResolveTarget(node.ID, n-1))
}

// next resolves the plain successor of nodeID.
func (t *turn) next(nodeID string) *models.Node {
	return t.wf.ResolveTarget(nodeID, models.NoOption)
}

// advance is the auto-advance loop. Starting at node it runs nodes that need
// no input until one parks the conversation, the flow finalizes, or it runs
// off the graph.
func (t *turn) advance(node *models.Node) error {
	for steps := 0; ; steps++ {
		if node == nil {
			slog.Debug("turn.advance: dead end reached", "userID", t.st.UserID, "workflowID", t.wf.ID, "last", t.st.CurrentNodeID)
			t.finish(true)
			return nil
		}
		if steps >= maxTraversalSteps {
			return fmt.Errorf("%w at node %s", ErrTraversalLimit, node.ID)
		}

		t.st.CurrentNodeID = node.ID
		t.st.WaitingForInput = false
		t.engine.observer.NodeExecuted(node.Type)
		slog.Debug("turn.advance: executing node", "userID", t.st.UserID, "node", node.ID, "type", node.Type)

		switch d := node.Data.(type) {
		case *models.SendMessageData:
			t.sayAfter(orDefault(d.Message, defaultSendMessage), d.Delay)
			node = t.next(node.ID)

		case *models.OptionsData:
			t.say(renderOptions(d))
			t.park(node.ID)
			return nil

		case *models.SchedulingData:
			parked, err := t.enterScheduling(node, d)
			if err != nil || parked {
				return err
			}
			node = t.next(node.ID)

		case *models.SaleData:
			return t.enterSale(node, d)

		case *models.AIAgentData:
			return t.enterAIAgent(node, d)

		case *models.HumanAgentData:
			return t.enterHumanAgent(node, d)

		case *models.FinalizarData:
			t.enterFinalizar(node, d)
			return nil

		default:
			// start, code, conditional and unknown types pass through silently.
			node = t.next(node.ID)
		}
	}
}
