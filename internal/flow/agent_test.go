package flow

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aura-dev/aura/internal/models"
)

func aiFlow() *models.Workflow {
	return workflow("ai",
		[]models.Node{
			start(),
			n("bot", &models.AIAgentData{AgentID: "vendas", InitialMessage: "Olá, sou o assistente."}),
			final("end", "Até mais"),
		},
		e("start", "bot"),
		e("bot", "end"),
	)
}

func TestAIAgentConversation(t *testing.T) {
	h := newHarness(t)
	h.agents.replies = []AgentReply{
		{Success: true, Message: "Qual modelo?"},
		{Success: true, Message: "Perfeito, anotado.", IsComplete: true},
	}
	h.publish(t, aiFlow())

	r := h.send(t, "u", "oi")
	if !reflect.DeepEqual(texts(r), []string{"Olá, sou o assistente."}) || !r.RequiresInput {
		t.Fatalf("first turn = %+v", r)
	}

	r = h.send(t, "u", "quero um filtro")
	if !reflect.DeepEqual(texts(r), []string{"Qual modelo?"}) {
		t.Fatalf("second turn = %q", texts(r))
	}
	if st := h.state(t, "u", "ai"); st.CurrentNodeID != "bot" || !st.WaitingForInput {
		t.Fatalf("not parked on agent: %+v", st)
	}

	r = h.send(t, "u", "o grande")
	got := texts(r)
	if len(got) != 3 || got[0] != "Perfeito, anotado." || got[1] != "Até mais" {
		t.Fatalf("completion turn = %q", got)
	}
	if st := h.state(t, "u", "ai"); st.Survey == nil {
		t.Error("flow did not reach finalizar after agent completion")
	}
	if !reflect.DeepEqual(h.agents.processed, []string{"quero um filtro", "o grande"}) {
		t.Errorf("processed = %q", h.agents.processed)
	}
}

func TestAIAgentTakesPrecedenceOverNumericInput(t *testing.T) {
	h := newHarness(t)
	h.agents.replies = []AgentReply{{Success: true, Message: "ok"}}
	h.publish(t, aiFlow())
	h.send(t, "u", "oi")
	h.send(t, "u", "1")
	if len(h.agents.processed) != 1 || h.agents.processed[0] != "1" {
		t.Errorf("numeric input not forwarded to the agent: %q", h.agents.processed)
	}
}

func TestAIAgentInitFailureEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.agents.initErr = errors.New("unknown agent")
	h.publish(t, aiFlow())
	r := h.send(t, "u", "oi")
	if len(r.Messages) != 1 || r.Messages[0].Text != agentInitFailed || r.ArchiveConversation {
		t.Fatalf("result = %+v", r)
	}
	if st := h.state(t, "u", "ai"); st != nil {
		t.Errorf("state kept: %+v", st)
	}
}

func TestAIAgentProcessFailureStaysParked(t *testing.T) {
	h := newHarness(t)
	h.publish(t, aiFlow())
	h.send(t, "u", "oi")
	r := h.send(t, "u", "help")
	if r.Messages[0].Text != agentProcessFailed || !r.RequiresInput {
		t.Fatalf("result = %+v", r)
	}
	if st := h.state(t, "u", "ai"); st == nil || st.CurrentNodeID != "bot" {
		t.Errorf("state = %+v", st)
	}
}

func humanFlow() *models.Workflow {
	return workflow("human",
		[]models.Node{start(), n("op", &models.HumanAgentData{}), msg("never", "não deve aparecer")},
		e("start", "op"),
		e("op", "never"),
	)
}

func TestHumanHandoffAndOperatorFinalize(t *testing.T) {
	h := newHarness(t)
	h.publish(t, humanFlow())
	ctx := context.Background()

	r := h.send(t, "u", "preciso de ajuda")
	if !reflect.DeepEqual(texts(r), []string{defaultHumanHandoff}) || !r.RequiresInput || r.ArchiveConversation {
		t.Fatalf("handoff = %+v", r)
	}

	r = h.send(t, "u", "1")
	if len(r.Messages) != 0 || !r.RequiresInput {
		t.Errorf("end-user message during handoff produced %q", texts(r))
	}
	st := h.state(t, "u", "human")
	if st == nil || st.CurrentNodeID != "op" || st.ConversationHistory[len(st.ConversationHistory)-1].Content != "1" {
		t.Fatalf("message not recorded: %+v", st)
	}

	relay, err := h.engine.HandleOperatorMessage(ctx, "u", "Oi, posso ajudar?")
	if err != nil || relay.SessionEnded || relay.Message != "**Operador:** Oi, posso ajudar?" {
		t.Fatalf("relay = %+v, %v", relay, err)
	}

	done, err := h.engine.HandleOperatorMessage(ctx, "u", "/finalizar")
	if err != nil || !done.SessionEnded || done.ExecutionsDeleted != 1 {
		t.Fatalf("finalize = %+v, %v", done, err)
	}
	if st := h.state(t, "u", "human"); st != nil {
		t.Errorf("state kept after /finalizar: %+v", st)
	}

	r = h.send(t, "u", "voltei")
	if !reflect.DeepEqual(texts(r), []string{defaultHumanHandoff}) {
		t.Errorf("flow did not restart from start: %q", texts(r))
	}
}

func TestOperatorWithoutSessionFails(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.HandleOperatorMessage(context.Background(), "nobody", "olá")
	if !errors.Is(err, ErrOperatorCommand) {
		t.Errorf("error = %v, want ErrOperatorCommand", err)
	}
}

func TestInactiveHumanSessionRestartsFlow(t *testing.T) {
	h := newHarness(t)
	h.publish(t, humanFlow())
	h.send(t, "u", "oi")
	h.agents.sessions["u"] = false

	r := h.send(t, "u", "alô?")
	if !reflect.DeepEqual(texts(r), []string{defaultHumanHandoff}) {
		t.Errorf("messages = %q", texts(r))
	}
}

func TestMissingPortIsAFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.agents = nil
	h.publish(t, aiFlow())
	r := h.send(t, "u", "oi")
	if !r.Failed {
		t.Errorf("result = %+v", r)
	}
	if _, err := h.engine.HandleOperatorMessage(context.Background(), "u", "x"); !errors.Is(err, ErrPortUnavailable) {
		t.Errorf("operator error = %v", err)
	}
}
