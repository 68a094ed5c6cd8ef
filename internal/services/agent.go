package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

const (
	// OperatorFinishCommand ends a human handoff when typed by the operator.
	OperatorFinishCommand = "/finalizar"

	operatorFinished = "✅ Atendimento encerrado.\n\nObrigado pelo contato! Se precisar de ajuda novamente, é só enviar uma mensagem."
	operatorPrefix   = "**Operador:** "

	// maxAgentHistory bounds the messages replayed to the model per conversation.
	maxAgentHistory = 40
)

var (
	// ErrAgentUnavailable is returned by Process when no completer is configured.
	ErrAgentUnavailable = errors.New("AI agent completions are not configured")
	// ErrInvalidAgent is returned for agent configurations without id or system prompt.
	ErrInvalidAgent = errors.New("agent id and system prompt are required")
)

// Completer produces the next assistant message of a conversation.
// genai.Client implements it.
type Completer interface {
	Converse(ctx context.Context, model, systemPrompt string, history []models.ConversationMessage) (string, error)
}

var _ flow.AgentPort = (*AgentService)(nil)

// AgentService runs AI agent conversations and human operator sessions.
type AgentService struct {
	repo      store.AgentRepo
	completer Completer
	now       Clock

	mu      sync.Mutex
	history map[string][]models.ConversationMessage
}

// NewAgentService creates an AgentService. completer may be nil, in which case
// AI agent nodes fail to initialize.
func NewAgentService(repo store.AgentRepo, completer Completer) *AgentService {
	return &AgentService{
		repo:      repo,
		completer: completer,
		now:       time.Now,
		history:   make(map[string][]models.ConversationMessage),
	}
}

func (s *AgentService) SetClock(now Clock) { s.now = now }

func historyKey(agentID, userID string) string {
	return agentID + "\x00" + userID
}

// Initialize resets the memory of agentID for userID.
func (s *AgentService) Initialize(ctx context.Context, agentID, userID string) (flow.AgentInitResult, error) {
	if err := ctx.Err(); err != nil {
		return flow.AgentInitResult{}, err
	}
	if s.completer == nil {
		return flow.AgentInitResult{Error: ErrAgentUnavailable.Error()}, nil
	}
	if _, err := s.repo.GetAIAgent(agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("AgentService.Initialize: unknown agent", "agentID", agentID, "userID", userID)
			return flow.AgentInitResult{Error: fmt.Sprintf("agent %q not found", agentID)}, nil
		}
		return flow.AgentInitResult{}, fmt.Errorf("get agent: %w", err)
	}
	s.mu.Lock()
	s.history[historyKey(agentID, userID)] = nil
	s.mu.Unlock()
	slog.Debug("AgentService.Initialize: conversation started", "agentID", agentID, "userID", userID)
	return flow.AgentInitResult{Success: true}, nil
}

// Process sends text to the agent and returns its reply. A reply containing
// the agent's completion marker ends the conversation; the marker is removed
// from the text shown to the user.
func (s *AgentService) Process(ctx context.Context, agentID, userID, text string) (flow.AgentReply, error) {
	if s.completer == nil {
		return flow.AgentReply{}, ErrAgentUnavailable
	}
	agent, err := s.repo.GetAIAgent(agentID)
	if err != nil {
		return flow.AgentReply{}, fmt.Errorf("get agent: %w", err)
	}

	key := historyKey(agentID, userID)
	s.mu.Lock()
	history := append(append([]models.ConversationMessage(nil), s.history[key]...),
		models.ConversationMessage{Role: models.RoleUser, Content: text, Timestamp: s.now()})
	s.mu.Unlock()
	if len(history) > maxAgentHistory {
		history = history[len(history)-maxAgentHistory:]
	}

	reply, err := s.completer.Converse(ctx, agent.Model, agent.SystemPrompt, history)
	if err != nil {
		return flow.AgentReply{Error: err.Error()}, nil
	}

	complete := false
	if marker := agent.CompletionMarker; marker != "" && strings.Contains(reply, marker) {
		complete = true
		reply = strings.TrimSpace(strings.ReplaceAll(reply, marker, ""))
	}

	s.mu.Lock()
	if complete {
		delete(s.history, key)
	} else {
		s.history[key] = append(history, models.ConversationMessage{Role: models.RoleAssistant, Content: reply, Timestamp: s.now()})
	}
	s.mu.Unlock()

	slog.Debug("AgentService.Process: replied", "agentID", agentID, "userID", userID, "complete", complete)
	return flow.AgentReply{Success: true, Message: reply, IsComplete: complete}, nil
}

// StartSession opens a human operator session for userID.
func (s *AgentService) StartSession(ctx context.Context, userID, nodeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sess := &models.AgentSession{UserID: userID, NodeID: nodeID, Active: true, StartedAt: s.now()}
	if err := s.repo.SaveAgentSession(sess); err != nil {
		return false, fmt.Errorf("save agent session: %w", err)
	}
	slog.Info("AgentService.StartSession: handed off to operator", "userID", userID, "nodeID", nodeID)
	return true, nil
}

func (s *AgentService) IsSessionActive(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sess, err := s.repo.GetAgentSession(userID)
	if err != nil {
		return false, fmt.Errorf("get agent session: %w", err)
	}
	return sess != nil && sess.Active, nil
}

// ProcessOperatorCommand handles a message typed by the operator of userID's
// session. /finalizar ends the session; anything else is relayed.
func (s *AgentService) ProcessOperatorCommand(ctx context.Context, userID, text string) (flow.OperatorReply, error) {
	if err := ctx.Err(); err != nil {
		return flow.OperatorReply{}, err
	}
	sess, err := s.repo.GetAgentSession(userID)
	if err != nil {
		return flow.OperatorReply{}, fmt.Errorf("get agent session: %w", err)
	}
	if sess == nil || !sess.Active {
		return flow.OperatorReply{Error: "no active session for user"}, nil
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, OperatorFinishCommand) {
		ended := s.now()
		sess.Active = false
		sess.EndedAt = &ended
		if err := s.repo.SaveAgentSession(sess); err != nil {
			return flow.OperatorReply{}, fmt.Errorf("save agent session: %w", err)
		}
		slog.Info("AgentService.ProcessOperatorCommand: session ended", "userID", userID)
		return flow.OperatorReply{Success: true, Message: operatorFinished, SessionEnded: true}, nil
	}
	return flow.OperatorReply{Success: true, Message: operatorPrefix + text}, nil
}

// SaveAgent validates and stores an AI agent configuration.
func (s *AgentService) SaveAgent(agent *models.AIAgent) error {
	agent.ID = strings.TrimSpace(agent.ID)
	if agent.ID == "" || strings.TrimSpace(agent.SystemPrompt) == "" {
		return ErrInvalidAgent
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = s.now()
	}
	return s.repo.SaveAIAgent(agent)
}

func (s *AgentService) ListAgents() ([]models.AIAgent, error) {
	return s.repo.ListAIAgents()
}

