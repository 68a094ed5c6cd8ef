// Package flow implements the workflow execution engine.
//
// The engine walks a published node/edge graph for each end user, keeping a
// resumable ExecutionState between inbound messages. Every call runs exactly
// one traversal pass that stops at a node waiting for input, at a finalizar
// node, or at a dead end.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

// DefaultPortTimeout bounds every call into a port.
const DefaultPortTimeout = 10 * time.Second

// maxTraversalSteps stops graphs whose pass-through nodes form a cycle.
const maxTraversalSteps = 200

var (
	// ErrTraversalLimit is returned when one pass visits too many nodes.
	ErrTraversalLimit = errors.New("traversal step limit exceeded")
	// ErrOperatorCommand is returned when the agent port rejects an operator message.
	ErrOperatorCommand = errors.New("operator command failed")
)

// Result is the outcome of one inbound message.
type Result struct {
	Messages []models.OutboundMessage `json:"messages"`
	// RequiresInput is true when the engine is parked awaiting the user's next message.
	RequiresInput bool `json:"requires_input"`
	// ArchiveConversation is true when the state was deleted because the flow ended.
	ArchiveConversation bool `json:"archive_conversation"`
	// Ignored is true when no workflow is active and the message was dropped.
	Ignored bool `json:"ignored,omitempty"`
	// Failed is true when the pass was aborted and stored state left untouched.
	Failed bool `json:"failed,omitempty"`
}

// OperatorResult is the outcome of a message from a human operator.
type OperatorResult struct {
	// Message is what the end user should receive.
	Message      string `json:"message"`
	SessionEnded bool   `json:"session_ended"`
	// ExecutionsDeleted counts the states removed when the session ended.
	ExecutionsDeleted int `json:"executions_deleted"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithBookingPort sets the port used by scheduling nodes.
func WithBookingPort(p BookingPort) Option {
	return func(e *Engine) { e.booking = p }
}

// WithSurveyPort sets the port used after finalizar nodes.
func WithSurveyPort(p SurveyPort) Option {
	return func(e *Engine) { e.survey = p }
}

// WithAgentPort sets the port used by agent and agentes nodes.
func WithAgentPort(p AgentPort) Option {
	return func(e *Engine) { e.agents = p }
}

// WithInventoryPort sets the port used by venda nodes.
func WithInventoryPort(p InventoryPort) Option {
	return func(e *Engine) { e.inventory = p }
}

// WithPortTimeout bounds each port call. Non-positive values keep the default.
func WithPortTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.portTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// Engine runs workflow traversals. It is safe for concurrent use; messages of
// the same user are serialized.
type Engine struct {
	executions store.ExecutionRepo
	registry   *Registry

	booking   BookingPort
	survey    SurveyPort
	agents    AgentPort
	inventory InventoryPort

	portTimeout time.Duration
	now         func() time.Time
	observer    Observer
	locks       *keyedMutex
}

// NewEngine creates an engine persisting states in executions and resolving
// the active workflow through registry.
func NewEngine(executions store.ExecutionRepo, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		executions:  executions,
		registry:    registry,
		portTimeout: DefaultPortTimeout,
		now:         time.Now,
		observer:    nopObserver{},
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	slog.Debug("NewEngine created", "portTimeout", e.portTimeout,
		"booking", e.booking != nil, "survey", e.survey != nil, "agents", e.agents != nil, "inventory", e.inventory != nil)
	return e
}

// Registry returns the registry the engine resolves active workflows from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// HandleInbound routes a message into the active workflow. With no active
// workflow the message is ignored and no state is created.
func (e *Engine) HandleInbound(ctx context.Context, userID, text string) Result {
	wf := e.registry.ActiveFlow()
	if wf == nil {
		slog.Debug("Engine.HandleInbound: no active workflow, ignoring message", "userID", userID)
		return Result{Messages: []models.OutboundMessage{}, Ignored: true}
	}
	return e.HandleMessage(ctx, userID, wf, text)
}

// HandleMessage advances userID through wf with one inbound text. It never
// returns an error: failures become an apology message and leave the stored
// state untouched.
func (e *Engine) HandleMessage(ctx context.Context, userID string, wf *models.Workflow, text string) (res Result) {
	started := e.now()
	unlock := e.locks.Lock(userID)
	defer unlock()
	endPass := e.registry.beginPass()
	defer endPass()
	// A republish may have landed while this call waited.
	if cur, ok := e.registry.Get(wf.ID); ok {
		wf = cur
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.HandleMessage: recovered from panic", "userID", userID, "workflowID", wf.ID, "panic", r)
			e.observer.TraversalFailed("panic")
			res = apology()
		}
		e.observer.TraversalCompleted(e.now().Sub(started).Seconds())
	}()

	slog.Debug("Engine.HandleMessage invoked", "userID", userID, "workflowID", wf.ID, "textLength", len(text))

	loaded, err := e.executions.GetExecution(userID, wf.ID)
	if err != nil {
		slog.Error("Engine.HandleMessage: failed to load execution state", "error", err, "userID", userID, "workflowID", wf.ID)
		e.observer.TraversalFailed("load")
		return apology()
	}

	now := e.now()
	var st *models.ExecutionState
	if loaded == nil {
		slog.Info("Engine.HandleMessage: starting new execution", "userID", userID, "workflowID", wf.ID)
		st = models.NewExecutionState(userID, wf.ID, now)
	} else {
		st = loaded.Clone()
	}

	t := &turn{engine: e, ctx: ctx, wf: wf, st: st, now: now}
	st.Append(models.RoleUser, text, now)

	if err := t.dispatch(text); err != nil {
		slog.Error("Engine.HandleMessage: traversal failed", "error", err, "userID", userID, "workflowID", wf.ID, "node", st.CurrentNodeID)
		e.observer.TraversalFailed("traversal")
		return apology()
	}

	if t.ended {
		if err := e.executions.DeleteExecution(userID, wf.ID); err != nil {
			slog.Error("Engine.HandleMessage: failed to delete execution state", "error", err, "userID", userID, "workflowID", wf.ID)
			e.observer.TraversalFailed("persist")
			return apology()
		}
		slog.Info("Engine.HandleMessage: execution ended", "userID", userID, "workflowID", wf.ID, "archive", t.archive)
	} else {
		st.UpdatedAt = now
		if err := e.executions.SaveExecution(st); err != nil {
			slog.Error("Engine.HandleMessage: failed to save execution state", "error", err, "userID", userID, "workflowID", wf.ID)
			e.observer.TraversalFailed("persist")
			return apology()
		}
	}

	res = Result{
		Messages:            t.out,
		RequiresInput:       !t.ended && st.WaitingForInput,
		ArchiveConversation: t.ended && t.archive,
	}
	if res.Messages == nil {
		res.Messages = []models.OutboundMessage{}
	}
	slog.Debug("Engine.HandleMessage completed", "userID", userID, "workflowID", wf.ID,
		"messages", len(res.Messages), "requiresInput", res.RequiresInput, "archive", res.ArchiveConversation)
	return res
}

// HandleOperatorMessage processes text typed by the operator attending userID.
// When the operator ends the session every execution of the user is deleted
// so the next end-user message restarts from the start node.
func (e *Engine) HandleOperatorMessage(ctx context.Context, userID, text string) (OperatorResult, error) {
	if e.agents == nil {
		return OperatorResult{}, ErrPortUnavailable
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	pctx, cancel := context.WithTimeout(ctx, e.portTimeout)
	defer cancel()
	reply, err := e.agents.ProcessOperatorCommand(pctx, userID, text)
	if err != nil {
		slog.Error("Engine.HandleOperatorMessage: agent port failed", "error", err, "userID", userID)
		return OperatorResult{}, fmt.Errorf("process operator command: %w", err)
	}
	if !reply.Success {
		slog.Warn("Engine.HandleOperatorMessage: command rejected", "userID", userID, "reason", reply.Error)
		return OperatorResult{}, fmt.Errorf("%w: %s", ErrOperatorCommand, reply.Error)
	}

	out := OperatorResult{Message: reply.Message, SessionEnded: reply.SessionEnded}
	if reply.SessionEnded {
		n, err := e.executions.DeleteExecutionsByUser(userID)
		if err != nil {
			slog.Error("Engine.HandleOperatorMessage: failed to delete executions", "error", err, "userID", userID)
			return out, fmt.Errorf("delete executions: %w", err)
		}
		out.ExecutionsDeleted = n
		slog.Info("Engine.HandleOperatorMessage: operator ended session", "userID", userID, "deleted", n)
	}
	return out, nil
}

// Reset deletes the state of userID in workflowID.
func (e *Engine) Reset(ctx context.Context, userID, workflowID string) error {
	unlock := e.locks.Lock(userID)
	defer unlock()
	if err := e.executions.DeleteExecution(userID, workflowID); err != nil {
		return fmt.Errorf("reset execution: %w", err)
	}
	slog.Info("Engine.Reset: execution reset", "userID", userID, "workflowID", workflowID)
	return nil
}

// State returns a copy of the stored state of userID in workflowID, or nil.
func (e *Engine) State(userID, workflowID string) (*models.ExecutionState, error) {
	st, err := e.executions.GetExecution(userID, workflowID)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func apology() Result {
	return Result{Messages: []models.OutboundMessage{models.Text(genericApology)}, Failed: true}
}
