package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
)

// ChatRequest drives the engine directly for one user.
type ChatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// WorkflowStatusRequest toggles a workflow.
type WorkflowStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// OperatorMessageRequest carries text typed by a human operator.
type OperatorMessageRequest struct {
	Text string `json:"text"`
}

// publishWorkflowHandler handles POST /workflows.
func (s *Server) publishWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWorkflowBytes))
	if err != nil {
		slog.Warn("Server.publishWorkflowHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}
	wf, err := models.DecodeWorkflowPayload(raw)
	if err != nil {
		slog.Warn("Server.publishWorkflowHandler: invalid payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.Registry.Publish(r.Context(), wf); err != nil {
		if isValidationError(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.publishWorkflowHandler: publish failed", "error", err, "workflowID", wf.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to publish workflow"))
		return
	}
	published, _ := s.Registry.Get(wf.ID)
	slog.Info("Server.publishWorkflowHandler: workflow published", "workflowID", wf.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Workflow published", published))
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyWorkflow) ||
		errors.Is(err, models.ErrMissingWorkflowID) ||
		errors.Is(err, models.ErrInvalidNode)
}

func (s *Server) listWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.Registry.List()))
}

func (s *Server) getWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.Registry.Get(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Workflow not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(wf))
}

// workflowStatusHandler handles PUT /workflows/{id}/status.
func (s *Server) workflowStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req WorkflowStatusRequest
	if !decodeJSON(w, r, &req, "Server.workflowStatusHandler") {
		return
	}
	if req.Enabled == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("enabled is required"))
		return
	}
	if err := s.Registry.SetEnabled(r.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, flow.ErrWorkflowNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Workflow not found"))
			return
		}
		slog.Error("Server.workflowStatusHandler: update failed", "error", err, "workflowID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update workflow"))
		return
	}
	wf, _ := s.Registry.Get(id)
	writeJSONResponse(w, http.StatusOK, models.Success(wf))
}

// chatHandler handles POST /chat. Replies are returned in the response and
// never delivered to a channel.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req, "Server.chatHandler") {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	slog.Debug("Server.chatHandler: driving engine", "userID", req.UserID)
	res := s.Engine.HandleInbound(r.Context(), req.UserID, req.Text)
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

// executionWorkflowID returns the workflow_id query parameter, defaulting to
// the active flow.
func (s *Server) executionWorkflowID(r *http.Request) (string, bool) {
	if id := r.URL.Query().Get("workflow_id"); id != "" {
		return id, true
	}
	if active := s.Registry.ActiveFlow(); active != nil {
		return active.ID, true
	}
	return "", false
}

func (s *Server) getExecutionHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	workflowID, ok := s.executionWorkflowID(r)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active workflow"))
		return
	}
	st, err := s.Engine.State(userID, workflowID)
	if err != nil {
		slog.Error("Server.getExecutionHandler: failed to load state", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load execution"))
		return
	}
	if st == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Execution not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(st))
}

func (s *Server) resetExecutionHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	workflowID, ok := s.executionWorkflowID(r)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No active workflow"))
		return
	}
	if err := s.Engine.Reset(r.Context(), userID, workflowID); err != nil {
		slog.Error("Server.resetExecutionHandler: reset failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset execution"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Execution reset", nil))
}

// operatorMessageHandler handles POST /operator/{userID}/messages.
func (s *Server) operatorMessageHandler(w http.ResponseWriter, r *http.Request) {
	if s.Dispatcher == nil {
		serviceUnavailable(w, "Message dispatcher")
		return
	}
	userID := r.PathValue("userID")
	var req OperatorMessageRequest
	if !decodeJSON(w, r, &req, "Server.operatorMessageHandler") {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("text is required"))
		return
	}
	res, err := s.Dispatcher.HandleOperator(r.Context(), userID, req.Text)
	switch {
	case errors.Is(err, flow.ErrPortUnavailable):
		serviceUnavailable(w, "Agent service")
	case errors.Is(err, flow.ErrOperatorCommand):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case err != nil:
		slog.Error("Server.operatorMessageHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process operator message"))
	default:
		writeJSONResponse(w, http.StatusOK, models.Success(res))
	}
}
