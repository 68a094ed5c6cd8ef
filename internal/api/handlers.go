package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/services"
	"github.com/aura-dev/aura/internal/store"
)

func (s *Server) listInventoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.Sales == nil {
		serviceUnavailable(w, "Sales service")
		return
	}
	items, err := s.Sales.ListItems()
	if err != nil {
		slog.Error("Server.listInventoryHandler: failed to list inventory", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list inventory"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(items))
}

// upsertInventoryHandler handles POST /inventory. A missing id creates a new item.
func (s *Server) upsertInventoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.Sales == nil {
		serviceUnavailable(w, "Sales service")
		return
	}
	var item models.InventoryItem
	if !decodeJSON(w, r, &item, "Server.upsertInventoryHandler") {
		return
	}
	if err := s.Sales.UpsertItem(&item); err != nil {
		if errors.Is(err, services.ErrInvalidItem) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.upsertInventoryHandler: upsert failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save item"))
		return
	}
	slog.Info("Server.upsertInventoryHandler: item saved", "itemID", item.ID, "stock", item.StockQuantity)
	writeJSONResponse(w, http.StatusOK, models.Success(item))
}

// listSalesHandler handles GET /sales, returning sale requests and completed sales.
func (s *Server) listSalesHandler(w http.ResponseWriter, r *http.Request) {
	if s.Sales == nil {
		serviceUnavailable(w, "Sales service")
		return
	}
	requests, err := s.Sales.ListRequests()
	if err != nil {
		slog.Error("Server.listSalesHandler: failed to list requests", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sale requests"))
		return
	}
	sales, err := s.Sales.ListSales()
	if err != nil {
		slog.Error("Server.listSalesHandler: failed to list sales", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sales"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"requests": requests,
		"sales":    sales,
	}))
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Bookings == nil {
		serviceUnavailable(w, "Booking service")
		return
	}
	bookings, err := s.Bookings.List(r.URL.Query().Get("workflow_id"))
	if err != nil {
		slog.Error("Server.listBookingsHandler: failed to list bookings", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list bookings"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}

// surveyStatsHandler handles GET /surveys/stats?workflow_id=&since=.
// since is an RFC 3339 timestamp or a number of days back.
func (s *Server) surveyStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Surveys == nil {
		serviceUnavailable(w, "Survey service")
		return
	}
	q := r.URL.Query()
	since, err := parseSince(q.Get("since"), time.Now())
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("since must be RFC 3339 or a number of days"))
		return
	}
	stats, err := s.Surveys.Statistics(q.Get("workflow_id"), since)
	if err != nil {
		slog.Error("Server.surveyStatsHandler: failed to compute statistics", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute statistics"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if days, err := strconv.Atoi(raw); err == nil && days >= 0 {
		return now.AddDate(0, 0, -days), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) listAgentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Agents == nil {
		serviceUnavailable(w, "Agent service")
		return
	}
	agents, err := s.Agents.ListAgents()
	if err != nil {
		slog.Error("Server.listAgentsHandler: failed to list agents", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list agents"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(agents))
}

func (s *Server) saveAgentHandler(w http.ResponseWriter, r *http.Request) {
	if s.Agents == nil {
		serviceUnavailable(w, "Agent service")
		return
	}
	var agent models.AIAgent
	if !decodeJSON(w, r, &agent, "Server.saveAgentHandler") {
		return
	}
	if err := s.Agents.SaveAgent(&agent); err != nil {
		if errors.Is(err, services.ErrInvalidAgent) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.saveAgentHandler: save failed", "error", err, "agentID", agent.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save agent"))
		return
	}
	slog.Info("Server.saveAgentHandler: agent saved", "agentID", agent.ID)
	writeJSONResponse(w, http.StatusOK, models.Success(agent))
}

// listConversationsHandler handles GET /conversations?status=open|archived.
func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.ConversationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ConversationOpen, models.ConversationArchived:
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("status must be open or archived"))
		return
	}
	convs, err := s.Store.ListConversations(status)
	if err != nil {
		slog.Error("Server.listConversationsHandler: failed to list conversations", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(convs))
}

// conversationMessagesHandler handles GET /conversations/{id}/messages?limit=N.
func (s *Server) conversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	if _, err := s.Store.GetConversation(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.conversationMessagesHandler: failed to load conversation", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	entries, err := s.Store.ListConversationEntries(id, limit)
	if err != nil {
		slog.Error("Server.conversationMessagesHandler: failed to list entries", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list messages"))
		return
	}
	if entries == nil {
		entries = []models.ConversationEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"workflows": len(s.Registry.List()),
	}
	if active := s.Registry.ActiveFlow(); active != nil {
		healthData["active_workflow"] = active.ID
	}

	// A failing conversation query marks the store as degraded
	if _, err := s.Store.ListConversations(models.ConversationOpen); err != nil {
		slog.Warn("Health check: store query failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
