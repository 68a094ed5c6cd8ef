package store

import (
	"sort"
	"sync"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/util"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps everything in process memory. It is used when no DSN is
// configured and by tests. Values are copied in and out.
type InMemoryStore struct {
	mu sync.RWMutex

	executions    map[string]models.ExecutionState
	workflows     map[string]models.Workflow
	workflowOrder []string
	bookings      []models.Booking
	surveys       []models.SurveyResponse
	inventory     map[string]models.InventoryItem
	saleRequests  []models.SaleRequest
	saleRecords   []models.SaleRecord
	aiAgents      map[string]models.AIAgent
	agentOrder    []string
	sessions      map[string]models.AgentSession
	conversations map[string]models.Conversation
	entries       map[string][]models.ConversationEntry
	nextEntryID   int64
	dedup         map[string]DedupRecord
	outbox        []OutboxMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		executions:    make(map[string]models.ExecutionState),
		workflows:     make(map[string]models.Workflow),
		inventory:     make(map[string]models.InventoryItem),
		aiAgents:      make(map[string]models.AIAgent),
		sessions:      make(map[string]models.AgentSession),
		conversations: make(map[string]models.Conversation),
		entries:       make(map[string][]models.ConversationEntry),
		dedup:         make(map[string]DedupRecord),
	}
}

func executionKey(userID, workflowID string) string {
	return userID + "\x00" + workflowID
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetExecution(userID, workflowID string) (*models.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.executions[executionKey(userID, workflowID)]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *InMemoryStore) SaveExecution(state *models.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[executionKey(state.UserID, state.WorkflowID)] = *state.Clone()
	return nil
}

func (s *InMemoryStore) DeleteExecution(userID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executions, executionKey(userID, workflowID))
	return nil
}

func (s *InMemoryStore) DeleteExecutionsByWorkflow(workflowID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, st := range s.executions {
		if st.WorkflowID == workflowID {
			delete(s.executions, k)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteExecutionsByUser(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, st := range s.executions {
		if st.UserID == userID {
			delete(s.executions, k)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) SaveWorkflow(wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[wf.ID]; !ok {
		s.workflowOrder = append(s.workflowOrder, wf.ID)
	}
	s.workflows[wf.ID] = *wf.Clone()
	return nil
}

func (s *InMemoryStore) ListWorkflows() ([]models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Workflow, 0, len(s.workflowOrder))
	for _, id := range s.workflowOrder {
		wf := s.workflows[id]
		out = append(out, *wf.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) CreateBooking(b *models.Booking) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Status == models.BookingStatusActive {
		for _, cur := range s.bookings {
			if cur.Time == b.Time && cur.Date == b.Date && cur.WorkflowID == b.WorkflowID && cur.Status == models.BookingStatusActive {
				return false, nil
			}
		}
	}
	s.bookings = append(s.bookings, *b)
	return true, nil
}

func (s *InMemoryStore) IsSlotBooked(slotTime, slotDate, workflowID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.Time == slotTime && b.Date == slotDate && b.WorkflowID == workflowID && b.Status == models.BookingStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) GetBookingByCode(code, userID string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.Code == code && b.UserID == userID && b.Status == models.BookingStatusActive {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CancelBooking(code, userID, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.Code == code && b.UserID == userID && b.Status == models.BookingStatusActive {
			b.Status = models.BookingStatusCancelled
			b.CancelledAt = &at
			b.CancellationReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListBookings(workflowID string) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if workflowID == "" || b.WorkflowID == workflowID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveSurveyResponse(r *models.SurveyResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys = append(s.surveys, *r)
	return nil
}

func (s *InMemoryStore) ListSurveyResponses(workflowID string, since time.Time) ([]models.SurveyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SurveyResponse
	for _, r := range s.surveys {
		if workflowID != "" && r.WorkflowID != workflowID {
			continue
		}
		if !since.IsZero() && r.CreatedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryStore) UpsertInventoryItem(item *models.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[item.ID] = *item
	return nil
}

func (s *InMemoryStore) GetInventoryItem(id string) (*models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.inventory[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (s *InMemoryStore) ListInventory() ([]models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.InventoryItem, 0, len(s.inventory))
	for _, it := range s.inventory {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) DecrementStock(id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.inventory[id]
	if !ok || it.StockQuantity < qty {
		return false, nil
	}
	it.StockQuantity -= qty
	it.UpdatedAt = time.Now()
	s.inventory[id] = it
	return true, nil
}

func (s *InMemoryStore) SaveSaleRequest(r *models.SaleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saleRequests = append(s.saleRequests, *r)
	return nil
}

func (s *InMemoryStore) ListSaleRequests() ([]models.SaleRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SaleRequest(nil), s.saleRequests...), nil
}

func (s *InMemoryStore) SaveSaleRecord(r *models.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saleRecords = append(s.saleRecords, *r)
	return nil
}

func (s *InMemoryStore) ListSaleRecords() ([]models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SaleRecord(nil), s.saleRecords...), nil
}

func (s *InMemoryStore) SaveAIAgent(a *models.AIAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.aiAgents[a.ID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else {
		s.agentOrder = append(s.agentOrder, a.ID)
	}
	s.aiAgents[a.ID] = *a
	return nil
}

func (s *InMemoryStore) GetAIAgent(id string) (*models.AIAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aiAgents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) ListAIAgents() ([]models.AIAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AIAgent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		out = append(out, s.aiAgents[id])
	}
	return out, nil
}

func (s *InMemoryStore) SaveAgentSession(sess *models.AgentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = *sess
	return nil
}

func (s *InMemoryStore) GetAgentSession(userID string) (*models.AgentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) UpsertConversation(c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[c.ID]; ok {
		existing.Name = c.Name
		existing.Status = c.Status
		existing.UpdatedAt = c.UpdatedAt
		s.conversations[c.ID] = existing
		return nil
	}
	s.conversations[c.ID] = *c
	return nil
}

func (s *InMemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) GetConversationByUser(userID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.UserID == userID {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListConversations(status models.ConversationStatus) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) AppendConversationEntry(e *models.ConversationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntryID++
	e.ID = s.nextEntryID
	s.entries[e.ConversationID] = append(s.entries[e.ConversationID], *e)
	return nil
}

func (s *InMemoryStore) ListConversationEntries(conversationID string, limit int) ([]models.ConversationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.entries[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.ConversationEntry(nil), all...), nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = DedupRecord{MessageID: messageID, ParticipantID: participantID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.dedup[messageID]
	if !ok {
		return nil
	}
	now := time.Now()
	rec.ProcessedAt = &now
	s.dedup[messageID] = rec
	return nil
}

func (s *InMemoryStore) PurgeDedupBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.dedup {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.dedup, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(participantID, kind, payloadJSON, dedupeKey string, notBefore time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusCanceled {
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	m := OutboxMessage{
		ID:            util.GenerateOutboxID(),
		ParticipantID: participantID,
		Kind:          kind,
		PayloadJSON:   payloadJSON,
		Status:        OutboxStatusQueued,
		NextAttemptAt: nonZero(notBefore),
		DedupeKey:     dedupeKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.outbox = append(s.outbox, m)
	return m.ID, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboxMessage
	for i := range s.outbox {
		if len(out) >= limit {
			break
		}
		m := &s.outbox[i]
		if m.Status != OutboxStatusQueued || (m.NextAttemptAt != nil && m.NextAttemptAt.After(now)) {
			continue
		}
		lockedAt := now
		m.Status = OutboxStatusSending
		m.LockedAt = &lockedAt
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (s *InMemoryStore) updateOutbox(id string, fn func(m *OutboxMessage)) {
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			s.outbox[i].UpdatedAt = time.Now()
			return
		}
	}
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateOutbox(id, func(m *OutboxMessage) { m.Status = OutboxStatusSent })
	return nil
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusQueued
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &nextAttemptAt
		m.LockedAt = nil
	})
	return nil
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.outbox {
		m := &s.outbox[i]
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListOutboxMessages(participantID string) ([]OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboxMessage
	for _, m := range s.outbox {
		if m.ParticipantID == participantID {
			out = append(out, m)
		}
	}
	return out, nil
}
