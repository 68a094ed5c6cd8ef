package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("env DATABASE_URL not set")
	}
	s, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	for _, table := range []string{"executions", "workflows", "bookings", "survey_responses", "inventory_items",
		"sale_requests", "sale_records", "ai_agents", "agent_sessions", "conversation_entries", "conversations",
		"inbound_dedup", "outbox_messages"} {
		s.db.Exec("DELETE FROM " + table)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every available Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewInMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newTestPostgresStore(t)) })
}

func TestExecutionRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)

		got, err := s.GetExecution("u1", "wf")
		if err != nil || got != nil {
			t.Fatalf("GetExecution on empty store = %v, %v; want nil, nil", got, err)
		}

		st := models.NewExecutionState("u1", "wf", now)
		st.CurrentNodeID = "menu"
		st.WaitingForInput = true
		st.Append(models.RoleUser, "oi", now)
		st.Scheduling = &models.SchedulingState{NodeID: "slots", Slots: []models.TimeSlot{{Time: "10:00", Date: "2025-01-10"}}}
		if err := s.SaveExecution(st); err != nil {
			t.Fatalf("SaveExecution failed: %v", err)
		}

		got, err = s.GetExecution("u1", "wf")
		if err != nil || got == nil {
			t.Fatalf("GetExecution = %v, %v", got, err)
		}
		if got.CurrentNodeID != "menu" || !got.WaitingForInput || len(got.ConversationHistory) != 1 {
			t.Errorf("unexpected state: %+v", got)
		}
		if got.Scheduling == nil || got.Scheduling.Slots[0].Time != "10:00" {
			t.Errorf("scheduling state not persisted: %+v", got.Scheduling)
		}

		st.CurrentNodeID = "next"
		if err := s.SaveExecution(st); err != nil {
			t.Fatalf("SaveExecution update failed: %v", err)
		}
		got, _ = s.GetExecution("u1", "wf")
		if got.CurrentNodeID != "next" {
			t.Errorf("update not applied, node = %q", got.CurrentNodeID)
		}

		s.SaveExecution(models.NewExecutionState("u2", "wf", now))
		s.SaveExecution(models.NewExecutionState("u1", "other", now))

		n, err := s.DeleteExecutionsByWorkflow("wf")
		if err != nil || n != 2 {
			t.Errorf("DeleteExecutionsByWorkflow = %d, %v; want 2", n, err)
		}
		if got, _ := s.GetExecution("u1", "other"); got == nil {
			t.Error("execution of another workflow was deleted")
		}

		n, err = s.DeleteExecutionsByUser("u1")
		if err != nil || n != 1 {
			t.Errorf("DeleteExecutionsByUser = %d, %v; want 1", n, err)
		}
	})
}

func TestWorkflowRepoKeepsInsertionOrder(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		for _, id := range []string{"b", "a", "c"} {
			wf := &models.Workflow{ID: id, Enabled: true, Nodes: []models.Node{{ID: "s", Type: models.NodeTypeStart, Data: &models.StartData{}}}, CreatedAt: now, UpdatedAt: now}
			if err := s.SaveWorkflow(wf); err != nil {
				t.Fatalf("SaveWorkflow(%s) failed: %v", id, err)
			}
		}
		// Updating keeps the original position.
		s.SaveWorkflow(&models.Workflow{ID: "b", Enabled: false, Nodes: []models.Node{{ID: "s", Type: models.NodeTypeStart, Data: &models.StartData{}}}, CreatedAt: now, UpdatedAt: now.Add(time.Minute)})

		list, err := s.ListWorkflows()
		if err != nil {
			t.Fatalf("ListWorkflows failed: %v", err)
		}
		if len(list) != 3 || list[0].ID != "b" || list[1].ID != "a" || list[2].ID != "c" {
			t.Fatalf("unexpected order: %+v", list)
		}
		if list[0].Enabled {
			t.Error("update of enabled flag not persisted")
		}
		if _, ok := list[0].Nodes[0].Data.(*models.StartData); !ok {
			t.Errorf("node data lost: %T", list[0].Nodes[0].Data)
		}
	})
}

func TestBookingRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		bk := &models.Booking{ID: "b1", UserID: "u1", Code: "ABC123", Time: "10:00", Date: "2025-01-10", WorkflowID: "wf", Status: models.BookingStatusActive, CreatedAt: now}
		if ok, err := s.CreateBooking(bk); err != nil || !ok {
			t.Fatalf("CreateBooking = %v, %v", ok, err)
		}

		booked, err := s.IsSlotBooked("10:00", "2025-01-10", "wf")
		if err != nil || !booked {
			t.Errorf("IsSlotBooked = %v, %v; want true", booked, err)
		}
		if booked, _ := s.IsSlotBooked("11:00", "2025-01-10", "wf"); booked {
			t.Error("unbooked slot reported as booked")
		}

		if got, _ := s.GetBookingByCode("ABC123", "someone-else"); got != nil {
			t.Error("booking visible to another user")
		}
		got, err := s.GetBookingByCode("ABC123", "u1")
		if err != nil || got == nil || got.Time != "10:00" {
			t.Fatalf("GetBookingByCode = %+v, %v", got, err)
		}

		ok, err := s.CancelBooking("ABC123", "u1", "mudança de planos", now)
		if err != nil || !ok {
			t.Fatalf("CancelBooking = %v, %v", ok, err)
		}
		if booked, _ := s.IsSlotBooked("10:00", "2025-01-10", "wf"); booked {
			t.Error("cancelled booking still holds the slot")
		}
		if ok, _ := s.CancelBooking("ABC123", "u1", "again", now); ok {
			t.Error("cancelling twice should report false")
		}

		list, _ := s.ListBookings("wf")
		if len(list) != 1 || list[0].Status != models.BookingStatusCancelled || list[0].CancellationReason != "mudança de planos" || list[0].CancelledAt == nil {
			t.Errorf("ListBookings = %+v", list)
		}
	})
}

func TestBookingRepoRejectsSecondActiveBookingForSlot(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		first := &models.Booking{ID: "b1", UserID: "u1", Code: "AAA111", Time: "10:00", Date: "2025-01-10", WorkflowID: "wf", Status: models.BookingStatusActive, CreatedAt: now}
		second := &models.Booking{ID: "b2", UserID: "u2", Code: "BBB222", Time: "10:00", Date: "2025-01-10", WorkflowID: "wf", Status: models.BookingStatusActive, CreatedAt: now}

		if ok, err := s.CreateBooking(first); err != nil || !ok {
			t.Fatalf("first CreateBooking = %v, %v", ok, err)
		}
		if ok, err := s.CreateBooking(second); err != nil || ok {
			t.Fatalf("second CreateBooking = %v, %v; want false, nil", ok, err)
		}

		if ok, _ := s.CancelBooking("AAA111", "u1", "", now); !ok {
			t.Fatal("CancelBooking reported no match")
		}
		second.ID = "b3"
		if ok, err := s.CreateBooking(second); err != nil || !ok {
			t.Errorf("CreateBooking after cancel = %v, %v; want true", ok, err)
		}

		list, _ := s.ListBookings("wf")
		if len(list) != 2 {
			t.Errorf("stored %d bookings, want 2", len(list))
		}
	})
}

func TestInventoryAndSalesRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		s.UpsertInventoryItem(&models.InventoryItem{ID: "i1", Name: "Filtro", UnitPrice: 50, StockQuantity: 2, UpdatedAt: now})
		s.UpsertInventoryItem(&models.InventoryItem{ID: "i2", Name: "Bomba", UnitPrice: 120.5, StockQuantity: 0, UpdatedAt: now})

		list, err := s.ListInventory()
		if err != nil || len(list) != 2 || list[0].Name != "Bomba" {
			t.Fatalf("ListInventory = %+v, %v", list, err)
		}

		for i, want := range []bool{true, true, false} {
			ok, err := s.DecrementStock("i1", 1)
			if err != nil || ok != want {
				t.Errorf("DecrementStock #%d = %v, %v; want %v", i, ok, err, want)
			}
		}
		it, err := s.GetInventoryItem("i1")
		if err != nil || it.StockQuantity != 0 {
			t.Errorf("GetInventoryItem = %+v, %v", it, err)
		}
		if _, err := s.GetInventoryItem("missing"); err != ErrNotFound {
			t.Errorf("GetInventoryItem(missing) error = %v, want ErrNotFound", err)
		}

		contactBy := now.Add(7 * 24 * time.Hour)
		s.SaveSaleRequest(&models.SaleRequest{ID: "r1", UserID: "u", WorkflowID: "wf", Type: models.SaleRequestCustom, Status: models.SaleRequestPending, ItemName: "Válvula", ContactBy: &contactBy, CreatedAt: now})
		reqs, _ := s.ListSaleRequests()
		if len(reqs) != 1 || reqs[0].ContactBy == nil || reqs[0].PickupDeadline != nil {
			t.Errorf("ListSaleRequests = %+v", reqs)
		}

		s.SaveSaleRecord(&models.SaleRecord{ID: "s1", ItemID: "i1", ItemName: "Filtro", Quantity: 1, UnitPrice: 50, Total: 50, Contact: "11999", CreatedAt: now})
		recs, _ := s.ListSaleRecords()
		if len(recs) != 1 || recs[0].Total != 50 {
			t.Errorf("ListSaleRecords = %+v", recs)
		}
	})
}

func TestSurveyAndAgentRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		s.SaveSurveyResponse(&models.SurveyResponse{ID: "s1", UserID: "u", WorkflowID: "wf", Rating: 5, CreatedAt: now.Add(-48 * time.Hour)})
		s.SaveSurveyResponse(&models.SurveyResponse{ID: "s2", UserID: "u", WorkflowID: "wf", Rating: 3, CreatedAt: now})
		s.SaveSurveyResponse(&models.SurveyResponse{ID: "s3", UserID: "u", WorkflowID: "other", Rating: 1, CreatedAt: now})

		if all, _ := s.ListSurveyResponses("wf", time.Time{}); len(all) != 2 {
			t.Errorf("ListSurveyResponses(wf) returned %d, want 2", len(all))
		}
		if recent, _ := s.ListSurveyResponses("", now.Add(-time.Hour)); len(recent) != 2 {
			t.Errorf("ListSurveyResponses(since) returned %d, want 2", len(recent))
		}

		if err := s.SaveAIAgent(&models.AIAgent{ID: "a1", Name: "Vendas", SystemPrompt: "Você vende.", CompletionMarker: "[FIM]", CreatedAt: now}); err != nil {
			t.Fatalf("SaveAIAgent failed: %v", err)
		}
		a, err := s.GetAIAgent("a1")
		if err != nil || a.CompletionMarker != "[FIM]" {
			t.Errorf("GetAIAgent = %+v, %v", a, err)
		}
		if _, err := s.GetAIAgent("nope"); err != ErrNotFound {
			t.Errorf("GetAIAgent(nope) error = %v, want ErrNotFound", err)
		}

		if sess, err := s.GetAgentSession("u"); sess != nil || err != nil {
			t.Errorf("GetAgentSession on empty = %+v, %v", sess, err)
		}
		s.SaveAgentSession(&models.AgentSession{UserID: "u", NodeID: "human", Active: true, StartedAt: now})
		ended := now.Add(time.Minute)
		s.SaveAgentSession(&models.AgentSession{UserID: "u", NodeID: "human", Active: false, StartedAt: now, EndedAt: &ended})
		sess, _ := s.GetAgentSession("u")
		if sess == nil || sess.Active || sess.EndedAt == nil {
			t.Errorf("GetAgentSession = %+v", sess)
		}
	})
}

func TestConversationRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		now := time.Now().UTC().Truncate(time.Second)
		c := &models.Conversation{ID: "c1", UserID: "telegram:1", Channel: models.ChannelTelegram, Name: "Ana", Status: models.ConversationOpen, CreatedAt: now, UpdatedAt: now}
		if err := s.UpsertConversation(c); err != nil {
			t.Fatalf("UpsertConversation failed: %v", err)
		}
		for i, text := range []string{"oi", "olá", "tudo bem?"} {
			role := models.RoleUser
			if i%2 == 1 {
				role = models.RoleAssistant
			}
			if err := s.AppendConversationEntry(&models.ConversationEntry{ConversationID: "c1", Role: role, Text: text, CreatedAt: now}); err != nil {
				t.Fatalf("AppendConversationEntry failed: %v", err)
			}
		}

		entries, err := s.ListConversationEntries("c1", 0)
		if err != nil || len(entries) != 3 || entries[0].Text != "oi" || entries[0].ID == 0 {
			t.Fatalf("ListConversationEntries = %+v, %v", entries, err)
		}
		last, _ := s.ListConversationEntries("c1", 2)
		if len(last) != 2 || last[0].Text != "olá" || last[1].Text != "tudo bem?" {
			t.Errorf("ListConversationEntries(limit 2) = %+v", last)
		}

		c.Status = models.ConversationArchived
		c.UpdatedAt = now.Add(time.Minute)
		s.UpsertConversation(c)
		got, _ := s.GetConversationByUser("telegram:1")
		if got == nil || got.Status != models.ConversationArchived {
			t.Errorf("GetConversationByUser = %+v", got)
		}
		if open, _ := s.ListConversations(models.ConversationOpen); len(open) != 0 {
			t.Errorf("ListConversations(open) = %+v", open)
		}
		if _, err := s.GetConversation("missing"); err != ErrNotFound {
			t.Errorf("GetConversation(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestDedupRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		dup, err := s.IsDuplicate("msg-1")
		if err != nil || dup {
			t.Fatalf("IsDuplicate on new message = %v, %v", dup, err)
		}

		isNew, err := s.RecordInbound("msg-1", "participant-1")
		if err != nil || !isNew {
			t.Fatalf("RecordInbound = %v, %v; want true", isNew, err)
		}
		if dup, _ := s.IsDuplicate("msg-1"); !dup {
			t.Error("Expected true for duplicate message")
		}
		if isNew, _ := s.RecordInbound("msg-1", "participant-1"); isNew {
			t.Error("Expected isNew=false for duplicate record")
		}
		if err := s.MarkProcessed("msg-1"); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}

		n, err := s.PurgeDedupBefore(time.Now().Add(time.Minute))
		if err != nil || n != 1 {
			t.Errorf("PurgeDedupBefore = %d, %v; want 1", n, err)
		}
		if dup, _ := s.IsDuplicate("msg-1"); dup {
			t.Error("purged record still reported as duplicate")
		}
	})
}

func TestOutboxRepo(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		id, err := s.EnqueueOutboxMessage("telegram:1", OutboxKindText, `{"text":"Olá"}`, "", time.Time{})
		if err != nil || id == "" {
			t.Fatalf("EnqueueOutboxMessage = %q, %v", id, err)
		}
		later, _ := s.EnqueueOutboxMessage("telegram:1", OutboxKindText, `{"text":"Depois"}`, "", time.Now().Add(time.Hour))

		msgs, err := s.ClaimDueOutboxMessages(time.Now(), 10)
		if err != nil {
			t.Fatalf("ClaimDueOutboxMessages failed: %v", err)
		}
		if len(msgs) != 1 || msgs[0].ID != id || msgs[0].Status != OutboxStatusSending {
			t.Fatalf("claimed %+v, want only the immediate message", msgs)
		}

		if err := s.FailOutboxMessage(id, "send error", time.Now().Add(-time.Second)); err != nil {
			t.Fatalf("FailOutboxMessage failed: %v", err)
		}
		msgs, _ = s.ClaimDueOutboxMessages(time.Now(), 10)
		if len(msgs) != 1 || msgs[0].Attempts != 1 {
			t.Fatalf("retry claim = %+v", msgs)
		}
		if err := s.MarkOutboxMessageSent(id); err != nil {
			t.Fatalf("MarkOutboxMessageSent failed: %v", err)
		}

		msgs, _ = s.ClaimDueOutboxMessages(time.Now().Add(2*time.Hour), 10)
		if len(msgs) != 1 || msgs[0].ID != later {
			t.Fatalf("delayed claim = %+v", msgs)
		}
		n, err := s.RequeueStaleSendingMessages(time.Now().Add(3 * time.Hour))
		if err != nil || n != 1 {
			t.Errorf("RequeueStaleSendingMessages = %d, %v; want 1", n, err)
		}

		all, _ := s.ListOutboxMessages("telegram:1")
		if len(all) != 2 {
			t.Errorf("ListOutboxMessages returned %d, want 2", len(all))
		}

		id1, _ := s.EnqueueOutboxMessage("p1", OutboxKindText, `{}`, "dedupe-1", time.Time{})
		id2, _ := s.EnqueueOutboxMessage("p1", OutboxKindText, `{}`, "dedupe-1", time.Time{})
		if id1 != id2 {
			t.Errorf("Expected same ID for duplicate dedupe key, got %q and %q", id1, id2)
		}
	})
}

func TestOutboxSender_Basic(t *testing.T) {
	s := newTestSQLiteStore(t)

	var sent int32
	sendFunc := func(ctx context.Context, msg OutboxMessage) error {
		atomic.AddInt32(&sent, 1)
		return nil
	}

	sender := NewOutboxSender(s, sendFunc, 50*time.Millisecond)
	if _, err := s.EnqueueOutboxMessage("p1", OutboxKindText, `{"text":"Hello"}`, "", time.Time{}); err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go sender.Run(ctx)
	<-ctx.Done()

	if atomic.LoadInt32(&sent) != 1 {
		t.Errorf("Expected 1 send, got %d", atomic.LoadInt32(&sent))
	}
}

func TestOutboxSenderRetriesWithBackoff(t *testing.T) {
	s := NewInMemoryStore()
	fail := true
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		if fail {
			return context.DeadlineExceeded
		}
		return nil
	}, time.Second)

	s.EnqueueOutboxMessage("p1", OutboxKindText, `{}`, "", time.Time{})
	now := time.Now()
	if n := sender.Poll(context.Background(), now); n != 0 {
		t.Fatalf("Poll sent %d on failure", n)
	}
	if n := sender.Poll(context.Background(), now.Add(5*time.Second)); n != 0 {
		t.Fatal("message retried before backoff elapsed")
	}
	fail = false
	if n := sender.Poll(context.Background(), now.Add(11*time.Second)); n != 1 {
		t.Fatalf("Poll after backoff sent %d, want 1", n)
	}
}

func TestOutboxSenderHoldsLaterRepliesAfterFailure(t *testing.T) {
	s := NewInMemoryStore()
	failing := `{"text":"a"}`
	var delivered []string
	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		if msg.PayloadJSON == failing {
			return context.DeadlineExceeded
		}
		delivered = append(delivered, msg.ParticipantID+" "+msg.PayloadJSON)
		return nil
	}, time.Second)

	s.EnqueueOutboxMessage("telegram:1", OutboxKindText, `{"text":"a"}`, "", time.Time{})
	s.EnqueueOutboxMessage("telegram:1", OutboxKindText, `{"text":"b"}`, "", time.Time{})
	s.EnqueueOutboxMessage("telegram:2", OutboxKindText, `{"text":"c"}`, "", time.Time{})

	now := time.Now()
	if n := sender.Poll(context.Background(), now); n != 1 {
		t.Fatalf("first Poll sent %d, want 1 (other participant only)", n)
	}
	msgs, _ := s.ListOutboxMessages("telegram:1")
	if len(msgs) != 2 || msgs[1].Status != OutboxStatusQueued {
		t.Fatalf("held message = %+v, want queued", msgs)
	}
	if !msgs[1].NextAttemptAt.After(*msgs[0].NextAttemptAt) {
		t.Errorf("held reply due %v, not after the failed one %v", msgs[1].NextAttemptAt, msgs[0].NextAttemptAt)
	}

	failing = ""
	if n := sender.Poll(context.Background(), now.Add(time.Minute)); n != 2 {
		t.Fatalf("retry Poll sent %d, want 2", n)
	}
	want := []string{`telegram:2 {"text":"c"}`, `telegram:1 {"text":"a"}`, `telegram:1 {"text":"b"}`}
	if strings.Join(delivered, "|") != strings.Join(want, "|") {
		t.Errorf("delivery order = %v, want %v", delivered, want)
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	if got := retryBackoff(0); got != 10*time.Second {
		t.Errorf("retryBackoff(0) = %v", got)
	}
	if got := retryBackoff(2); got != 40*time.Second {
		t.Errorf("retryBackoff(2) = %v", got)
	}
	if got := retryBackoff(30); got != maxOutboxBackoff {
		t.Errorf("retryBackoff(30) = %v, want cap", got)
	}
}

func TestSQLRebind(t *testing.T) {
	pg := &sqlBase{numbered: true}
	if got := pg.q("SELECT a FROM t WHERE x = ? AND y = ?"); got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Errorf("q() = %q", got)
	}
	lite := &sqlBase{}
	if got := lite.q("x = ?"); got != "x = ?" {
		t.Errorf("q() sqlite = %q", got)
	}
}

func TestRestartKeepsExecutions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restart.db")
	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	st := models.NewExecutionState("u", "wf", time.Now())
	st.CurrentNodeID = "menu"
	s1.SaveExecution(st)
	s1.Close()

	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	got, err := s2.GetExecution("u", "wf")
	if err != nil || got == nil || got.CurrentNodeID != "menu" {
		t.Errorf("after restart GetExecution = %+v, %v", got, err)
	}
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"", DSNTypeMemory},
		{":memory:", DSNTypeMemory},
		{"postgres://u:p@localhost/aura", DSNTypePostgres},
		{"postgresql://localhost/aura", DSNTypePostgres},
		{"host=localhost dbname=aura sslmode=disable", DSNTypePostgres},
		{"/var/lib/aura/aura.db", DSNTypeSQLite},
		{"aura.db", DSNTypeSQLite},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpenSQLite(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*SQLiteStore); !ok {
		t.Errorf("Open returned %T, want *SQLiteStore", st)
	}
}
