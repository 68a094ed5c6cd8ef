package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

const bookingColumns = `id, user_id, code, slot_time, slot_date, workflow_id, status, created_at, cancelled_at, cancellation_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (models.Booking, error) {
	var bk models.Booking
	var cancelledAt sql.NullTime
	var reason sql.NullString
	err := r.Scan(&bk.ID, &bk.UserID, &bk.Code, &bk.Time, &bk.Date, &bk.WorkflowID, &bk.Status, &bk.CreatedAt, &cancelledAt, &reason)
	if err != nil {
		return bk, err
	}
	bk.CancelledAt = nullTimePtr(cancelledAt)
	bk.CancellationReason = reason.String
	return bk, nil
}

// CreateBooking relies on the partial unique index over active slots, so two
// racing inserts for one slot leave exactly one row.
func (b *sqlBase) CreateBooking(bk *models.Booking) (bool, error) {
	_, err := b.db.Exec(b.q(`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		bk.ID, bk.UserID, bk.Code, bk.Time, bk.Date, bk.WorkflowID, bk.Status, bk.CreatedAt, timeOrNil(bk.CancelledAt), nilIfEmpty(bk.CancellationReason))
	if isUniqueViolation(err) {
		slog.Debug(b.name+" CreateBooking: slot already held", "userID", bk.UserID, "date", bk.Date, "time", bk.Time)
		return false, nil
	}
	if err != nil {
		slog.Error(b.name+" CreateBooking failed", "error", err, "userID", bk.UserID, "code", bk.Code)
		return false, fmt.Errorf("create booking %s: %w", bk.Code, err)
	}
	slog.Debug(b.name+" CreateBooking succeeded", "userID", bk.UserID, "code", bk.Code, "date", bk.Date, "time", bk.Time)
	return true, nil
}

func (b *sqlBase) IsSlotBooked(slotTime, slotDate, workflowID string) (bool, error) {
	var n int
	err := b.db.QueryRow(b.q(`SELECT COUNT(*) FROM bookings WHERE slot_time = ? AND slot_date = ? AND workflow_id = ? AND status = ?`),
		slotTime, slotDate, workflowID, models.BookingStatusActive).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check slot %s %s: %w", slotDate, slotTime, err)
	}
	return n > 0, nil
}

func (b *sqlBase) GetBookingByCode(code, userID string) (*models.Booking, error) {
	row := b.db.QueryRow(b.q(`SELECT `+bookingColumns+` FROM bookings WHERE code = ? AND user_id = ? AND status = ?`),
		code, userID, models.BookingStatusActive)
	bk, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", code, err)
	}
	return &bk, nil
}

func (b *sqlBase) CancelBooking(code, userID, reason string, at time.Time) (bool, error) {
	res, err := b.db.Exec(b.q(`UPDATE bookings SET status = ?, cancelled_at = ?, cancellation_reason = ? WHERE code = ? AND user_id = ? AND status = ?`),
		models.BookingStatusCancelled, at, reason, code, userID, models.BookingStatusActive)
	if err != nil {
		slog.Error(b.name+" CancelBooking failed", "error", err, "userID", userID, "code", code)
		return false, fmt.Errorf("cancel booking %s: %w", code, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *sqlBase) ListBookings(workflowID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	if workflowID != "" {
		query += ` WHERE workflow_id = ?`
		args = append(args, workflowID)
	}
	rows, err := b.db.Query(b.q(query+` ORDER BY created_at ASC`), args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()
	var out []models.Booking
	for rows.Next() {
		bk, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		out = append(out, bk)
	}
	return out, rows.Err()
}

func (b *sqlBase) SaveSurveyResponse(r *models.SurveyResponse) error {
	_, err := b.db.Exec(b.q(`INSERT INTO survey_responses (id, user_id, workflow_id, rating, question, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.WorkflowID, r.Rating, r.Question, r.CreatedAt)
	if err != nil {
		slog.Error(b.name+" SaveSurveyResponse failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("save survey response: %w", err)
	}
	return nil
}

func (b *sqlBase) ListSurveyResponses(workflowID string, since time.Time) ([]models.SurveyResponse, error) {
	query := `SELECT id, user_id, workflow_id, rating, question, created_at FROM survey_responses WHERE 1 = 1`
	var args []any
	if workflowID != "" {
		query += ` AND workflow_id = ?`
		args = append(args, workflowID)
	}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}
	rows, err := b.db.Query(b.q(query+` ORDER BY created_at ASC`), args...)
	if err != nil {
		return nil, fmt.Errorf("query survey responses: %w", err)
	}
	defer rows.Close()
	var out []models.SurveyResponse
	for rows.Next() {
		var r models.SurveyResponse
		if err := rows.Scan(&r.ID, &r.UserID, &r.WorkflowID, &r.Rating, &r.Question, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan survey response row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *sqlBase) UpsertInventoryItem(item *models.InventoryItem) error {
	_, err := b.db.Exec(b.q(`
		INSERT INTO inventory_items (id, name, unit_price, stock_quantity, minimum_stock, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			unit_price = excluded.unit_price,
			stock_quantity = excluded.stock_quantity,
			minimum_stock = excluded.minimum_stock,
			updated_at = excluded.updated_at`),
		item.ID, item.Name, item.UnitPrice, item.StockQuantity, item.MinimumStock, item.UpdatedAt)
	if err != nil {
		slog.Error(b.name+" UpsertInventoryItem failed", "error", err, "itemID", item.ID)
		return fmt.Errorf("upsert inventory item %s: %w", item.ID, err)
	}
	return nil
}

func (b *sqlBase) GetInventoryItem(id string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	err := b.db.QueryRow(b.q(`SELECT id, name, unit_price, stock_quantity, minimum_stock, updated_at FROM inventory_items WHERE id = ?`), id).
		Scan(&it.ID, &it.Name, &it.UnitPrice, &it.StockQuantity, &it.MinimumStock, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory item %s: %w", id, err)
	}
	return &it, nil
}

func (b *sqlBase) ListInventory() ([]models.InventoryItem, error) {
	rows, err := b.db.Query(`SELECT id, name, unit_price, stock_quantity, minimum_stock, updated_at FROM inventory_items ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()
	var out []models.InventoryItem
	for rows.Next() {
		var it models.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.StockQuantity, &it.MinimumStock, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (b *sqlBase) DecrementStock(id string, qty int) (bool, error) {
	res, err := b.db.Exec(b.q(`UPDATE inventory_items SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?`),
		qty, time.Now(), id, qty)
	if err != nil {
		slog.Error(b.name+" DecrementStock failed", "error", err, "itemID", id)
		return false, fmt.Errorf("decrement stock of %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *sqlBase) SaveSaleRequest(r *models.SaleRequest) error {
	_, err := b.db.Exec(b.q(`
		INSERT INTO sale_requests (id, user_id, workflow_id, request_type, status, item_id, item_name, contact, contact_by, pickup_deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.WorkflowID, r.Type, r.Status, nilIfEmpty(r.ItemID), r.ItemName, nilIfEmpty(r.Contact),
		timeOrNil(r.ContactBy), timeOrNil(r.PickupDeadline), r.CreatedAt)
	if err != nil {
		slog.Error(b.name+" SaveSaleRequest failed", "error", err, "userID", r.UserID, "type", r.Type)
		return fmt.Errorf("save sale request: %w", err)
	}
	return nil
}

func (b *sqlBase) ListSaleRequests() ([]models.SaleRequest, error) {
	rows, err := b.db.Query(`SELECT id, user_id, workflow_id, request_type, status, item_id, item_name, contact, contact_by, pickup_deadline, created_at FROM sale_requests ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sale requests: %w", err)
	}
	defer rows.Close()
	var out []models.SaleRequest
	for rows.Next() {
		var r models.SaleRequest
		var itemID, contact sql.NullString
		var contactBy, pickup sql.NullTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.WorkflowID, &r.Type, &r.Status, &itemID, &r.ItemName, &contact, &contactBy, &pickup, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale request row: %w", err)
		}
		r.ItemID, r.Contact = itemID.String, contact.String
		r.ContactBy, r.PickupDeadline = nullTimePtr(contactBy), nullTimePtr(pickup)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *sqlBase) SaveSaleRecord(r *models.SaleRecord) error {
	_, err := b.db.Exec(b.q(`INSERT INTO sale_records (id, item_id, item_name, quantity, unit_price, total, contact, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.ItemID, r.ItemName, r.Quantity, r.UnitPrice, r.Total, r.Contact, r.CreatedAt)
	if err != nil {
		slog.Error(b.name+" SaveSaleRecord failed", "error", err, "itemID", r.ItemID)
		return fmt.Errorf("save sale record: %w", err)
	}
	return nil
}

func (b *sqlBase) ListSaleRecords() ([]models.SaleRecord, error) {
	rows, err := b.db.Query(`SELECT id, item_id, item_name, quantity, unit_price, total, contact, created_at FROM sale_records ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sale records: %w", err)
	}
	defer rows.Close()
	var out []models.SaleRecord
	for rows.Next() {
		var r models.SaleRecord
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ItemName, &r.Quantity, &r.UnitPrice, &r.Total, &r.Contact, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale record row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *sqlBase) SaveAIAgent(a *models.AIAgent) error {
	_, err := b.db.Exec(b.q(`
		INSERT INTO ai_agents (id, name, system_prompt, model, completion_marker, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			system_prompt = excluded.system_prompt,
			model = excluded.model,
			completion_marker = excluded.completion_marker`),
		a.ID, a.Name, a.SystemPrompt, nilIfEmpty(a.Model), nilIfEmpty(a.CompletionMarker), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save ai agent %s: %w", a.ID, err)
	}
	return nil
}

func scanAIAgent(r rowScanner) (models.AIAgent, error) {
	var a models.AIAgent
	var model, marker sql.NullString
	err := r.Scan(&a.ID, &a.Name, &a.SystemPrompt, &model, &marker, &a.CreatedAt)
	a.Model, a.CompletionMarker = model.String, marker.String
	return a, err
}

func (b *sqlBase) GetAIAgent(id string) (*models.AIAgent, error) {
	a, err := scanAIAgent(b.db.QueryRow(b.q(`SELECT id, name, system_prompt, model, completion_marker, created_at FROM ai_agents WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai agent %s: %w", id, err)
	}
	return &a, nil
}

func (b *sqlBase) ListAIAgents() ([]models.AIAgent, error) {
	rows, err := b.db.Query(`SELECT id, name, system_prompt, model, completion_marker, created_at FROM ai_agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query ai agents: %w", err)
	}
	defer rows.Close()
	var out []models.AIAgent
	for rows.Next() {
		a, err := scanAIAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ai agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (b *sqlBase) SaveAgentSession(s *models.AgentSession) error {
	_, err := b.db.Exec(b.q(`
		INSERT INTO agent_sessions (user_id, node_id, active, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			node_id = excluded.node_id,
			active = excluded.active,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`),
		s.UserID, s.NodeID, s.Active, s.StartedAt, timeOrNil(s.EndedAt))
	if err != nil {
		slog.Error(b.name+" SaveAgentSession failed", "error", err, "userID", s.UserID)
		return fmt.Errorf("save agent session for %s: %w", s.UserID, err)
	}
	return nil
}

func (b *sqlBase) GetAgentSession(userID string) (*models.AgentSession, error) {
	var s models.AgentSession
	var ended sql.NullTime
	err := b.db.QueryRow(b.q(`SELECT user_id, node_id, active, started_at, ended_at FROM agent_sessions WHERE user_id = ?`), userID).
		Scan(&s.UserID, &s.NodeID, &s.Active, &s.StartedAt, &ended)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent session for %s: %w", userID, err)
	}
	s.EndedAt = nullTimePtr(ended)
	return &s, nil
}
