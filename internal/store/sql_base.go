package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

// sqlBase implements the repositories whose SQL is portable between SQLite and
// PostgreSQL. Queries are written with '?' placeholders and rebound per dialect.
type sqlBase struct {
	db *sql.DB
	// name prefixes log messages, e.g. "SQLiteStore".
	name string
	// numbered selects $1-style placeholders.
	numbered bool
	// insertionOrder is the column that preserves workflow insertion order.
	insertionOrder string
}

// q rebinds '?' placeholders for the store's dialect.
func (b *sqlBase) q(query string) string {
	if !b.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// Close closes the database connection.
func (b *sqlBase) Close() error {
	slog.Debug(b.name + " closing database connection")
	err := b.db.Close()
	if err != nil {
		slog.Error(b.name+" close failed", "error", err)
	}
	return err
}

// SaveExecution stores or updates the execution state of a user in a workflow.
func (b *sqlBase) SaveExecution(state *models.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error(b.name+" SaveExecution JSON marshal failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("marshal execution state: %w", err)
	}
	_, err = b.db.Exec(b.q(`
		INSERT INTO executions (user_id, workflow_id, current_node_id, waiting_for_input, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, workflow_id) DO UPDATE SET
			current_node_id = excluded.current_node_id,
			waiting_for_input = excluded.waiting_for_input,
			state_data = excluded.state_data,
			updated_at = excluded.updated_at`),
		state.UserID, state.WorkflowID, state.CurrentNodeID, state.WaitingForInput, string(data), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error(b.name+" SaveExecution failed", "error", err, "userID", state.UserID, "workflowID", state.WorkflowID)
		return fmt.Errorf("save execution for %s: %w", state.UserID, err)
	}
	slog.Debug(b.name+" SaveExecution succeeded", "userID", state.UserID, "workflowID", state.WorkflowID, "node", state.CurrentNodeID)
	return nil
}

// GetExecution returns the execution state of a user in a workflow, or nil.
func (b *sqlBase) GetExecution(userID, workflowID string) (*models.ExecutionState, error) {
	var data string
	err := b.db.QueryRow(b.q(`SELECT state_data FROM executions WHERE user_id = ? AND workflow_id = ?`), userID, workflowID).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug(b.name+" GetExecution not found", "userID", userID, "workflowID", workflowID)
		return nil, nil
	}
	if err != nil {
		slog.Error(b.name+" GetExecution failed", "error", err, "userID", userID, "workflowID", workflowID)
		return nil, fmt.Errorf("get execution for %s: %w", userID, err)
	}
	var state models.ExecutionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		slog.Error(b.name+" GetExecution JSON unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("decode execution state for %s: %w", userID, err)
	}
	return &state, nil
}

// DeleteExecution removes the execution state of a user in a workflow.
func (b *sqlBase) DeleteExecution(userID, workflowID string) error {
	_, err := b.db.Exec(b.q(`DELETE FROM executions WHERE user_id = ? AND workflow_id = ?`), userID, workflowID)
	if err != nil {
		slog.Error(b.name+" DeleteExecution failed", "error", err, "userID", userID, "workflowID", workflowID)
		return fmt.Errorf("delete execution for %s: %w", userID, err)
	}
	slog.Debug(b.name+" DeleteExecution succeeded", "userID", userID, "workflowID", workflowID)
	return nil
}

// DeleteExecutionsByWorkflow removes every execution state of a workflow.
func (b *sqlBase) DeleteExecutionsByWorkflow(workflowID string) (int, error) {
	res, err := b.db.Exec(b.q(`DELETE FROM executions WHERE workflow_id = ?`), workflowID)
	if err != nil {
		slog.Error(b.name+" DeleteExecutionsByWorkflow failed", "error", err, "workflowID", workflowID)
		return 0, fmt.Errorf("delete executions of workflow %s: %w", workflowID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteExecutionsByUser removes every execution state of a user.
func (b *sqlBase) DeleteExecutionsByUser(userID string) (int, error) {
	res, err := b.db.Exec(b.q(`DELETE FROM executions WHERE user_id = ?`), userID)
	if err != nil {
		slog.Error(b.name+" DeleteExecutionsByUser failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("delete executions of user %s: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type workflowDefinition struct {
	Nodes []models.Node `json:"nodes"`
	Edges []models.Edge `json:"edges"`
}

// SaveWorkflow stores or updates a workflow. The insertion position of an
// existing workflow is kept.
func (b *sqlBase) SaveWorkflow(wf *models.Workflow) error {
	def, err := json.Marshal(workflowDefinition{Nodes: wf.Nodes, Edges: wf.Edges})
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", wf.ID, err)
	}
	_, err = b.db.Exec(b.q(`
		INSERT INTO workflows (id, tag, enabled, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tag = excluded.tag,
			enabled = excluded.enabled,
			definition = excluded.definition,
			updated_at = excluded.updated_at`),
		wf.ID, wf.Tag, wf.Enabled, string(def), wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		slog.Error(b.name+" SaveWorkflow failed", "error", err, "workflowID", wf.ID)
		return fmt.Errorf("save workflow %s: %w", wf.ID, err)
	}
	slog.Debug(b.name+" SaveWorkflow succeeded", "workflowID", wf.ID, "enabled", wf.Enabled)
	return nil
}

// ListWorkflows returns every stored workflow in insertion order.
func (b *sqlBase) ListWorkflows() ([]models.Workflow, error) {
	rows, err := b.db.Query(`SELECT id, tag, enabled, definition, created_at, updated_at FROM workflows ORDER BY ` + b.insertionOrder + ` ASC`)
	if err != nil {
		slog.Error(b.name+" ListWorkflows query failed", "error", err)
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var out []models.Workflow
	for rows.Next() {
		var wf models.Workflow
		var def string
		if err := rows.Scan(&wf.ID, &wf.Tag, &wf.Enabled, &def, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow row: %w", err)
		}
		var d workflowDefinition
		if err := json.Unmarshal([]byte(def), &d); err != nil {
			slog.Error(b.name+" ListWorkflows definition decode failed", "error", err, "workflowID", wf.ID)
			return nil, fmt.Errorf("decode workflow %s: %w", wf.ID, err)
		}
		wf.Nodes, wf.Edges = d.Nodes, d.Edges
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow rows: %w", err)
	}
	return out, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
