package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lucasnoah/branchflow/internal/session"
)

// StepEvent represents a row in the branchflow_step_events table.
type StepEvent struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Branch     string    `json:"branch"`
	RepoDir    string    `json:"repo_dir"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Result     string    `json:"result,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LogStepOutcome inserts one step outcome for ws.
func (d *DB) LogStepOutcome(ctx context.Context, ws *session.WorkflowSession, o session.StepOutcome) error {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := d.pool.Exec(ctx,
		`INSERT INTO branchflow_step_events
		   (session_id, branch, repo_dir, step, status, result, error_kind, timed_out, diagnostic, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ws.ID, ws.Branch, ws.Dir, string(o.Step), string(o.Status),
		nullable(o.Result), nullable(o.ErrorKind), o.Timeout, nullable(o.Diagnostic), ts,
	)
	if err != nil {
		return fmt.Errorf("log step outcome: %w", err)
	}
	return nil
}

// RecentEvents returns the latest events, newest first. An empty branch
// matches every branch.
func (d *DB) RecentEvents(ctx context.Context, branch string, limit int) ([]StepEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, session_id, branch, repo_dir, step, status,
		        COALESCE(result, ''), COALESCE(error_kind, ''), timed_out, COALESCE(diagnostic, ''), recorded_at
		 FROM branchflow_step_events
		 WHERE $1::text = '' OR branch = $1
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT $2`,
		branch, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}
	return collectEvents(rows)
}

// SessionHistory returns every event of one session in the order recorded.
func (d *DB) SessionHistory(ctx context.Context, sessionID string) ([]StepEvent, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, session_id, branch, repo_dir, step, status,
		        COALESCE(result, ''), COALESCE(error_kind, ''), timed_out, COALESCE(diagnostic, ''), recorded_at
		 FROM branchflow_step_events
		 WHERE session_id = $1
		 ORDER BY recorded_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get session history: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]StepEvent, error) {
	defer rows.Close()
	var events []StepEvent
	for rows.Next() {
		var e StepEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Branch, &e.RepoDir, &e.Step, &e.Status,
			&e.Result, &e.ErrorKind, &e.TimedOut, &e.Diagnostic, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan step event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
