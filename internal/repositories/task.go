package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
)

// TaskRepository persists scheduler state and run history.
//
// The three writes of a run (start, seal, state update) are independent statements. A crash
// between them can leave a run in the running status, which is visible through [TaskRepository.History].
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository with the given database connection
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// EnsureState creates the state row for name if it does not exist. Existing rows are never overwritten.
func (r *TaskRepository) EnsureState(ctx context.Context, name string, enabled bool) error {
	query := `INSERT OR IGNORE INTO task_state (task_name, is_enabled) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, name, enabled); err != nil {
		return fmt.Errorf("failed to ensure task state: %w", err)
	}
	return nil
}

// ReadState returns the state of name, or nil when no row exists.
func (r *TaskRepository) ReadState(ctx context.Context, name string) (*models.TaskState, error) {
	query := `SELECT task_name, last_run_at, last_status, next_run_at, is_enabled FROM task_state WHERE task_name = ?`
	state, err := scanState(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task state: %w", err)
	}
	return state, nil
}

// ListStates returns every state row ordered by task name.
func (r *TaskRepository) ListStates(ctx context.Context) ([]*models.TaskState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT task_name, last_run_at, last_status, next_run_at, is_enabled FROM task_state ORDER BY task_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list task states: %w", err)
	}
	defer rows.Close()

	var states []*models.TaskState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// WriteState records the outcome of a completed run.
func (r *TaskRepository) WriteState(ctx context.Context, name string, lastRunAt time.Time, status models.RunStatus, nextRunAt time.Time) error {
	query := `UPDATE task_state SET last_run_at = ?, last_status = ?, next_run_at = ? WHERE task_name = ?`
	if _, err := r.db.ExecContext(ctx, query, formatTime(lastRunAt), string(status), formatTime(nextRunAt), name); err != nil {
		return fmt.Errorf("failed to write task state: %w", err)
	}
	return nil
}

// SeedNextRun sets next_run_at only when it is still NULL and reports whether it did.
func (r *TaskRepository) SeedNextRun(ctx context.Context, name string, next time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE task_state SET next_run_at = ? WHERE task_name = ? AND next_run_at IS NULL`, formatTime(next), name)
	if err != nil {
		return false, fmt.Errorf("failed to seed next run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// SetEnabled toggles whether the scheduler may run name.
func (r *TaskRepository) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE task_state SET is_enabled = ? WHERE task_name = ?`, enabled, name); err != nil {
		return fmt.Errorf("failed to update task enabled flag: %w", err)
	}
	return nil
}

// InsertRunStart appends a running record and returns its id.
func (r *TaskRepository) InsertRunStart(ctx context.Context, name string, startedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `INSERT INTO task_runs (task_name, started_at, status) VALUES (?, ?, ?)`,
		name, formatTime(startedAt), string(models.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to insert task run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get task run id: %w", err)
	}
	return id, nil
}

// SealRun completes a running record. Sealed runs are never updated again.
func (r *TaskRepository) SealRun(ctx context.Context, id int64, completedAt time.Time, status models.RunStatus, errMsg string, tracksProcessed int) error {
	query := `
		UPDATE task_runs SET completed_at = ?, status = ?, error_message = ?, tracks_processed = ?
		WHERE id = ? AND completed_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, formatTime(completedAt), string(status), nullString(errMsg), tracksProcessed, id); err != nil {
		return fmt.Errorf("failed to seal task run: %w", err)
	}
	return nil
}

// GetRun returns a single run by id.
func (r *TaskRepository) GetRun(ctx context.Context, id int64) (*models.TaskRun, error) {
	query := `SELECT id, task_name, started_at, completed_at, status, error_message, tracks_processed FROM task_runs WHERE id = ?`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task run: %w", err)
	}
	return run, nil
}

// History returns up to limit runs of name, newest first.
func (r *TaskRepository) History(ctx context.Context, name string, limit int) ([]*models.TaskRun, error) {
	query := `
		SELECT id, task_name, started_at, completed_at, status, error_message, tracks_processed
		FROM task_runs WHERE task_name = ? ORDER BY started_at DESC, id DESC LIMIT ?
	`
	return r.listRuns(ctx, query, name, limitOrDefault(limit))
}

// RecentRuns returns up to limit runs across all tasks, newest first.
func (r *TaskRepository) RecentRuns(ctx context.Context, limit int) ([]*models.TaskRun, error) {
	query := `
		SELECT id, task_name, started_at, completed_at, status, error_message, tracks_processed
		FROM task_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`
	return r.listRuns(ctx, query, limitOrDefault(limit))
}

func (r *TaskRepository) listRuns(ctx context.Context, query string, args ...any) ([]*models.TaskRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TaskRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func scanState(s scanner) (*models.TaskState, error) {
	var (
		state                           models.TaskState
		lastRun, lastStatus, nextRunRaw sql.NullString
	)
	if err := s.Scan(&state.TaskName, &lastRun, &lastStatus, &nextRunRaw, &state.Enabled); err != nil {
		return nil, err
	}
	state.LastRunAt = parseTime(lastRun)
	state.LastStatus = models.RunStatus(lastStatus.String)
	state.NextRunAt = parseTime(nextRunRaw)
	state.NextRunInvalid = nextRunRaw.Valid && nextRunRaw.String != "" && state.NextRunAt == nil
	return &state, nil
}

func scanRun(s scanner) (*models.TaskRun, error) {
	var (
		run                  models.TaskRun
		startedAt, completed sql.NullString
		status, errMsg       sql.NullString
	)
	if err := s.Scan(&run.ID, &run.TaskName, &startedAt, &completed, &status, &errMsg, &run.TracksProcessed); err != nil {
		return nil, err
	}
	if ts := parseTime(startedAt); ts != nil {
		run.StartedAt = *ts
	}
	run.CompletedAt = parseTime(completed)
	run.Status = models.RunStatus(status.String)
	run.ErrorMessage = errMsg.String
	return &run, nil
}
