package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkotake/ojoagent/internal/models"
)

// ErrTaskNotFound is returned when a task lookup matches no row, or matches
// a row the caller (non-admin) does not own.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore issues hand-written SQL against the tasks table.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(c *Client) *TaskStore {
	return &TaskStore{db: c.DB()}
}

// CreateTask inserts a pending task and populates its ID and timestamps.
func (s *TaskStore) CreateTask(ctx context.Context, t *models.Task) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, problem_id, status, stage, progress, source_judge, destination_judge)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		t.UserID, t.ProblemID, t.Status, t.Stage, t.Progress, t.SourceJudge, t.DestinationJudge,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask fetches a task by id. Non-admins may only see their own tasks;
// a mismatch is reported as ErrTaskNotFound rather than a permission error,
// so callers can't probe for the existence of other users' tasks.
func (s *TaskStore) GetTask(ctx context.Context, id, userID int64, isAdmin bool) (*models.Task, error) {
	query := `SELECT id, user_id, problem_id, status, stage, progress, source_judge,
		destination_judge, uploaded_url, error_message, created_at, updated_at
		FROM tasks WHERE id = $1`
	args := []any{id}
	if !isAdmin {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	t := &models.Task{}
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := scanTask(row, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns a user's tasks newest-first, applying the supplied filters.
func (s *TaskStore) ListTasks(ctx context.Context, userID int64, filters models.TaskFilters) ([]*models.Task, error) {
	query := `SELECT id, user_id, problem_id, status, stage, progress, source_judge,
		destination_judge, uploaded_url, error_message, created_at, updated_at
		FROM tasks WHERE user_id = $1`
	args := []any{userID}
	argN := 2

	if filters.Search != "" {
		query += fmt.Sprintf(" AND problem_id ILIKE $%d", argN)
		args = append(args, "%"+filters.Search+"%")
		argN++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND stage = $%d", argN)
		args = append(args, filters.Status)
		argN++
	}
	if filters.SourceJudge != "" {
		query += fmt.Sprintf(" AND source_judge = $%d", argN)
		args = append(args, filters.SourceJudge)
		argN++
	}
	if filters.DestinationJudge != "" {
		query += fmt.Sprintf(" AND destination_judge = $%d", argN)
		args = append(args, filters.DestinationJudge)
		argN++
	}

	query += " ORDER BY created_at DESC"

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		if err := scanTask(rows, t); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStage advances a task's stage and progress percentage.
func (s *TaskStore) UpdateTaskStage(ctx context.Context, id int64, stage models.Stage, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET stage = $1, progress = $2, updated_at = now() WHERE id = $3`,
		stage, progress, id,
	)
	return checkRowsAffected(res, err, "update task stage")
}

// UpdateTaskStatus transitions a task's terminal status, recording an error
// message for failures (empty string clears it on success).
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id,
	)
	return checkRowsAffected(res, err, "update task status")
}

// SetUploadedURL records the destination judge URL once the upload stage succeeds.
func (s *TaskStore) SetUploadedURL(ctx context.Context, id int64, url string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET uploaded_url = $1, updated_at = now() WHERE id = $2`, url, id,
	)
	return checkRowsAffected(res, err, "set uploaded url")
}

// DeleteTask removes a task row. Scoping to userID is the caller's responsibility
// (admins pass the task owner's id, not their own).
func (s *TaskStore) DeleteTask(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	return checkRowsAffected(res, err, "delete task")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable, t *models.Task) error {
	return row.Scan(
		&t.ID, &t.UserID, &t.ProblemID, &t.Status, &t.Stage, &t.Progress,
		&t.SourceJudge, &t.DestinationJudge, &t.UploadedURL, &t.ErrorMessage,
		&t.CreatedAt, &t.UpdatedAt,
	)
}

func checkRowsAffected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
