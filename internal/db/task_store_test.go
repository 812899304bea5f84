package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

func newMockStore(t *testing.T) (*TaskStore, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &TaskStore{db: mockDB}, mock
}

func TestTaskStore_CreateTask(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs(int64(1), "codeforces_1899A", models.TaskStatusPending, models.StagePending, 0, "codeforces", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(42), now, now))

	task := &models.Task{
		UserID:      1,
		ProblemID:   "codeforces_1899A",
		Status:      models.TaskStatusPending,
		Stage:       models.StagePending,
		SourceJudge: "codeforces",
	}
	err := store.CreateTask(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, int64(42), task.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_GetTask_NotFoundForWrongOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM tasks WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(7), int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetTask(context.Background(), 7, 99, false)
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_GetTask_AdminSkipsOwnerFilter(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM tasks WHERE id = \$1$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "problem_id", "status", "stage", "progress",
			"source_judge", "destination_judge", "uploaded_url", "error_message",
			"created_at", "updated_at",
		}).AddRow(int64(7), int64(3), "atcoder_abc300_a", 1, "fetch", 10, "atcoder", "", "", "", now, now))

	task, err := store.GetTask(context.Background(), 7, 1 /* admin's own id, irrelevant */, true)
	require.NoError(t, err)
	require.Equal(t, int64(3), task.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_UpdateTaskStage_NoRowsIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE tasks SET stage`).
		WithArgs(models.StageGen, 50, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateTaskStage(context.Background(), 404, models.StageGen, 50)
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_ListTasks_AppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM tasks WHERE user_id = \$1 AND problem_id ILIKE \$2 AND stage = \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(int64(1), "%abc%", "solve", 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "problem_id", "status", "stage", "progress",
			"source_judge", "destination_judge", "uploaded_url", "error_message",
			"created_at", "updated_at",
		}).AddRow(int64(1), int64(1), "codeforces_abc", 4, "solve", 100, "codeforces", "vjudge", "http://x", "", now, now))

	tasks, err := store.ListTasks(context.Background(), 1, models.TaskFilters{
		Search: "abc",
		Status: "solve",
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_DeleteTask_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteTask(context.Background(), 5, 1)
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
