package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

func newMockActivityStore(t *testing.T) (*ActivityStore, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &ActivityStore{db: mockDB}, mock
}

func TestActivityStore_Record_DefaultsEmptyDetailToEmptyObject(t *testing.T) {
	store, mock := newMockActivityStore(t)

	mock.ExpectExec(`INSERT INTO activity_log`).
		WithArgs(int64(1), "cancel", "codeforces_1899A", "{}").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), models.ActivityLogEntry{
		UserID: 1,
		Action: "cancel",
		Target: "codeforces_1899A",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityStore_ListForUser(t *testing.T) {
	store, mock := newMockActivityStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM activity_log WHERE user_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(int64(1), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "target", "detail_json", "created_at"}).
			AddRow(int64(1), int64(1), "create", "codeforces_1899A", "{}", now))

	entries, err := store.ListForUser(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "create", entries[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
