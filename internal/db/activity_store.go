package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inkotake/ojoagent/internal/models"
)

// ActivityStore is an append-only writer for the activity_log audit trail
// (SPEC_FULL §12, not part of the distilled schema).
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(c *Client) *ActivityStore {
	return &ActivityStore{db: c.DB()}
}

// Record inserts one audit entry. Detail should already be a JSON-encoded
// string; callers with structured detail should json.Marshal it first.
func (s *ActivityStore) Record(ctx context.Context, entry models.ActivityLogEntry) error {
	detail := entry.DetailJSON
	if detail == "" {
		detail = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, action, target, detail_json)
		VALUES ($1, $2, $3, $4)`,
		entry.UserID, entry.Action, entry.Target, detail,
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// ListForUser returns a user's most recent activity entries, newest first.
func (s *ActivityStore) ListForUser(ctx context.Context, userID int64, limit int) ([]*models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, target, detail_json, created_at
		FROM activity_log WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []*models.ActivityLogEntry
	for rows.Next() {
		e := &models.ActivityLogEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Target, &e.DetailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
