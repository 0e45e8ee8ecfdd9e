package services

import (
	"context"
	"database/sql"
)

const maxActivityPath = 500

// ActivityLog records page views in PostgreSQL. A nil database turns it into a no-op.
type ActivityLog struct {
	db *sql.DB
}

func NewActivityLog(db *sql.DB) *ActivityLog {
	return &ActivityLog{db: db}
}

func (a *ActivityLog) Enabled() bool {
	return a != nil && a.db != nil
}

// RecordPageView stores one page view. userID may be empty for anonymous visitors.
func (a *ActivityLog) RecordPageView(ctx context.Context, userID, path string) error {
	if !a.Enabled() {
		return nil
	}
	if len(path) > maxActivityPath {
		path = path[:maxActivityPath]
	}

	var uid interface{}
	if userID != "" {
		uid = userID
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO activity_events (user_id, path, event_type, created_at)
		VALUES ($1, $2, 'page_view', NOW())
	`, uid, path)
	return err
}
