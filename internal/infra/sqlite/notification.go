package sqlite

import (
	"context"
	"time"

	"github.com/glow-labs/glow/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification logs a notification and returns its id.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	)
	if err != nil {
		return 0, domain.Upstream("insert notification", err)
	}
	id, err := result.LastInsertId()
	return id, domain.Upstream("insert notification", err)
}

// CountNotificationsSince counts the user's notifications created at or after since.
func (d *DB) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&count)
	return count, domain.Upstream("count notifications", err)
}

// PendingNotifications returns unshown notifications, oldest first.
func (d *DB) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, body, created_at, shown
		 FROM notifications WHERE user_id = ? AND shown = 0
		 ORDER BY created_at ASC, id ASC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, domain.Upstream("query notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &created, &n.Shown); err != nil {
			return nil, domain.Upstream("scan notification", err)
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, n)
	}
	return out, domain.Upstream("query notifications", rows.Err())
}

// MarkNotificationShown flags a notification as shown.
func (d *DB) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET shown = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return domain.Upstream("mark notification", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
