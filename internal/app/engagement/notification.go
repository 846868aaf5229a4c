package engagement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glow-labs/glow/internal/domain"
	"github.com/glow-labs/glow/internal/infra/metrics"
)

// NotificationService manages per-user notifications.
//   - At most MaxPerDay notifications per user per calendar day
//   - No notifications between QuietStart and QuietEnd in the configured zone
//   - Suppressed notifications are dropped, not queued
type NotificationService struct {
	store  domain.NotificationStore
	policy domain.NotificationPolicy
	loc    *time.Location
	clock  domain.Clock
	log    *zap.Logger
}

// NewNotificationService creates a notification service. The policy must
// pass ValidatePolicy.
func NewNotificationService(store domain.NotificationStore, policy domain.NotificationPolicy, loc *time.Location, clock domain.Clock, log *zap.Logger) *NotificationService {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationService{store: store, policy: policy, loc: loc, clock: clock, log: log}
}

// ValidatePolicy checks the quiet-hour clock strings and the daily cap.
func ValidatePolicy(p domain.NotificationPolicy) error {
	if p.MaxPerDay < 0 {
		return fmt.Errorf("%w: max_per_day %d < 0", domain.ErrInvalidInput, p.MaxPerDay)
	}
	for _, s := range []string{p.QuietStart, p.QuietEnd} {
		if _, _, err := parseHHMM(s); err != nil {
			return err
		}
	}
	return nil
}

// Notify stores notif unless policy suppresses it.
// Returns the notification ID (0 if suppressed by policy) and any error.
func (n *NotificationService) Notify(ctx context.Context, notif domain.Notification) (int64, error) {
	now := n.clock.Now().In(n.loc)

	if n.isQuietHour(now) {
		n.suppressed(notif, "quiet_hours")
		return 0, nil
	}

	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, n.loc)
	count, err := n.store.CountNotificationsSince(ctx, notif.UserID, dayStart)
	if err != nil {
		return 0, fmt.Errorf("count today: %w", err)
	}
	if count >= n.policy.MaxPerDay {
		n.suppressed(notif, "daily_cap")
		return 0, nil
	}

	notif.CreatedAt = now
	notif.Shown = false
	id, err := n.store.InsertNotification(ctx, notif)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	metrics.NotificationsSent.WithLabelValues(string(notif.Type), "sent").Inc()
	return id, nil
}

func (n *NotificationService) suppressed(notif domain.Notification, reason string) {
	metrics.NotificationsSent.WithLabelValues(string(notif.Type), "suppressed").Inc()
	n.log.Debug("notification suppressed",
		zap.String("user", notif.UserID),
		zap.String("type", string(notif.Type)),
		zap.String("reason", reason))
}

// Pending returns unshown notifications.
func (n *NotificationService) Pending(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return n.store.PendingNotifications(ctx, userID, limit)
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(ctx context.Context, userID string, id int64) error {
	return n.store.MarkNotificationShown(ctx, userID, id)
}

// Policy returns the current notification policy.
func (n *NotificationService) Policy() domain.NotificationPolicy {
	return n.policy
}

// isQuietHour returns true if the given time falls within quiet hours.
func (n *NotificationService) isQuietHour(t time.Time) bool {
	startHour, startMin, _ := parseHHMM(n.policy.QuietStart)
	endHour, endMin, _ := parseHHMM(n.policy.QuietEnd)

	t = t.In(n.loc)
	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes == endMinutes {
		return false
	}
	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 – 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: clock %q, want HH:MM", domain.ErrInvalidInput, s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: clock %q, want HH:MM", domain.ErrInvalidInput, s)
	}
	return h, m, nil
}
