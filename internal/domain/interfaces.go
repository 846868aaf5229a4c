package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// Infrastructure implements them; the engagement service depends on them.

// Commit is everything a single reward application writes. Stores apply it
// in one transaction so a failed write never grants a partial reward.
type Commit struct {
	State        ProgressionState
	Ledger       []LedgerEntry
	Achievements []UnlockedAchievement
}

// ProgressionStore is the user-record store.
// Implemented by infra/sqlite, infra/postgres and infra/memstore.
type ProgressionStore interface {
	// GetProgression returns ErrNotFound when the user has no record.
	GetProgression(ctx context.Context, userID string) (*ProgressionState, error)

	// CreateProgression inserts state unless a record exists.
	// Returns true when a new record was written.
	CreateProgression(ctx context.Context, state ProgressionState) (bool, error)

	// SaveProgression merge-upserts the state and appends ledger entries
	// and achievements atomically.
	SaveProgression(ctx context.Context, c Commit) error

	// LedgerEntries returns the newest entries first.
	LedgerEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)

	// UnlockedAchievements returns the user's achievements, newest first.
	UnlockedAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error)

	// ListLapsing returns users with a live streak and at least one streak
	// saver whose last activity fell on the calendar day of lastActive.
	ListLapsing(ctx context.Context, lastActive time.Time) ([]ProgressionState, error)

	Ping(ctx context.Context) error
	Close() error
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) (int64, error)
	CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error)
	PendingNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationShown(ctx context.Context, userID string, id int64) error
}

// Store is the full persistence surface the daemon wires.
type Store interface {
	ProgressionStore
	NotificationStore
}

// Clock returns the current time. Injected so day-boundary logic is testable.
type Clock interface {
	Now() time.Time
}

// RandomSource drives loot draws. *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}
