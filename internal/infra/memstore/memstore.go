// Package memstore is an in-memory domain.Store used by tests and by the
// daemon when store.driver is "memory". State is lost on exit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/glow-labs/glow/internal/domain"
)

// Store keeps everything in maps guarded by one RWMutex.
// Values are copied in and out so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.ProgressionState
	ledger        map[string][]domain.LedgerEntry // oldest first
	achievements  map[string][]domain.UnlockedAchievement
	notifications []domain.Notification
	nextNotifID   int64
	closed        bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]domain.ProgressionState),
		ledger:       make(map[string][]domain.LedgerEntry),
		achievements: make(map[string][]domain.UnlockedAchievement),
	}
}

var errClosed = domain.Upstream("memstore", errStoreClosed{})

type errStoreClosed struct{}

func (errStoreClosed) Error() string { return "store closed" }

// ─── Progression ────────────────────────────────────────────────────────────

func (s *Store) GetProgression(ctx context.Context, userID string) (*domain.ProgressionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	st, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("progression %s: %w", userID, domain.ErrNotFound)
	}
	return &st, nil
}

func (s *Store) CreateProgression(ctx context.Context, state domain.ProgressionState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed
	}
	if _, ok := s.users[state.UserID]; ok {
		return false, nil
	}
	s.users[state.UserID] = state
	return true, nil
}

// SaveProgression applies the commit under the write lock, so readers see
// either none or all of it.
func (s *Store) SaveProgression(ctx context.Context, c domain.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	uid := c.State.UserID
	s.users[uid] = c.State
	s.ledger[uid] = append(s.ledger[uid], c.Ledger...)

	have := make(map[string]bool, len(s.achievements[uid]))
	for _, a := range s.achievements[uid] {
		have[a.ID] = true
	}
	for _, a := range c.Achievements {
		if have[a.ID] {
			continue
		}
		have[a.ID] = true
		s.achievements[uid] = append(s.achievements[uid], a)
	}
	return nil
}

// LedgerEntries returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) LedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	all := s.ledger[userID]
	n := len(all)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LedgerEntry, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) UnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	all := s.achievements[userID]
	out := make([]domain.UnlockedAchievement, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// ListLapsing matches last activity by calendar day in lastActive's location.
func (s *Store) ListLapsing(ctx context.Context, lastActive time.Time) ([]domain.ProgressionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	loc := lastActive.Location()
	y, m, d := lastActive.Date()
	var out []domain.ProgressionState
	for _, st := range s.users {
		if st.StreakDays <= 0 || st.StreakSavers <= 0 || st.LastActivityDate.IsZero() {
			continue
		}
		ly, lm, ld := st.LastActivityDate.In(loc).Date()
		if ly == y && lm == m && ld == d {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	s.nextNotifID++
	n.ID = s.nextNotifID
	s.notifications = append(s.notifications, n)
	return n.ID, nil
}

func (s *Store) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// PendingNotifications returns unshown notifications, oldest first.
func (s *Store) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || n.Shown {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].Shown = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ domain.Store = (*Store)(nil)
