// Package storetest holds the behavior every domain.Store adapter must share.
// Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glow-labs/glow/internal/domain"
)

// Factory returns a fresh, empty store. The caller's t.Cleanup closes it.
type Factory func(t *testing.T) domain.Store

var base = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("CreateIdempotent", func(t *testing.T) { testCreateIdempotent(t, newStore(t)) })
	t.Run("SaveRoundTrip", func(t *testing.T) { testSaveRoundTrip(t, newStore(t)) })
	t.Run("LedgerOrder", func(t *testing.T) { testLedgerOrder(t, newStore(t)) })
	t.Run("AchievementsDeduplicated", func(t *testing.T) { testAchievements(t, newStore(t)) })
	t.Run("ListLapsing", func(t *testing.T) { testListLapsing(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func testGetMissing(t *testing.T, s domain.Store) {
	_, err := s.GetProgression(context.Background(), "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "error = %v, want ErrNotFound", err)
}

func testCreateIdempotent(t *testing.T, s domain.Store) {
	ctx := context.Background()
	st := domain.NewProgressionState("u1", base)

	created, err := s.CreateProgression(ctx, st)
	require.NoError(t, err)
	assert.True(t, created)

	st.XP = 500
	created, err = s.CreateProgression(ctx, st)
	require.NoError(t, err)
	assert.False(t, created, "second create should not write")

	got, err := s.GetProgression(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.XP, "existing record was overwritten")
	assert.Equal(t, 1, got.Level)
}

func sampleState() domain.ProgressionState {
	return domain.ProgressionState{
		UserID:           "u1",
		XP:               245,
		Level:            2,
		Tokens:           31,
		StreakDays:       4,
		LongestStreak:    9,
		LastActivityDate: base,
		StreakSavers:     1,
		CommonBags:       2,
		RareBags:         1,
		GlowCards:        1,
		TotalSessions:    12,
		TotalMinutes:     140,
		UpdatedAt:        base.Add(time.Minute),
	}
}

func testSaveRoundTrip(t *testing.T, s domain.Store) {
	ctx := context.Background()
	want := sampleState()
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: want}))

	got, err := s.GetProgression(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got, timeEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces the record.
	want.XP = 300
	want.Level = 3
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: want}))
	got, err = s.GetProgression(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.XP)
	assert.Equal(t, 3, got.Level)

	// A never-active user keeps a zero last-activity date.
	fresh := domain.NewProgressionState("u2", base)
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: fresh}))
	got, err = s.GetProgression(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, got.HasActivity())
}

func ledgerEntry(id string, amount, balance int64, at time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID: id, UserID: "u1", Type: domain.TxSessionReward,
		Amount: amount, Balance: balance, Ref: "s-" + id, Description: "session", Timestamp: at,
	}
}

func testLedgerOrder(t *testing.T, s domain.Store) {
	ctx := context.Background()
	st := sampleState()

	st.Tokens = 6
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{
		State:  st,
		Ledger: []domain.LedgerEntry{ledgerEntry("a", 6, 6, base)},
	}))
	st.Tokens = 37
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{
		State: st,
		Ledger: []domain.LedgerEntry{
			ledgerEntry("b", 6, 12, base.Add(time.Hour)),
			ledgerEntry("c", 25, 37, base.Add(time.Hour)),
		},
	}))

	all, err := s.LedgerEntries(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, int64(37), all[0].Balance)
	assert.Equal(t, "s-c", all[0].Ref)

	limited, err := s.LedgerEntries(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := s.LedgerEntries(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testAchievements(t *testing.T, s domain.Store) {
	ctx := context.Background()
	st := sampleState()
	first := domain.UnlockedAchievement{UserID: "u1", ID: "first_session", UnlockedAt: base}
	streak := domain.UnlockedAchievement{UserID: "u1", ID: "streak_7", UnlockedAt: base.Add(time.Hour)}

	require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: st, Achievements: []domain.UnlockedAchievement{first}}))
	require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: st, Achievements: []domain.UnlockedAchievement{first, streak}}))

	got, err := s.UnlockedAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "streak_7", got[0].ID)
	assert.Equal(t, "first_session", got[1].ID)
}

func testListLapsing(t *testing.T, s domain.Store) {
	ctx := context.Background()
	dayBefore := base.AddDate(0, 0, -2)

	mk := func(id string, last time.Time, streak, savers int) {
		st := domain.NewProgressionState(id, base)
		st.LastActivityDate = last
		st.StreakDays = streak
		st.StreakSavers = savers
		require.NoError(t, s.SaveProgression(ctx, domain.Commit{State: st}))
	}
	mk("lapsing", dayBefore.Add(3*time.Hour), 5, 1)
	mk("no-saver", dayBefore, 5, 0)
	mk("no-streak", dayBefore, 0, 2)
	mk("active", base.AddDate(0, 0, -1), 5, 1)
	mk("long-gone", base.AddDate(0, 0, -5), 5, 1)

	got, err := s.ListLapsing(ctx, dayBefore)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lapsing", got[0].UserID)
}

func testNotifications(t *testing.T, s domain.Store) {
	ctx := context.Background()
	n := domain.Notification{
		UserID: "u1", Type: domain.NotifyLevelUp,
		Title: "Level 2", Body: "You reached level 2", CreatedAt: base,
	}
	id1, err := s.InsertNotification(ctx, n)
	require.NoError(t, err)
	n.CreatedAt = base.Add(2 * time.Hour)
	id2, err := s.InsertNotification(ctx, n)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	count, err := s.CountNotificationsSince(ctx, "u1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pending, err := s.PendingNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, id1, pending[0].ID)
	assert.Equal(t, "Level 2", pending[0].Title)

	require.NoError(t, s.MarkNotificationShown(ctx, "u1", id1))
	pending, err = s.PendingNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].ID)

	err = s.MarkNotificationShown(ctx, "someone-else", id2)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "error = %v, want ErrNotFound", err)
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
