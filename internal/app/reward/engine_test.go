package reward

import (
	"errors"
	"testing"
	"time"

	"github.com/glow-labs/glow/internal/domain"
)

func newTestEngine(now time.Time) (*Engine, *FixedClock) {
	clock := NewFixedClock(now)
	return NewEngine(clock, Config{Location: utcPlus3}), clock
}

var calm10 = domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 10}

func TestEngine_FirstSessionEver(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)
	state := domain.NewProgressionState("u1", now)

	out, next, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if out.NewStreak != 1 || !out.IsFirstActivityOfDay {
		t.Errorf("streak = %d first = %v, want 1 true", out.NewStreak, out.IsFirstActivityOfDay)
	}
	if next.GlowCards != 1 {
		t.Errorf("GlowCards = %d, want 1 for first session of day", next.GlowCards)
	}
	if next.XP != 53 || next.Tokens != 6 {
		t.Errorf("xp = %d tokens = %d, want 53, 6", next.XP, next.Tokens)
	}
	if next.TotalSessions != 1 || next.TotalMinutes != 10 {
		t.Errorf("totals = %d sessions, %d minutes", next.TotalSessions, next.TotalMinutes)
	}
	if !next.LastActivityDate.Equal(now) {
		t.Errorf("LastActivityDate = %v, want %v", next.LastActivityDate, now)
	}
	if state.XP != 0 || state.GlowCards != 0 {
		t.Error("input state was modified")
	}
}

func TestEngine_SameDayAndNextDay(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, utcPlus3)
	eng, clock := newTestEngine(now)
	state := domain.NewProgressionState("u1", now)

	_, state, _ = eng.Evaluate(state, calm10)

	clock.Advance(3 * time.Hour)
	out, state, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("same day: %v", err)
	}
	if out.IsFirstActivityOfDay || out.NewStreak != 1 {
		t.Errorf("same day: first = %v streak = %d, want false 1", out.IsFirstActivityOfDay, out.NewStreak)
	}
	if state.GlowCards != 1 {
		t.Errorf("same day granted another card: %d", state.GlowCards)
	}

	clock.Advance(24 * time.Hour)
	out, state, err = eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("next day: %v", err)
	}
	if !out.IsFirstActivityOfDay || out.NewStreak != 2 {
		t.Errorf("next day: first = %v streak = %d, want true 2", out.IsFirstActivityOfDay, out.NewStreak)
	}
	if state.GlowCards != 2 || state.LongestStreak != 2 {
		t.Errorf("cards = %d longest = %d, want 2, 2", state.GlowCards, state.LongestStreak)
	}
}

func TestEngine_LiveStreakEarnsMultiplier(t *testing.T) {
	now := time.Date(2025, 7, 10, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)

	state := domain.NewProgressionState("u1", now)
	state.StreakDays = 10
	state.LastActivityDate = now.AddDate(0, 0, -1)

	out, _, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if out.StreakMultiplier != 1.2 {
		t.Errorf("multiplier = %v, want 1.2", out.StreakMultiplier)
	}
	if out.XPGained != 63 { // floor(53 × 1.2)
		t.Errorf("XPGained = %d, want 63", out.XPGained)
	}
	if out.NewStreak != 11 {
		t.Errorf("NewStreak = %d, want 11", out.NewStreak)
	}
}

func TestEngine_MultiplierBlockBoundary(t *testing.T) {
	now := time.Date(2025, 7, 10, 8, 0, 0, 0, utcPlus3)
	eng, clock := newTestEngine(now)

	state := domain.NewProgressionState("u1", now)
	state.StreakDays = 4
	state.LastActivityDate = now.AddDate(0, 0, -1)

	out, state, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("day 5: %v", err)
	}
	if out.StreakMultiplier != 1.0 || out.XPGained != 53 || out.NewStreak != 5 {
		t.Errorf("day 5: multiplier = %v xp = %d streak = %d, want 1.0 53 5",
			out.StreakMultiplier, out.XPGained, out.NewStreak)
	}

	clock.Advance(24 * time.Hour)
	out, _, err = eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("day 6: %v", err)
	}
	if out.StreakMultiplier != 1.1 || out.XPGained != 58 || out.NewStreak != 6 { // floor(53 × 1.1)
		t.Errorf("day 6: multiplier = %v xp = %d streak = %d, want 1.1 58 6",
			out.StreakMultiplier, out.XPGained, out.NewStreak)
	}
}

func TestEngine_SaverBridgesOneMissedDay(t *testing.T) {
	now := time.Date(2025, 7, 3, 0, 2, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)

	state := domain.NewProgressionState("u1", now)
	state.StreakDays = 12
	state.LongestStreak = 12
	state.StreakSavers = 2
	state.LastActivityDate = time.Date(2025, 7, 1, 20, 0, 0, 0, utcPlus3)

	out, next, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !out.SaverUsed || out.NewStreak != 13 || out.StreakMultiplier != 1.2 {
		t.Errorf("saverUsed = %v streak = %d multiplier = %v, want true 13 1.2",
			out.SaverUsed, out.NewStreak, out.StreakMultiplier)
	}
	if next.StreakSavers != 1 || next.LongestStreak != 13 {
		t.Errorf("savers = %d longest = %d, want 1, 13", next.StreakSavers, next.LongestStreak)
	}
	if state.StreakSavers != 2 {
		t.Error("input state was modified")
	}

	// Two missed days are beyond a saver.
	state.LastActivityDate = now.AddDate(0, 0, -3)
	out, next, err = eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if out.SaverUsed || out.NewStreak != 1 || next.StreakSavers != 2 {
		t.Errorf("saverUsed = %v streak = %d savers = %d, want false 1 2",
			out.SaverUsed, out.NewStreak, next.StreakSavers)
	}
}

func TestEngine_DurationsAreCopied(t *testing.T) {
	durations := []int{5, 10}
	eng := NewEngine(NewFixedClock(time.Now()), Config{Durations: durations})
	durations[0] = 7

	if _, err := eng.Preview(domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 5}, 0); err != nil {
		t.Errorf("5 minutes rejected after caller mutated its slice: %v", err)
	}
	if _, err := eng.Preview(domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 7}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("7 minutes accepted through a mutated slice: %v", err)
	}

	def := NewEngine(nil, Config{})
	def.cfg.Durations[0] = 99
	if DefaultDurations[0] != 5 {
		t.Errorf("DefaultDurations mutated through an engine: %v", DefaultDurations)
	}
}

func TestEngine_LapsedStreakResets(t *testing.T) {
	now := time.Date(2025, 7, 10, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)

	state := domain.NewProgressionState("u1", now)
	state.StreakDays = 12
	state.LongestStreak = 12
	state.LastActivityDate = now.AddDate(0, 0, -3)

	out, next, err := eng.Evaluate(state, calm10)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if out.StreakMultiplier != 1.0 {
		t.Errorf("multiplier = %v, want 1.0 for a lapsed streak", out.StreakMultiplier)
	}
	if out.NewStreak != 1 || !out.IsFirstActivityOfDay {
		t.Errorf("streak = %d first = %v, want 1 true", out.NewStreak, out.IsFirstActivityOfDay)
	}
	if next.LongestStreak != 12 {
		t.Errorf("LongestStreak = %d, want 12 preserved", next.LongestStreak)
	}
}

func TestEngine_LevelUp(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)
	state := domain.NewProgressionState("u1", now)
	state.XP = 190

	focus := domain.ActivityRecord{Type: domain.ActivityFocus, DurationMinutes: 10}
	out, next, err := eng.Evaluate(state, focus)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !out.LeveledUp || out.NewLevel != 2 || next.Level != 2 {
		t.Errorf("leveledUp = %v newLevel = %d state level = %d", out.LeveledUp, out.NewLevel, next.Level)
	}
	if next.XP != 245 {
		t.Errorf("XP = %d, want 245", next.XP)
	}
}

func TestEngine_RejectsInvalid(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)

	bad := domain.NewProgressionState("u1", now)
	bad.Level = 0
	if _, _, err := eng.Evaluate(bad, calm10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("invalid state: error = %v, want ErrInvalidInput", err)
	}

	ok := domain.NewProgressionState("u1", now)
	if _, _, err := eng.Evaluate(ok, domain.ActivityRecord{Type: domain.ActivityCalm, DurationMinutes: 12}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("invalid activity: error = %v, want ErrInvalidInput", err)
	}
}

func TestEngine_Reveal(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, utcPlus3)
	eng, _ := newTestEngine(now)
	state := domain.NewProgressionState("u1", now.Add(-time.Hour))
	state.GlowCards = 1

	reveal, next, err := eng.Reveal(NewRandom(1), state)
	if err != nil {
		t.Fatalf("Reveal() error: %v", err)
	}
	if reveal.Picks < 1 {
		t.Errorf("Picks = %d, want >= 1", reveal.Picks)
	}
	if next.GlowCards != 0 {
		t.Errorf("GlowCards = %d, want 0", next.GlowCards)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", next.UpdatedAt, now)
	}
}
