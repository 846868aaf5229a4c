// Package reward is the pure reward engine: session XP and tokens, level
// steps, calendar-day streaks and glow-card loot draws. It performs no I/O;
// time and randomness come in through domain.Clock and domain.RandomSource.
package reward

import (
	"fmt"
	"slices"

	"github.com/glow-labs/glow/internal/domain"
)

const (
	xpPerMinute      = 5
	streakBlockDays  = 5
	maxMultiplierX10 = 20 // 2.0×
	maxBreathScore   = 100
)

// DefaultDurations are the session lengths the client offers, in minutes.
var DefaultDurations = []int{5, 10, 15, 20}

// typeBonus is the flat XP bonus per activity type.
var typeBonus = map[domain.ActivityType]int64{
	domain.ActivityFocus: 5,
	domain.ActivityCalm:  3,
	domain.ActivitySleep: 0,
}

// ValidateActivity rejects activities outside the caller contract.
func ValidateActivity(a domain.ActivityRecord, durations []int) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown activity type %q", domain.ErrInvalidInput, a.Type)
	}
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	if !slices.Contains(durations, a.DurationMinutes) {
		return fmt.Errorf("%w: duration %d not in %v", domain.ErrInvalidInput, a.DurationMinutes, durations)
	}
	if a.BreathScore < 0 || a.BreathScore > maxBreathScore {
		return fmt.Errorf("%w: breath score %d outside 0-%d", domain.ErrInvalidInput, a.BreathScore, maxBreathScore)
	}
	return nil
}

// streakMultiplierX10 is the multiplier in tenths: 10 + one per 5-day block, capped at 20.
func streakMultiplierX10(streak int) int64 {
	m := int64(10 + streak/streakBlockDays)
	if m > maxMultiplierX10 {
		m = maxMultiplierX10
	}
	return m
}

// StreakMultiplier returns min(2.0, 1 + floor(streak/5) × 0.1).
func StreakMultiplier(streak int) float64 {
	if streak < 0 {
		streak = 0
	}
	return float64(streakMultiplierX10(streak)) / 10
}

// BaseXP is durationMinutes × 5 plus the activity type bonus.
func BaseXP(a domain.ActivityRecord) int64 {
	return int64(a.DurationMinutes)*xpPerMinute + typeBonus[a.Type]
}

// BreathBonus is floor(breathScore/10) when breath tracking was used, else 0.
func BreathBonus(a domain.ActivityRecord) int64 {
	if !a.UsedBreathTracking {
		return 0
	}
	return int64(a.BreathScore / 10)
}

// ComputeSessionReward computes XP and tokens for one session with the
// default duration set. Streak and level fields of the outcome are filled
// by Engine.Evaluate, which knows the dates.
func ComputeSessionReward(a domain.ActivityRecord, currentStreak int) (domain.RewardOutcome, error) {
	return sessionReward(a, currentStreak, DefaultDurations)
}

func sessionReward(a domain.ActivityRecord, currentStreak int, durations []int) (domain.RewardOutcome, error) {
	if err := ValidateActivity(a, durations); err != nil {
		return domain.RewardOutcome{}, err
	}
	if currentStreak < 0 {
		return domain.RewardOutcome{}, fmt.Errorf("%w: streak %d < 0", domain.ErrInvalidInput, currentStreak)
	}

	base := BaseXP(a)
	breath := BreathBonus(a)
	mult := streakMultiplierX10(currentStreak)

	// Integer tenths keep floor((base+breath) × multiplier) exact.
	total := (base + breath) * mult / 10
	tokens := total/10 + 1

	return domain.RewardOutcome{
		XPGained:         total,
		TokensEarned:     tokens,
		NewStreak:        currentStreak,
		BaseXP:           base,
		BreathBonus:      breath,
		StreakMultiplier: float64(mult) / 10,
	}, nil
}
